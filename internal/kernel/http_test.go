package kernel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/internal/app"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/imaging"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/router"
	"github.com/shashiranjanraj/catalog/pkg/storage"
	"github.com/shashiranjanraj/catalog/pkg/testkit"
	"github.com/shashiranjanraj/catalog/pkg/workerpool"
)

type harness struct {
	t *testing.T
	h http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := &app.Database{Driver: "sqlite", Gorm: testkit.NewDB(t)}
	disk, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	pool := workerpool.New(2)
	t.Cleanup(pool.Shutdown)
	opts := imaging.DefaultOptions()
	opts.MaxWidth, opts.MaxHeight = 120, 80

	a := app.Assemble(db, disk,
		imaging.NewProcessor(opts, pool),
		auth.NewTokenIssuer("test-secret", time.Hour, 0),
		middleware.NewMemoryLimiter(10000, time.Minute),
	)
	return &harness{t: t, h: Handler(a)}
}

func (h *harness) do(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.h.ServeHTTP(rec, req)
	return rec
}

func (h *harness) json(method, path string, payload any, token string) *httptest.ResponseRecorder {
	b, err := json.Marshal(payload)
	require.NoError(h.t, err)
	return h.do(method, path, bytes.NewReader(b), "application/json", token)
}

// form sends fields with that many generated PNG images.
func (h *harness) form(method, path string, fields map[string]string, images int, token string) *httptest.ResponseRecorder {
	files := make([][]byte, images)
	for i := range files {
		files[i] = testkit.PNG(h.t, 10+i, 10)
	}
	return h.upload(method, path, fields, files, token)
}

// upload sends fields and files as multipart form data.
func (h *harness) upload(method, path string, fields map[string]string, files [][]byte, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(h.t, w.WriteField(k, v))
	}
	for i, data := range files {
		part, err := w.CreateFormFile("images", fmt.Sprintf("img-%d.png", i))
		require.NoError(h.t, err)
		_, err = part.Write(data)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, w.Close())
	return h.do(method, path, &buf, w.FormDataContentType(), token)
}

// login registers email with role and returns a bearer token.
func (h *harness) login(email, role string) string {
	rec := h.json(http.MethodPost, "/api/auth/register", map[string]string{
		"name": role, "email": email, "password": "secret123", "role": role,
	}, "")
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.json(http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "secret123",
	}, "")
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())

	var session struct {
		Token string `json:"token"`
	}
	testkit.Decode(h.t, rec, &session)
	require.NotEmpty(h.t, session.Token)
	return session.Token
}

func (h *harness) createPen(token string, images int) models.ProductView {
	rec := h.form(http.MethodPost, "/api/products", map[string]string{
		"name":              "Pastel Pen Set",
		"description":       "Set of 4 smooth-writing pens in beautiful pastel colors",
		"quantity":          "100",
		"price":             "12.99",
		"primaryImageIndex": "0",
	}, images, token)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())

	var v models.ProductView
	testkit.Decode(h.t, rec, &v)
	return v
}

type page struct {
	Items      []models.ProductView `json:"items"`
	Pagination struct {
		Total int64 `json:"total"`
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
		Pages int   `json:"pages"`
	} `json:"pagination"`
}

func primaries(imgs []models.ImageView) []models.ImageView {
	var out []models.ImageView
	for _, img := range imgs {
		if img.IsPrimary {
			out = append(out, img)
		}
	}
	return out
}

// ─── Ops ──────────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/health", nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/health", nil, "", "")

	rec := h.do(http.MethodGet, "/metrics", nil, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catalog_http_requests_total")
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/nope", nil, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", testkit.Decode(t, rec, nil).Message)
}

// ─── Auth ─────────────────────────────────────────────────────────────────────

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.json(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Test Vendor", "email": "Vendor@Example.com", "password": "vendor123", "role": "vendor",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = h.json(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Again", "email": "vendor@example.com", "password": "vendor123",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "ghost@example.com", "password": "x"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "vendor@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.json(http.MethodPost, "/api/auth/login", map[string]string{"email": "vendor@example.com", "password": "vendor123"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login sets the token cookie")
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	h.h.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())

	var user models.PublicUser
	testkit.Decode(t, me, &user)
	assert.Equal(t, "vendor@example.com", user.Email)
	assert.Equal(t, models.RoleVendor, user.Role)

	out := h.do(http.MethodPost, "/api/auth/logout", nil, "", "")
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Contains(t, out.Header().Get("Set-Cookie"), auth.CookieName+"=;")
}

func TestProductsRequireAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/products", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodGet, "/api/products", nil, "", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestShopperCannotCreateProduct(t *testing.T) {
	h := newHarness(t)
	token := h.login("shopper@example.com", models.RoleShopper)

	rec := h.form(http.MethodPost, "/api/products", map[string]string{
		"name": "x", "description": "y", "quantity": "1", "price": "1",
	}, 0, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ─── Products ─────────────────────────────────────────────────────────────────

func TestCreateProductValidation(t *testing.T) {
	h := newHarness(t)
	token := h.login("vendor@example.com", models.RoleVendor)

	rec := h.form(http.MethodPost, "/api/products", map[string]string{
		"name": "Pen", "description": "d", "quantity": "many", "price": "1",
	}, 0, token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, testkit.Decode(t, rec, nil).Errors, "quantity")

	rec = h.form(http.MethodPost, "/api/products", map[string]string{
		"description": "d", "quantity": "1", "price": "0",
	}, 0, token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := testkit.Decode(t, rec, nil)
	assert.Contains(t, env.Errors, "name")
	assert.Contains(t, env.Errors, "price")

	rec = h.form(http.MethodPost, "/api/products", map[string]string{
		"name": "Pen", "description": "d", "quantity": "1", "price": "1",
	}, 4, token)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "more than three images")
}

func TestPastelPenSetOverHTTP(t *testing.T) {
	h := newHarness(t)
	vendor := h.login("vendor@example.com", models.RoleVendor)
	shopper := h.login("shopper@example.com", models.RoleShopper)

	pen := h.createPen(vendor, 2)
	assert.Regexp(t, `^PRD-[A-Z0-9]{6}$`, pen.SKU)
	require.Len(t, pen.Images, 2)
	require.Len(t, primaries(pen.Images), 1)
	assert.Equal(t, 0, primaries(pen.Images)[0].Position)
	require.NotNil(t, pen.User)
	assert.Equal(t, "vendor@example.com", pen.User.Email)

	// stored files are served from the local disk
	img := h.do(http.MethodGet, pen.Images[0].URL, nil, "", "")
	assert.Equal(t, http.StatusOK, img.Code)

	// shopper favourites it
	rec := h.do(http.MethodPost, "/api/products/favourites/"+pen.ID+"/toggle", nil, "", shopper)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var toggled models.ToggleResult
	testkit.Decode(t, rec, &toggled)
	assert.True(t, toggled.IsFavourited)

	rec = h.do(http.MethodGet, "/api/products/"+pen.ID, nil, "", shopper)
	require.Equal(t, http.StatusOK, rec.Code)
	var seen models.ProductView
	testkit.Decode(t, rec, &seen)
	assert.True(t, seen.Favourite)
	require.NotNil(t, seen.FavouriteCount)
	assert.EqualValues(t, 1, *seen.FavouriteCount)

	// deleting the primary promotes the other image
	primary := primaries(pen.Images)[0]
	rec = h.do(http.MethodDelete, "/api/products/"+pen.ID+"/images/"+primary.ID, nil, "", vendor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var after models.ProductView
	testkit.Decode(t, rec, &after)
	require.Len(t, after.Images, 1)
	assert.True(t, after.Images[0].IsPrimary)

	// shopper cannot delete it, the vendor can
	rec = h.do(http.MethodDelete, "/api/products/"+pen.ID, nil, "", shopper)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodDelete, "/api/products/"+pen.ID, nil, "", vendor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Product deleted successfully", testkit.Decode(t, rec, nil).Message)

	rec = h.do(http.MethodGet, "/api/products/"+pen.ID, nil, "", shopper)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/products/favourites", nil, "", shopper)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestListProductsOverHTTP(t *testing.T) {
	h := newHarness(t)
	vendor := h.login("vendor@example.com", models.RoleVendor)
	for i := 0; i < 5; i++ {
		h.createPen(vendor, 0)
	}

	rec := h.do(http.MethodGet, "/api/products?limit=2&page=1", nil, "", vendor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p page
	testkit.Decode(t, rec, &p)
	assert.Len(t, p.Items, 2)
	assert.EqualValues(t, 5, p.Pagination.Total)
	assert.Equal(t, 3, p.Pagination.Pages)

	rec = h.do(http.MethodGet, "/api/products?limit=2&page=3&sort=-price", nil, "", vendor)
	require.Equal(t, http.StatusOK, rec.Code)
	testkit.Decode(t, rec, &p)
	assert.Len(t, p.Items, 1)

	rec = h.do(http.MethodGet, "/api/products?q=PASTEL&quantity=100", nil, "", vendor)
	require.Equal(t, http.StatusOK, rec.Code)
	testkit.Decode(t, rec, &p)
	assert.EqualValues(t, 5, p.Pagination.Total)

	rec = h.do(http.MethodGet, "/api/products?limit=abc", nil, "", vendor)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodGet, "/api/products?colour=red", nil, "", vendor)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, testkit.Decode(t, rec, nil).Errors, "colour")
}

func TestUpdateProductOverHTTP(t *testing.T) {
	h := newHarness(t)
	vendor := h.login("vendor@example.com", models.RoleVendor)
	pen := h.createPen(vendor, 3)

	var drop []string
	for _, img := range pen.Images {
		if img.Position != 2 {
			drop = append(drop, img.ID)
		}
	}

	rec := h.form(http.MethodPut, "/api/products/"+pen.ID, map[string]string{
		"name":             "Pastel Pen Set Deluxe",
		"price":            "14.50",
		"imageIdsToDelete": strings.Join(drop, ","),
	}, 0, vendor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var v models.ProductView
	testkit.Decode(t, rec, &v)
	assert.Equal(t, "Pastel Pen Set Deluxe", v.Name)
	assert.Equal(t, 14.50, v.Price)
	assert.Equal(t, 100, v.Quantity, "unsent fields are unchanged")
	require.Len(t, v.Images, 1)
	assert.True(t, v.Images[0].IsPrimary)

	// replacing images with a new upload
	rec = h.form(http.MethodPut, "/api/products/"+pen.ID, map[string]string{"primaryImageIndex": "1"}, 2, vendor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	testkit.Decode(t, rec, &v)
	require.Len(t, v.Images, 2)
	require.Len(t, primaries(v.Images), 1)
	assert.Equal(t, 1, primaries(v.Images)[0].Position)

	// submitted but empty fields are rejected, not zeroed
	rec = h.form(http.MethodPut, "/api/products/"+pen.ID, map[string]string{"quantity": "", "description": ""}, 0, vendor)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	env := testkit.Decode(t, rec, nil)
	assert.Contains(t, env.Errors, "quantity")

	rec = h.form(http.MethodPut, "/api/products/"+pen.ID, map[string]string{"description": ""}, 0, vendor)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, testkit.Decode(t, rec, nil).Errors, "description")

	rec = h.do(http.MethodGet, "/api/products/"+pen.ID, nil, "", vendor)
	testkit.Decode(t, rec, &v)
	assert.Equal(t, 100, v.Quantity)
}

func TestCorruptUploadOverHTTP(t *testing.T) {
	h := newHarness(t)
	vendor := h.login("vendor@example.com", models.RoleVendor)
	pen := h.createPen(vendor, 2)
	broken := testkit.PNG(t, 10, 10)[:40]

	rec := h.upload(http.MethodPut, "/api/products/"+pen.ID, nil, [][]byte{broken}, vendor)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Contains(t, testkit.Decode(t, rec, nil).Errors, "images")

	rec = h.do(http.MethodGet, "/api/products/"+pen.ID, nil, "", vendor)
	var v models.ProductView
	testkit.Decode(t, rec, &v)
	require.Len(t, v.Images, 2)
	require.Len(t, primaries(v.Images), 1)

	rec = h.upload(http.MethodPost, "/api/products", map[string]string{
		"name": "Broken", "description": "d", "quantity": "1", "price": "1",
	}, [][]byte{testkit.PNG(t, 10, 10), broken}, vendor)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/api/products?name=Broken", nil, "", vendor)
	require.Equal(t, http.StatusOK, rec.Code)
	var pg page
	testkit.Decode(t, rec, &pg)
	assert.Zero(t, pg.Pagination.Total, "no product row left behind")
}

func TestUploadsDirectoryIsNotListed(t *testing.T) {
	h := newHarness(t)
	vendor := h.login("vendor@example.com", models.RoleVendor)
	pen := h.createPen(vendor, 1)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, pen.Images[0].URL, nil, "", "").Code)

	for _, p := range []string{"/uploads/", "/uploads", "/uploads/missing.png", "/uploads/../go.mod"} {
		rec := h.do(http.MethodGet, p, nil, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
		assert.NotContains(t, rec.Body.String(), pen.Images[0].ImageURL, p)
	}
}

func TestFavouritesOverHTTP(t *testing.T) {
	h := newHarness(t)
	vendor := h.login("vendor@example.com", models.RoleVendor)
	shopper := h.login("shopper@example.com", models.RoleShopper)
	pen := h.createPen(vendor, 1)

	path := "/api/products/favourites/" + pen.ID
	assert.Equal(t, http.StatusCreated, h.do(http.MethodPost, path, nil, "", shopper).Code)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, path, nil, "", shopper).Code)

	rec := h.do(http.MethodGet, "/api/products/favourites", nil, "", shopper)
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []models.ProductView
	testkit.Decode(t, rec, &favs)
	require.Len(t, favs, 1)
	assert.True(t, favs[0].Favourite)

	assert.Equal(t, http.StatusOK, h.do(http.MethodDelete, path, nil, "", shopper).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, path, nil, "", shopper).Code)

	rec = h.do(http.MethodPost, "/api/products/favourites/missing/toggle", nil, "", shopper)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutesListsAPI(t *testing.T) {
	names := map[string]bool{}
	r := router.New()
	Routes(r, &app.App{})
	for _, ri := range r.Routes() {
		names[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"POST /api/auth/login",
		"GET /api/products",
		"POST /api/products",
		"PUT /api/products/{id}",
		"DELETE /api/products/{id}/images/{imageId}",
		"POST /api/products/favourites/{id}/toggle",
		"GET /health",
	} {
		assert.True(t, names[want], want)
	}
}

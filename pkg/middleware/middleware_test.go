package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]models.User

func (f fakeUsers) FindByID(_ context.Context, id string) (models.User, error) {
	u, ok := f[id]
	if !ok {
		return models.User{}, errors.New("not found")
	}
	return u, nil
}

func principalEcho(t *testing.T, got *models.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromCtx(r.Context())
		if ok {
			*got = p
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuth_RequiredRejectsMissingAndInvalid(t *testing.T) {
	a := NewAuth(auth.NewTokenIssuer("s", time.Hour, 0), fakeUsers{}, false)
	var p models.Principal
	h := a.Required(principalEcho(t, &p))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_RequiredAttachesPrincipal(t *testing.T) {
	iss := auth.NewTokenIssuer("s", time.Hour, 0)
	users := fakeUsers{"u1": {ID: "u1", Role: models.RoleVendor}}
	tok, _, err := iss.Issue("u1", models.RoleVendor)
	require.NoError(t, err)

	var p models.Principal
	h := NewAuth(iss, users, false).Required(principalEcho(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, models.Principal{UserID: "u1", Role: models.RoleVendor}, p)
	assert.Empty(t, rec.Header().Get("Set-Cookie"), "no renewal when window is zero")
}

func TestAuth_RenewsInsideWindow(t *testing.T) {
	iss := auth.NewTokenIssuer("s", time.Minute, time.Hour)
	users := fakeUsers{"u1": {ID: "u1", Role: models.RoleShopper}}
	tok, _, err := iss.Issue("u1", models.RoleShopper)
	require.NoError(t, err)

	var p models.Principal
	h := NewAuth(iss, users, false).Required(principalEcho(t, &p))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tok})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), auth.CookieName+"=")
}

func TestMemoryLimiter_WindowAndEviction(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	ctx := context.Background()
	for i, want := range []bool{true, true, false} {
		ok, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "request %d", i)
	}

	ok, _ := l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are independent")
	assert.Equal(t, 2, l.Len())

	now = now.Add(2 * time.Minute)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "window reset")
	assert.Equal(t, 1, l.Len(), "expired bucket evicted")
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("down") }
func (brokenLimiter) Name() string                                    { return "broken" }

func TestRateLimit_RejectsAndFailsOpen(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	h := RateLimit(NewMemoryLimiter(1, time.Minute))(ok)
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	rec := httptest.NewRecorder()
	RateLimit(brokenLimiter{})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestRecovery_Returns500(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":500`)
}

func TestLogger_InjectsRequestLogger(t *testing.T) {
	var injected bool
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		injected = logger.WithCtx(r.Context()) != logger.L
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, injected)
}

func TestCORS_ExplicitOriginAllowsCredentials(t *testing.T) {
	opts := DefaultCORSOptions()
	opts.AllowedOrigins = []string{"https://shop.example.com"}
	h := CORS(opts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

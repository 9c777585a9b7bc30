package controllers

import (
	"strconv"

	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/bind"
	"github.com/shashiranjanraj/catalog/pkg/ctx"
	"github.com/shashiranjanraj/catalog/pkg/response"
)

// imagesField is the multipart field carrying product images.
const imagesField = "images"

// UploadLimits bounds multipart parsing. *imaging.Processor satisfies it.
type UploadLimits interface {
	MaxFiles() int
	MaxFileSize() int64
}

type ProductController struct {
	products *services.ProductService
	limits   UploadLimits
}

func NewProductController(products *services.ProductService, limits UploadLimits) *ProductController {
	return &ProductController{products: products, limits: limits}
}

// reserved query keys; every other key is an equality filter.
var listKeys = map[string]bool{"limit": true, "page": true, "sort": true, "q": true, "search": true}

// Index handles GET /api/products.
//
//	?limit=2&page=3&sort=-price&q=pen&userId=...
func (c *ProductController) Index(x *ctx.Context) {
	limit, err := x.QueryInt("limit", 0)
	if err != nil {
		x.Fail(err)
		return
	}
	page, err := x.QueryInt("page", 1)
	if err != nil {
		x.Fail(err)
		return
	}

	q := services.ListQuery{
		Filters: map[string]string{},
		Search:  x.Query("q"),
		Sort:    x.Query("sort"),
		Limit:   limit,
		Page:    page,
	}
	if q.Search == "" {
		q.Search = x.Query("search")
	}
	for key, vals := range x.QueryValues() {
		if listKeys[key] || len(vals) == 0 {
			continue
		}
		q.Filters[key] = vals[0]
	}

	result, err := c.products.List(x.Context(), x.Principal().UserID, q)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Paginated(result.Items, response.Pagination{
		Total: result.Total,
		Page:  result.Page,
		Limit: result.Limit,
		Pages: result.Pages,
	})
}

// Show handles GET /api/products/{id}.
func (c *ProductController) Show(x *ctx.Context) {
	view, err := c.products.Get(x.Context(), x.Principal().UserID, x.Param("id"))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

// Store handles POST /api/products as multipart form data.
func (c *ProductController) Store(x *ctx.Context) {
	form, err := bind.Multipart(x.R, imagesField, c.limits.MaxFiles(), c.limits.MaxFileSize())
	if err != nil {
		x.Fail(err)
		return
	}

	fields := map[string]string{}
	in := services.ProductInput{
		Name:        form.Value("name"),
		Description: form.Value("description"),
	}
	in.Quantity = formInt(form, "quantity", 0, fields)
	in.Price = formFloat(form, "price", fields)
	in.PrimaryImageIndex = formInt(form, "primaryImageIndex", 0, fields)
	if len(fields) > 0 {
		x.Fail(apperr.Validation("Validation failed", fields))
		return
	}

	view, err := c.products.Create(x.Context(), x.Principal(), in, form.Uploads)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(view)
}

// Update handles PUT /api/products/{id}. Only submitted fields change.
func (c *ProductController) Update(x *ctx.Context) {
	form, err := bind.Multipart(x.R, imagesField, c.limits.MaxFiles(), c.limits.MaxFileSize())
	if err != nil {
		x.Fail(err)
		return
	}

	fields := map[string]string{}
	in := services.UpdateInput{
		Uploads:          form.Uploads,
		ImageIDsToDelete: form.List("imageIdsToDelete"),
	}
	if form.Has("name") {
		v := form.Value("name")
		in.Patch.Name = &v
	}
	if form.Has("description") {
		v := form.Value("description")
		in.Patch.Description = &v
	}
	if submitted(form, "quantity", fields) {
		v := formInt(form, "quantity", 0, fields)
		in.Patch.Quantity = &v
	}
	if submitted(form, "price", fields) {
		v := formFloat(form, "price", fields)
		in.Patch.Price = &v
	}
	if form.Value("primaryImageIndex") != "" {
		v := formInt(form, "primaryImageIndex", 0, fields)
		in.PrimaryImageIndex = &v
	}
	if len(fields) > 0 {
		x.Fail(apperr.Validation("Validation failed", fields))
		return
	}

	view, err := c.products.Update(x.Context(), x.Principal(), x.Param("id"), in)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

// Destroy handles DELETE /api/products/{id}.
func (c *ProductController) Destroy(x *ctx.Context) {
	if err := c.products.Delete(x.Context(), x.Principal(), x.Param("id")); err != nil {
		x.Fail(err)
		return
	}
	x.Message("Product deleted successfully", nil)
}

// SetPrimaryImage handles PUT /api/products/{id}/images/{imageId}/primary.
func (c *ProductController) SetPrimaryImage(x *ctx.Context) {
	view, err := c.products.SetPrimaryImage(x.Context(), x.Principal(), x.Param("id"), x.Param("imageId"))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(view)
}

// RemoveImage handles DELETE /api/products/{id}/images/{imageId}.
func (c *ProductController) RemoveImage(x *ctx.Context) {
	view, err := c.products.RemoveImage(x.Context(), x.Principal(), x.Param("id"), x.Param("imageId"))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Message("Image removed", view)
}

// submitted reports whether key was sent with a value. A key sent empty is
// recorded as a field error.
func submitted(f *bind.Form, key string, fields map[string]string) bool {
	if !f.Has(key) {
		return false
	}
	if f.Value(key) == "" {
		fields[key] = "must not be empty"
		return false
	}
	return true
}

// formInt parses key, recording a field error when it is not an integer.
// An empty value yields def.
func formInt(f *bind.Form, key string, def int, fields map[string]string) int {
	raw := f.Value(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		fields[key] = "must be an integer"
	}
	return n
}

// formFloat parses key as a number. An empty value yields 0, which the
// service rejects for price.
func formFloat(f *bind.Form, key string, fields map[string]string) float64 {
	raw := f.Value(key)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		fields[key] = "must be a number"
	}
	return v
}

// Package ctx provides the request context the catalog controllers are
// written against.
//
// Instead of accepting (http.ResponseWriter, *http.Request), a handler
// receives a single *Context with helpers for params, binding and the
// JSON envelope:
//
//	func (c *ProductController) Show(x *ctx.Context) {
//	    view, err := c.products.Get(x.Context(), x.Principal().UserID, x.Param("id"))
//	    if err != nil {
//	        x.Fail(err)
//	        return
//	    }
//	    x.Success(view)
//	}
//
//	// Register with ctx.Wrap:
//	api.Get("/products/{id}", "products.show", ctx.Wrap(pc.Show))
package ctx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/bind"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/response"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc so it can be
// passed to any router method.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// ─── Context ──────────────────────────────────────────────────────────────────

// Context wraps a request/response pair.
type Context struct {
	W http.ResponseWriter
	R *http.Request

	query url.Values
}

// pool recycles Context objects to reduce GC pressure.
var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.query = nil
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	c.query = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a URL path parameter ("/products/{id}" → c.Param("id")).
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// QueryValues returns the parsed query string. It is parsed once per request.
func (c *Context) QueryValues() url.Values {
	if c.query == nil {
		c.query = c.R.URL.Query()
	}
	return c.query
}

// Query returns a trimmed query-string value, "" when absent.
func (c *Context) Query(key string) string {
	return strings.TrimSpace(c.QueryValues().Get(key))
}

// QueryInt parses key as an int. An absent key yields def; a malformed
// one a validation error naming the key.
func (c *Context) QueryInt(key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Invalid query parameter", map[string]string{key: "must be an integer"})
	}
	return n, nil
}

// Context returns the underlying request context.
func (c *Context) Context() context.Context { return c.R.Context() }

// Principal returns the authenticated caller. Routes behind
// middleware.Auth.Required always carry one; elsewhere it is the zero value.
func (c *Context) Principal() models.Principal {
	p, _ := middleware.PrincipalFromCtx(c.R.Context())
	return p
}

// ─── Binding ──────────────────────────────────────────────────────────────────

// BindJSON decodes and validates the JSON body into dest. On failure it
// writes the error envelope and returns false.
//
//	var in services.LoginInput
//	if !x.BindJSON(&in) {
//	    return // response already sent
//	}
func (c *Context) BindJSON(dest any) bool {
	if err := bind.JSON(c.R, dest); err != nil {
		c.Fail(err)
		return false
	}
	return true
}

// ─── Response helpers ─────────────────────────────────────────────────────────

// Success sends a 200 envelope with data.
func (c *Context) Success(data any) { response.Success(c.W, data) }

// Created sends a 201 envelope with data.
func (c *Context) Created(data any) { response.Created(c.W, data) }

// Message sends a 200 envelope with a message and optional data.
func (c *Context) Message(msg string, data any) { response.Message(c.W, msg, data) }

// Paginated sends a 200 envelope with items and pagination metadata.
func (c *Context) Paginated(items any, p response.Pagination) { response.Paginated(c.W, items, p) }

// Fail writes err through response.FromError. Internal causes are logged
// with the request logger and never reach the client.
func (c *Context) Fail(err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.WithCtx(c.R.Context()).Error("request failed",
			"method", c.R.Method, "path", c.R.URL.Path, "error", err)
	}
	response.FromError(c.W, err)
}

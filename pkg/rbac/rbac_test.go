package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/stretchr/testify/assert"
)

func serve(h http.Handler, p *models.Principal) int {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), *p))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestHasRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := HasRole(models.RoleVendor, models.RoleAdmin)(ok)

	assert.Equal(t, http.StatusUnauthorized, serve(h, nil))
	assert.Equal(t, http.StatusForbidden, serve(h, &models.Principal{UserID: "u", Role: models.RoleShopper}))
	assert.Equal(t, http.StatusOK, serve(h, &models.Principal{UserID: "u", Role: models.RoleVendor}))
	assert.Equal(t, http.StatusOK, serve(h, &models.Principal{UserID: "u", Role: models.RoleAdmin}))
}

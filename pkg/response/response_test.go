package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestFromError_MapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{apperr.NotFound("Product not found"), http.StatusNotFound},
		{apperr.Conflict("Product already favourited"), http.StatusConflict},
		{apperr.Unauthorized("Token missing"), http.StatusUnauthorized},
		{apperr.Forbidden("not yours"), http.StatusForbidden},
		{apperr.Validation("bad", map[string]string{"name": "required"}), http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		FromError(rec, tc.err)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
		assert.EqualValues(t, tc.code, decode(t, rec)["status"])
	}
}

func TestFromError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	FromError(rec, apperr.Internal("Failed to delete product", errors.New("db gone")))

	body := decode(t, rec)
	assert.Equal(t, "Failed to delete product", body["message"])
	assert.NotContains(t, rec.Body.String(), "db gone")
}

func TestPaginated_Envelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []string{"a", "b"}, Pagination{Total: 5, Page: 1, Limit: 2, Pages: 3})

	data := decode(t, rec)["data"].(map[string]any)
	assert.Len(t, data["items"], 2)
	assert.EqualValues(t, 3, data["pagination"].(map[string]any)["pages"])
}

package testkit

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// Envelope mirrors the JSON body written by pkg/response.
type Envelope struct {
	Status  int               `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

// Decode parses rec's body as an envelope and, when dest is non-nil,
// unmarshals its data into dest.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	if dest != nil {
		require.NotEmpty(t, env.Data, "envelope has no data: %s", rec.Body.String())
		require.NoError(t, json.Unmarshal(env.Data, dest))
	}
	return env
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/contextkeys"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, nil)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// withPrincipal attaches an authenticated principal the way the session
// middleware would
func withPrincipal(r *http.Request, userID int64) *http.Request {
	principal := &auth.Principal{
		User: &identity.User{ID: userID, Email: "member@example.com"},
	}
	return r.WithContext(contextkeys.WithSession(r.Context(), principal))
}

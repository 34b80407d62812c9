package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, http.StatusOK, map[string]string{"hello": "world"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"hello":"world"}`, rec.Body.String())
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation error",
			err:        errs.NewValidation("email", "is required"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid email: is required",
		},
		{
			name:       "authentication error",
			err:        errs.NewAuthentication("invalid email or password"),
			wantStatus: http.StatusUnauthorized,
			wantBody:   "invalid email or password",
		},
		{
			name:       "not found",
			err:        errs.NewNotFound("organization"),
			wantStatus: http.StatusNotFound,
			wantBody:   "organization not found",
		},
		{
			name:       "wrapped conflict",
			err:        fmt.Errorf("rotating session: %w", errs.NewConflict("refresh token already used")),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown error is masked",
			err:        fmt.Errorf("pq: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, decodeError(t, rec))
			}
		})
	}
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

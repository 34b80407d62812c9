package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/contextkeys"
	"github.com/gatehouse-io/gatehouse/pkg/httputil"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
)

// Authenticator resolves a session token to a principal
type Authenticator interface {
	Authenticate(ctx context.Context, sessionToken string) (*auth.Principal, error)
}

// SessionAuth requires a valid bearer session token. The failure message is
// deliberately uniform: token format errors, unknown tokens, and expired
// sessions all read the same to the caller.
func SessionAuth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || sessions.ValidateTokenFormat(token, sessions.SessionTokenPrefix) != nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			principal, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			ctx := contextkeys.WithSession(r.Context(), principal)
			ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(principal.User.ID, 10))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext retrieves the authenticated principal; nil when the
// request did not pass SessionAuth
func PrincipalFromContext(ctx context.Context) *auth.Principal {
	if principal, ok := ctx.Value(contextkeys.SessionKey).(*auth.Principal); ok {
		return principal
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

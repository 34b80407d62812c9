package middleware

import (
	"context"
	"net/http"

	"github.com/gatehouse-io/gatehouse/pkg/contextkeys"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/orgs"
	"github.com/gatehouse-io/gatehouse/pkg/platform"
)

// forbiddenBody is the fixed denial body; gated callers learn nothing about
// which flag was missing
const forbiddenBody = "Forbidden"

// FeatureResolver answers feature-map lookups for a subscription
type FeatureResolver interface {
	GetFeaturesByPlan(ctx context.Context, subscriptionID string) (map[string]interface{}, error)
}

var _ FeatureResolver = (*platform.Manager)(nil)

// FeatureGate denies requests whose resolved feature map lacks a truthy
// value for the flag. The per-request map from an earlier gate is reused;
// otherwise the map is resolved live from the organization's subscription
// and stashed for later gates on the same request.
func FeatureGate(resolver FeatureResolver, logger *observability.Logger, flag string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			features := contextkeys.GetFeatures(ctx)
			if features == nil {
				var err error
				features, err = resolver.GetFeaturesByPlan(ctx, subscriptionIDFromContext(ctx))
				if err != nil {
					logger.WithError(err).Warn("feature resolution failed, denying")
					writeForbiddenGate(w)
					return
				}
				ctx = contextkeys.WithFeatures(ctx, features)
			}

			if len(features) == 0 || !Truthy(features[flag]) {
				writeForbiddenGate(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Truthy reports whether a feature value enables its flag. Exactly three
// encodings count: true, "true", and "1". Everything else, including absent
// values, denies.
func Truthy(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}

func subscriptionIDFromContext(ctx context.Context) string {
	if org, ok := ctx.Value(contextkeys.OrgKey).(*orgs.Organization); ok && org != nil {
		return org.SubscriptionID
	}
	return ""
}

func writeForbiddenGate(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(forbiddenBody))
}

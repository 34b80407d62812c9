package billing

// StaticFeatures is the full feature catalog. Self-hosted deployments get
// every entry enabled; plan derivation selects a subset.
func StaticFeatures() []string {
	return []string{
		"sso",
		"audit_log",
		"custom_roles",
		"api_access",
		"invites",
		"workspaces",
		"advanced_analytics",
		"priority_support",
	}
}

// FeaturesForPlan derives the feature map for a plan name. Values use the
// string encodings the gate accepts.
func FeaturesForPlan(plan string) map[string]interface{} {
	features := map[string]interface{}{
		"api_access": "true",
		"invites":    "true",
		"workspaces": "true",
	}
	switch plan {
	case "enterprise":
		features["sso"] = "true"
		features["audit_log"] = "true"
		features["custom_roles"] = "true"
		features["advanced_analytics"] = "true"
		features["priority_support"] = "true"
	case "pro":
		features["audit_log"] = "true"
		features["custom_roles"] = "true"
		features["advanced_analytics"] = "true"
	case "free":
		// base features only
	}
	return features
}

// QuotasForPlan derives usage quotas for a plan name
func QuotasForPlan(plan string) map[string]int64 {
	switch plan {
	case "enterprise":
		return map[string]int64{
			"max_workspaces":       -1, // unlimited
			"max_members":          -1,
			"max_sso_providers":    10,
			"api_requests_per_day": 1_000_000,
		}
	case "pro":
		return map[string]int64{
			"max_workspaces":       25,
			"max_members":          100,
			"max_sso_providers":    1,
			"api_requests_per_day": 100_000,
		}
	default:
		return map[string]int64{
			"max_workspaces":       3,
			"max_members":          10,
			"max_sso_providers":    0,
			"api_requests_per_day": 10_000,
		}
	}
}

// AllFeaturesEnabled returns the full catalog with every flag set. Used by
// self-hosted deployments where no billing backend exists.
func AllFeaturesEnabled() map[string]interface{} {
	features := make(map[string]interface{}, len(StaticFeatures()))
	for _, name := range StaticFeatures() {
		features[name] = "true"
	}
	return features
}

// Package platform decides how a deployment behaves: self-hosted instances
// run with every feature enabled and no billing backend, managed instances
// expose no billing-derived features, and cloud instances resolve features
// from the billing provider through the subscription cache. The Manager is
// the only component allowed to talk to the billing provider.
package platform

// Package async provides safe goroutine helpers for fire-and-forget work.
//
// Use SafeGo instead of bare `go func()` for best-effort tasks such as the
// webhook-triggered feature cache refresh: it enforces a timeout, recovers
// panics, and logs failures without surfacing them to the caller.
package async

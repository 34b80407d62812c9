// Package api exposes the HTTP surface: credential and session endpoints,
// organization and invite management, SSO login flows, the billing webhook,
// and health probes.
//
// Handlers depend on narrow interfaces over the domain services so tests can
// drive them without a database. Authentication failures are written with
// deliberately uniform messages; the webhook endpoint follows the
// accept-then-process contract (400 only for missing or unverifiable input,
// 200 as soon as the event is accepted).
package api

// Package postgres provides the PostgreSQL storage layer: connection
// management with optional read replicas, transaction helpers, and schema
// migrations for the identity, membership, SSO, and billing tables.
package postgres

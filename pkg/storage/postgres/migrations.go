package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all gatehouse migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users and credentials tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(320) NOT NULL UNIQUE,
					first_name VARCHAR(255) NOT NULL DEFAULT '',
					last_name VARCHAR(255) NOT NULL DEFAULT '',
					email_verified BOOLEAN NOT NULL DEFAULT FALSE,
					status VARCHAR(50) NOT NULL DEFAULT 'PENDING',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_status ON users(status);

				CREATE TABLE IF NOT EXISTS user_credentials (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					provider VARCHAR(50) NOT NULL DEFAULT 'local',
					password_hash VARCHAR(255),
					temp_token VARCHAR(255),
					token_expiry TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, provider)
				);

				CREATE INDEX idx_user_credentials_temp_token ON user_credentials(temp_token);
			`,
		},
		{
			Version:     2,
			Description: "Create login sessions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS login_sessions (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					session_token VARCHAR(255) NOT NULL UNIQUE,
					refresh_token VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP NOT NULL
				);

				CREATE INDEX idx_login_sessions_user_id ON login_sessions(user_id);
				CREATE INDEX idx_login_sessions_session_token ON login_sessions(session_token);
				CREATE INDEX idx_login_sessions_refresh_token ON login_sessions(refresh_token);
				CREATE INDEX idx_login_sessions_expires_at ON login_sessions(expires_at);
			`,
		},
		{
			Version:     3,
			Description: "Create organizations and workspaces tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) UNIQUE,
					plan VARCHAR(100) NOT NULL DEFAULT 'free',
					customer_id VARCHAR(255),
					subscription_id VARCHAR(255),
					product_id VARCHAR(255),
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_organizations_customer_id ON organizations(customer_id);
				CREATE INDEX idx_organizations_subscription_id ON organizations(subscription_id);

				CREATE TABLE IF NOT EXISTS workspaces (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					is_personal BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_workspaces_organization_id ON workspaces(organization_id);
			`,
		},
		{
			Version:     4,
			Description: "Create roles and membership tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					scope VARCHAR(50) NOT NULL,
					permissions JSONB NOT NULL DEFAULT '[]',
					is_built_in BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(name, scope)
				);

				CREATE TABLE IF NOT EXISTS organization_users (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT REFERENCES roles(id),
					is_owner BOOLEAN NOT NULL DEFAULT FALSE,
					status VARCHAR(50) NOT NULL DEFAULT 'PENDING',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(organization_id, user_id)
				);

				CREATE INDEX idx_organization_users_user_id ON organization_users(user_id);
				CREATE INDEX idx_organization_users_organization_id ON organization_users(organization_id);
				CREATE INDEX idx_organization_users_status ON organization_users(status);

				CREATE TABLE IF NOT EXISTS workspace_users (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT REFERENCES roles(id),
					status VARCHAR(50) NOT NULL DEFAULT 'ACTIVE',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(workspace_id, user_id)
				);

				CREATE INDEX idx_workspace_users_user_id ON workspace_users(user_id);
				CREATE INDEX idx_workspace_users_workspace_id ON workspace_users(workspace_id);
			`,
		},
		{
			Version:     5,
			Description: "Create invites table",
			SQL: `
				CREATE TABLE IF NOT EXISTS invites (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(320) NOT NULL,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					workspace_id BIGINT REFERENCES workspaces(id) ON DELETE CASCADE,
					role_id BIGINT REFERENCES roles(id),
					token VARCHAR(255) NOT NULL UNIQUE,
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					expires_at TIMESTAMP NOT NULL,
					accepted_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_invites_email ON invites(email);
				CREATE INDEX idx_invites_organization_id ON invites(organization_id);
				CREATE INDEX idx_invites_token ON invites(token);
			`,
		},
		{
			Version:     6,
			Description: "Create SSO providers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sso_providers (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					kind VARCHAR(50) NOT NULL,
					organization_id BIGINT REFERENCES organizations(id) ON DELETE CASCADE,
					enabled BOOLEAN NOT NULL DEFAULT TRUE,
					config JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_sso_providers_organization_id ON sso_providers(organization_id);
				CREATE INDEX idx_sso_providers_kind ON sso_providers(kind);
			`,
		},
		{
			Version:     7,
			Description: "Create subscription feature cache table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscription_cache (
					subscription_id VARCHAR(255) PRIMARY KEY,
					product_id VARCHAR(255) NOT NULL DEFAULT '',
					features JSONB NOT NULL DEFAULT '{}',
					quotas JSONB NOT NULL DEFAULT '{}',
					snapshot JSONB NOT NULL DEFAULT '{}',
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     8,
			Description: "Create auth events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS auth_events (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					event VARCHAR(100) NOT NULL,
					metadata JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_auth_events_user_id ON auth_events(user_id);
				CREATE INDEX idx_auth_events_event ON auth_events(event);
				CREATE INDEX idx_auth_events_created_at ON auth_events(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gatehouse_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM gatehouse_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.WithField("version", migration.Version).
			WithField("description", migration.Description).
			Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO gatehouse_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

package sso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/storage/postgres"
)

// Store persists provider configurations. Secret fields inside the config
// are encrypted before they reach the database and decrypted on the way out.
type Store struct {
	db     postgres.DBTX
	cipher *Cipher
}

// NewStore creates a provider configuration store
func NewStore(db postgres.DBTX, cipher *Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// WithTx returns a store bound to the given transaction
func (s *Store) WithTx(tx postgres.DBTX) *Store {
	return &Store{db: tx, cipher: s.cipher}
}

// UpsertProvider inserts or replaces the configuration stored under a
// provider name. The name is the conflict key: one row per provider.
func (s *Store) UpsertProvider(ctx context.Context, provider *Provider) error {
	if _, ok := LookupDescriptor(provider.Name); !ok {
		return errs.NewValidation("name", fmt.Sprintf("unknown provider %q", provider.Name))
	}
	if !provider.Kind.Valid() {
		return errs.NewValidation("kind", fmt.Sprintf("unknown kind %q", provider.Kind))
	}

	configJSON, err := s.sealConfig(provider.Config)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sso_providers (name, kind, organization_id, enabled, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (name) DO UPDATE SET
			kind = EXCLUDED.kind,
			organization_id = EXCLUDED.organization_id,
			enabled = EXCLUDED.enabled,
			config = EXCLUDED.config,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query,
		provider.Name, provider.Kind, provider.OrganizationID, provider.Enabled, configJSON).
		Scan(&provider.ID, &provider.CreatedAt, &provider.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert sso provider: %w", err)
	}
	return nil
}

const providerSelect = `
	SELECT id, name, kind, organization_id, enabled, config, created_at, updated_at
	FROM sso_providers
`

// GetProvider retrieves a stored provider configuration by name
func (s *Store) GetProvider(ctx context.Context, name string) (*Provider, error) {
	row := s.db.QueryRowContext(ctx, providerSelect+" WHERE name = $1", name)
	provider, err := s.scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("sso provider")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sso provider: %w", err)
	}
	return provider, nil
}

// ListEnabled returns every enabled provider configuration
func (s *Store) ListEnabled(ctx context.Context) ([]*Provider, error) {
	rows, err := s.db.QueryContext(ctx, providerSelect+" WHERE enabled = TRUE ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list sso providers: %w", err)
	}
	defer rows.Close()

	var providers []*Provider
	for rows.Next() {
		provider, err := s.scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sso provider: %w", err)
		}
		providers = append(providers, provider)
	}
	return providers, rows.Err()
}

// DeleteProvider removes a stored configuration
func (s *Store) DeleteProvider(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sso_providers WHERE name = $1", name)
	if err != nil {
		return fmt.Errorf("failed to delete sso provider: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete sso provider: %w", err)
	}
	if affected == 0 {
		return errs.NewNotFound("sso provider")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanProvider(row rowScanner) (*Provider, error) {
	provider := &Provider{}
	var orgID sql.NullInt64
	var configJSON []byte

	err := row.Scan(
		&provider.ID, &provider.Name, &provider.Kind, &orgID,
		&provider.Enabled, &configJSON, &provider.CreatedAt, &provider.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if orgID.Valid {
		provider.OrganizationID = &orgID.Int64
	}
	if err := s.openConfig(configJSON, &provider.Config); err != nil {
		return nil, err
	}
	return provider, nil
}

func (s *Store) sealConfig(cfg Config) ([]byte, error) {
	var err error
	if cfg.ClientSecret != "" {
		if cfg.ClientSecret, err = s.cipher.EncryptString(cfg.ClientSecret); err != nil {
			return nil, err
		}
	}
	if cfg.PrivateKey != "" {
		if cfg.PrivateKey, err = s.cipher.EncryptString(cfg.PrivateKey); err != nil {
			return nil, err
		}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal provider config: %w", err)
	}
	return data, nil
}

func (s *Store) openConfig(data []byte, cfg *Config) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal provider config: %w", err)
	}
	var err error
	if cfg.ClientSecret != "" {
		if cfg.ClientSecret, err = s.cipher.DecryptString(cfg.ClientSecret); err != nil {
			return err
		}
	}
	if cfg.PrivateKey != "" {
		if cfg.PrivateKey, err = s.cipher.DecryptString(cfg.PrivateKey); err != nil {
			return err
		}
	}
	return nil
}

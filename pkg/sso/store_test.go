package sso

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock, *Cipher) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := NewCipher(testEncryptionKey)
	require.NoError(t, err)
	return NewStore(db, cipher), mock, cipher
}

func TestUpsertProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts and returns generated fields", func(t *testing.T) {
		store, mock, _ := newStore(t)
		now := time.Now()
		mock.ExpectQuery("INSERT INTO sso_providers .+ ON CONFLICT \\(name\\) DO UPDATE SET").
			WithArgs(ProviderOkta, string(KindOIDC), nil, true, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(7), now, now))

		provider := &Provider{
			Name:    ProviderOkta,
			Kind:    KindOIDC,
			Enabled: true,
			Config: Config{
				ClientID:     "client-id",
				ClientSecret: "client-secret",
				IssuerURL:    "https://example.okta.com",
			},
		}
		require.NoError(t, store.UpsertProvider(ctx, provider))
		assert.Equal(t, int64(7), provider.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown provider name is rejected before any query", func(t *testing.T) {
		store, mock, _ := newStore(t)
		err := store.UpsertProvider(ctx, &Provider{Name: "github", Kind: KindOIDC})
		assert.True(t, errs.IsValidation(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		store, _, _ := newStore(t)
		err := store.UpsertProvider(ctx, &Provider{Name: ProviderOkta, Kind: "ldap"})
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("client secret never reaches the database in the clear", func(t *testing.T) {
		store, mock, cipher := newStore(t)
		now := time.Now()

		var storedConfig []byte
		mock.ExpectQuery("INSERT INTO sso_providers").
			WithArgs(ProviderOkta, string(KindOIDC), nil, true, argCapture(&storedConfig)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(1), now, now))

		provider := &Provider{
			Name:    ProviderOkta,
			Kind:    KindOIDC,
			Enabled: true,
			Config:  Config{ClientID: "id", ClientSecret: "super-secret", IssuerURL: "https://x"},
		}
		require.NoError(t, store.UpsertProvider(ctx, provider))

		assert.NotContains(t, string(storedConfig), "super-secret")

		var stored Config
		require.NoError(t, json.Unmarshal(storedConfig, &stored))
		plaintext, err := cipher.DecryptString(stored.ClientSecret)
		require.NoError(t, err)
		assert.Equal(t, "super-secret", plaintext)
	})
}

// argCapture matches any []byte argument and records it
type captureMatcher struct {
	dest *[]byte
}

func argCapture(dest *[]byte) sqlmock.Argument {
	return captureMatcher{dest: dest}
}

func (m captureMatcher) Match(v driver.Value) bool {
	if b, ok := v.([]byte); ok {
		*m.dest = b
		return true
	}
	if s, ok := v.(string); ok {
		*m.dest = []byte(s)
		return true
	}
	return false
}

func TestGetProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("decrypts stored secrets", func(t *testing.T) {
		store, mock, cipher := newStore(t)
		sealed, err := cipher.EncryptString("client-secret")
		require.NoError(t, err)
		cfg := Config{ClientID: "id", ClientSecret: sealed, IssuerURL: "https://example.okta.com"}
		data, err := json.Marshal(cfg)
		require.NoError(t, err)

		now := time.Now()
		orgID := int64(42)
		mock.ExpectQuery("FROM sso_providers\\s+WHERE name = \\$1").
			WithArgs(ProviderOkta).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "kind", "organization_id", "enabled", "config", "created_at", "updated_at",
			}).AddRow(int64(3), ProviderOkta, string(KindOIDC), &orgID, true, data, now, now))

		provider, err := store.GetProvider(ctx, ProviderOkta)
		require.NoError(t, err)
		assert.Equal(t, "client-secret", provider.Config.ClientSecret)
		require.NotNil(t, provider.OrganizationID)
		assert.Equal(t, int64(42), *provider.OrganizationID)
	})

	t.Run("missing provider is not found", func(t *testing.T) {
		store, mock, _ := newStore(t)
		mock.ExpectQuery("FROM sso_providers\\s+WHERE name = \\$1").
			WithArgs("okta").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "kind", "organization_id", "enabled", "config", "created_at", "updated_at",
			}))

		_, err := store.GetProvider(ctx, "okta")
		assert.True(t, errs.IsNotFound(err))
	})
}

func TestListEnabled(t *testing.T) {
	store, mock, _ := newStore(t)
	mock.ExpectQuery("FROM sso_providers\\s+WHERE enabled = TRUE ORDER BY name").
		WillReturnRows(samlProviderRows(t))

	providers, err := store.ListEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, ProviderSAML, providers[0].Name)
	assert.Equal(t, KindSAML, providers[0].Kind)
}

func TestDeleteProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes by name", func(t *testing.T) {
		store, mock, _ := newStore(t)
		mock.ExpectExec("DELETE FROM sso_providers WHERE name = \\$1").
			WithArgs(ProviderSAML).
			WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, store.DeleteProvider(ctx, ProviderSAML))
	})

	t.Run("missing provider is not found", func(t *testing.T) {
		store, mock, _ := newStore(t)
		mock.ExpectExec("DELETE FROM sso_providers WHERE name = \\$1").
			WithArgs(ProviderSAML).
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.True(t, errs.IsNotFound(store.DeleteProvider(ctx, ProviderSAML)))
	})
}

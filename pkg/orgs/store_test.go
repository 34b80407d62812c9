package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/errs"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func orgRows(id int64, name, slug, plan string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "slug", "plan", "customer_id", "subscription_id", "product_id",
		"created_at", "updated_at",
	}).AddRow(id, name, slug, plan, "", "", "", now, now)
}

func TestCreateOrganization(t *testing.T) {
	t.Run("derives slug and defaults plan to free", func(t *testing.T) {
		store, mock := newStore(t)
		now := time.Now()

		mock.ExpectQuery("INSERT INTO organizations").
			WithArgs("Acme Corp!", "acme-corp", "free", "", "", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(1), now, now))

		org := &Organization{Name: "Acme Corp!"}
		require.NoError(t, store.CreateOrganization(context.Background(), org))
		assert.Equal(t, int64(1), org.ID)
		assert.Equal(t, "acme-corp", org.Slug)
		assert.Equal(t, "free", org.Plan)
	})

	t.Run("empty name is a validation error", func(t *testing.T) {
		store, _ := newStore(t)
		err := store.CreateOrganization(context.Background(), &Organization{})
		assert.True(t, errs.IsValidation(err))
	})
}

func TestGetOrganization(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newStore(t)

		mock.ExpectQuery("SELECT id, name, COALESCE").
			WithArgs(int64(1)).
			WillReturnRows(orgRows(1, "Acme", "acme", "pro"))

		org, err := store.GetOrganization(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Acme", org.Name)
		assert.Equal(t, "pro", org.Plan)
	})

	t.Run("missing", func(t *testing.T) {
		store, mock := newStore(t)

		mock.ExpectQuery("SELECT id, name, COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "slug", "plan", "customer_id", "subscription_id", "product_id",
				"created_at", "updated_at",
			}))

		_, err := store.GetOrganization(context.Background(), 99)
		assert.True(t, errs.IsNotFound(err))
	})

	t.Run("empty subscription id is a validation error", func(t *testing.T) {
		store, _ := newStore(t)
		_, err := store.GetOrganizationBySubscriptionID(context.Background(), "")
		assert.True(t, errs.IsValidation(err))
	})
}

func TestUpdateBilling(t *testing.T) {
	t.Run("writes billing identifiers", func(t *testing.T) {
		store, mock := newStore(t)

		mock.ExpectExec("UPDATE organizations").
			WithArgs("cus_1", "sub_1", "prod_1", "pro", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := store.UpdateBilling(context.Background(), 1, "cus_1", "sub_1", "prod_1", "pro")
		assert.NoError(t, err)
	})

	t.Run("missing organization", func(t *testing.T) {
		store, mock := newStore(t)

		mock.ExpectExec("UPDATE organizations").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateBilling(context.Background(), 99, "cus_1", "", "", "")
		assert.True(t, errs.IsNotFound(err))
	})
}

func TestCreateWorkspace(t *testing.T) {
	t.Run("requires name and organization", func(t *testing.T) {
		store, _ := newStore(t)

		err := store.CreateWorkspace(context.Background(), &Workspace{OrganizationID: 1})
		assert.True(t, errs.IsValidation(err))

		err = store.CreateWorkspace(context.Background(), &Workspace{Name: "Dev"})
		assert.True(t, errs.IsValidation(err))
	})

	t.Run("inserts", func(t *testing.T) {
		store, mock := newStore(t)
		now := time.Now()

		mock.ExpectQuery("INSERT INTO workspaces").
			WithArgs(int64(1), "Dev", false).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(7), now, now))

		ws := &Workspace{OrganizationID: 1, Name: "Dev"}
		require.NoError(t, store.CreateWorkspace(context.Background(), ws))
		assert.Equal(t, int64(7), ws.ID)
	})
}

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "Acme", "acme"},
		{"spaces become dashes", "Acme Corp", "acme-corp"},
		{"punctuation is dropped", "Acme, Inc.", "acme-inc"},
		{"digits survive", "Team 42", "team-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, generateSlug(tt.input))
		})
	}
}

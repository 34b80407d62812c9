package sso

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/auth"
	"github.com/gatehouse-io/gatehouse/pkg/credentials"
	"github.com/gatehouse-io/gatehouse/pkg/errs"
	"github.com/gatehouse-io/gatehouse/pkg/identity"
	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/sessions"
)

func newProvisioner(t *testing.T) (*Provisioner, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, nil)
	users := identity.NewStore(db)
	creds := credentials.NewService(credentials.NewStore(db), users, nil, time.Hour)
	sessionStore := sessions.NewStore(db)
	authService := auth.NewService(db, users, creds, sessionStore, nil, logger, nil, sessions.DefaultSessionTTL)

	return NewProvisioner(users, authService, logger), mock
}

func provUserRows(id int64, email, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "first_name", "last_name", "email_verified", "status", "created_at", "updated_at",
	}).AddRow(id, email, "Jane", "Doe", true, status, now, now)
}

func expectSessionCreation(mock sqlmock.Sqlmock, userID int64, email, status string) {
	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, email, first_name, last_name, email_verified, status.+WHERE id = \\$1").
		WithArgs(userID).
		WillReturnRows(provUserRows(userID, email, status))
	mock.ExpectQuery("INSERT INTO login_sessions").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(100), now, now))
	mock.ExpectCommit()
}

func TestProvisionerLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("known active user gets a session", func(t *testing.T) {
		provisioner, mock := newProvisioner(t)
		mock.ExpectQuery("FROM users\\s+WHERE email = \\$1").
			WithArgs("jane@example.com").
			WillReturnRows(provUserRows(10, "jane@example.com", "ACTIVE"))
		expectSessionCreation(mock, 10, "jane@example.com", "ACTIVE")

		session, err := provisioner.Login(ctx, &Identity{
			Provider: ProviderOkta,
			Email:    "jane@example.com",
		}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(10), session.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user without auto-provision reads as failed login", func(t *testing.T) {
		provisioner, mock := newProvisioner(t)
		mock.ExpectQuery("FROM users\\s+WHERE email = \\$1").
			WithArgs("stranger@example.com").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "email", "first_name", "last_name", "email_verified", "status", "created_at", "updated_at",
			}))

		_, err := provisioner.Login(ctx, &Identity{Email: "stranger@example.com"}, false)
		assert.True(t, errs.IsAuthentication(err))
		assert.Equal(t, "invalid credentials", err.Error())
	})

	t.Run("unknown user with auto-provision is created active", func(t *testing.T) {
		provisioner, mock := newProvisioner(t)
		now := time.Now()
		mock.ExpectQuery("FROM users\\s+WHERE email = \\$1").
			WithArgs("new@example.com").
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "email", "first_name", "last_name", "email_verified", "status", "created_at", "updated_at",
			}))
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("new@example.com", "New", "Person", true, "ACTIVE").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(11), now, now))
		expectSessionCreation(mock, 11, "new@example.com", "ACTIVE")

		session, err := provisioner.Login(ctx, &Identity{
			Provider:  ProviderOkta,
			Email:     "new@example.com",
			FirstName: "New",
			LastName:  "Person",
		}, true)
		require.NoError(t, err)
		assert.Equal(t, int64(11), session.UserID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending user is activated by the asserted identity", func(t *testing.T) {
		provisioner, mock := newProvisioner(t)
		mock.ExpectQuery("FROM users\\s+WHERE email = \\$1").
			WithArgs("pending@example.com").
			WillReturnRows(provUserRows(12, "pending@example.com", "PENDING"))
		mock.ExpectExec("UPDATE users SET status = \\$1").
			WithArgs("ACTIVE", int64(12)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectSessionCreation(mock, 12, "pending@example.com", "ACTIVE")

		session, err := provisioner.Login(ctx, &Identity{Email: "pending@example.com"}, false)
		require.NoError(t, err)
		assert.Equal(t, int64(12), session.UserID)
	})

	t.Run("disabled user reads as failed login", func(t *testing.T) {
		provisioner, mock := newProvisioner(t)
		mock.ExpectQuery("FROM users\\s+WHERE email = \\$1").
			WithArgs("gone@example.com").
			WillReturnRows(provUserRows(13, "gone@example.com", "DISABLED"))

		_, err := provisioner.Login(ctx, &Identity{Email: "gone@example.com"}, true)
		assert.True(t, errs.IsAuthentication(err))
		assert.Equal(t, "invalid credentials", err.Error())
	})

	t.Run("identity without email is rejected", func(t *testing.T) {
		provisioner, _ := newProvisioner(t)
		_, err := provisioner.Login(ctx, &Identity{ExternalID: "abc"}, true)
		assert.True(t, errs.IsValidation(err))
	})
}

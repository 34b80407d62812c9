package auth

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRecord(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	recorder := NewAuditRecorder(db)

	t.Run("records an event with metadata", func(t *testing.T) {
		userID := int64(10)

		mock.ExpectExec("INSERT INTO auth_events").
			WithArgs(&userID, EventLoginSuccess, []byte(`{"session_id":5}`)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := recorder.Record(context.Background(), &userID, EventLoginSuccess, map[string]interface{}{
			"session_id": 5,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil user is allowed", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO auth_events").
			WithArgs(nil, EventLoginFailure, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := recorder.Record(context.Background(), nil, EventLoginFailure, nil)
		require.NoError(t, err)
	})

	t.Run("empty event is rejected", func(t *testing.T) {
		err := recorder.Record(context.Background(), nil, "", nil)
		assert.Error(t, err)
	})
}

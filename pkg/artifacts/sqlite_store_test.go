package artifacts

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore_PutInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS artifacts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)

	mock.ExpectExec("INSERT OR IGNORE INTO artifacts").
		WillReturnError(assert.AnError)

	_, err = s.Put(context.Background(), []byte("data"))
	assert.ErrorContains(t, err, "failed to insert artifact")
	assert.NoError(t, mock.ExpectationsWereMet())
}

package handle

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpcsh/rpcsh/internal/testutil"
	"github.com/rpcsh/rpcsh/internal/value"
)

func newTestDB(t *testing.T) (*DBHandle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	h := NewDB(DBConfig{Host: "db.test", Database: "app", Username: "u"}, testutil.NewTestLogger(t))
	h.open = func(string) (*sql.DB, error) { return db, nil }

	mock.ExpectPing()
	require.NoError(t, h.Connect(context.Background()))
	return h, mock
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(DBConfig{Host: "db.test", Database: "app", Username: "u", Password: "pw"})
	assert.Equal(t, "host=db.test port=5432 dbname=app sslmode=disable user=u password=pw", dsn)

	dsn = buildDSN(DBConfig{Database: "app"})
	assert.Equal(t, "host=localhost port=5432 dbname=app sslmode=disable", dsn)
}

func TestQueryAutocommitBrackets(t *testing.T) {
	h, mock := newTestDB(t)

	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))

	v := h.Query(context.Background(), "SELECT 1", true)

	rows, ok := v.(value.Array)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row, ok := rows[0].(value.Struct)
	require.True(t, ok)
	got, ok := row.Get("one")
	require.True(t, ok)
	assert.Equal(t, value.Int(1), got)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryWithoutAutocommit(t *testing.T) {
	h, mock := newTestDB(t)

	// No BEGIN/COMMIT around the statement when autocommit is off.
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	v := h.Query(context.Background(), "SELECT 1", false)
	_, ok := v.(value.Array)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRowlessStatementReturnsOK(t *testing.T) {
	h, mock := newTestDB(t)

	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 3))

	v := h.Query(context.Background(), "DELETE FROM users", false)
	assert.Equal(t, value.String("OK"), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryErrorBecomesText(t *testing.T) {
	h, mock := newTestDB(t)

	mock.ExpectQuery("SELECT nope").WillReturnError(errors.New(`column "nope" does not exist`))

	v := h.Query(context.Background(), "SELECT nope FROM t", false)
	s, ok := v.(value.String)
	require.True(t, ok)
	assert.Contains(t, string(s), "Error: ")
	assert.Contains(t, string(s), "does not exist")
}

func TestQueryErrorRollsBackImplicitTransaction(t *testing.T) {
	h, mock := newTestDB(t)

	// A failed statement inside the implicit BEGIN must roll back, or
	// the connection is stuck in an aborted transaction.
	mock.ExpectExec("BEGIN").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT broken").WillReturnError(errors.New("syntax error"))
	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	v := h.Query(context.Background(), "SELECT broken FROM t", true)
	s, ok := v.(value.String)
	require.True(t, ok)
	assert.Contains(t, string(s), "Error: syntax error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryReconnectsOnceOnDisconnect(t *testing.T) {
	h, mock := newTestDB(t)

	mock.ExpectQuery("SELECT 2").
		WillReturnError(errors.New("read tcp 10.0.0.1:5432: connection reset by peer"))

	// The repair path dials a fresh connection and retries the same
	// statement exactly once.
	db2, mock2, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	h.open = func(string) (*sql.DB, error) { return db2, nil }
	mock2.ExpectPing()
	mock2.ExpectQuery("SELECT 2").
		WillReturnRows(sqlmock.NewRows([]string{"two"}).AddRow(2))

	v := h.Query(context.Background(), "SELECT 2", false)
	rows, ok := v.(value.Array)
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.NoError(t, mock2.ExpectationsWereMet())
}

func TestQueryReconnectFailureBecomesText(t *testing.T) {
	h, mock := newTestDB(t)

	mock.ExpectQuery("SELECT 3").
		WillReturnError(errors.New("server has gone away"))
	h.open = func(string) (*sql.DB, error) { return nil, errors.New("no route to host") }

	v := h.Query(context.Background(), "SELECT 3", false)
	s, ok := v.(value.String)
	require.True(t, ok)
	assert.Contains(t, string(s), "Error: reconnect failed")
}

func TestCommitRollbackUnderAutocommit(t *testing.T) {
	h, _ := newTestDB(t)

	// Explicit transaction control is a no-op while autocommit already
	// brackets every statement.
	assert.Equal(t, value.String("OK"), h.Commit(context.Background(), true))
	assert.Equal(t, value.String("OK"), h.Rollback(context.Background(), true))
}

func TestCommitRollbackManual(t *testing.T) {
	h, mock := newTestDB(t)

	mock.ExpectExec("COMMIT").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, value.String("OK"), h.Commit(context.Background(), false))
	assert.Equal(t, value.String("OK"), h.Rollback(context.Background(), false))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRawSkipsBracketing(t *testing.T) {
	h, mock := newTestDB(t)

	mock.ExpectQuery("SELECT 1").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	v := h.Raw(context.Background(), "SELECT 1")
	_, ok := v.(value.Array)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryNotConnected(t *testing.T) {
	h := NewDB(DBConfig{Database: "app"}, nil)
	v := h.Query(context.Background(), "SELECT 1", false)
	assert.Equal(t, value.String("Error: not connected"), v)
}

func TestIsDisconnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gone away", errors.New("server has gone away"), true},
		{"reset", errors.New("read: connection reset by peer"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"syntax", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isDisconnect(tt.err))
		})
	}
}

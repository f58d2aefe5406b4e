package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/syssam/veloq/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(-time.Nanosecond),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	assert.Equal(t, -time.Nanosecond, drv.SlowThreshold())

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE FROM BOOK").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT 2").WillReturnError(errors.New("boom"))

	_, err = QueryValues(context.Background(), drv, "SELECT 1", []any{})
	require.NoError(t, err)
	_, err = ExecAffected(context.Background(), drv, "DELETE FROM BOOK", []any{})
	require.NoError(t, err)
	_, err = QueryValues(context.Background(), drv, "SELECT 2", []any{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.QueryStats().Stats()
	assert.EqualValues(t, 2, s.TotalQueries)
	assert.EqualValues(t, 1, s.TotalExecs)
	assert.EqualValues(t, 1, s.Errors)
	assert.EqualValues(t, 3, s.SlowQueries)
	assert.Len(t, slow, 3)
	assert.Contains(t, s.String(), "queries=2 execs=1")
	assert.Equal(t, map[string]int64{"SELECT": 2, "DELETE": 1}, s.Verbs)

	drv.QueryStats().Reset()
	assert.Zero(t, drv.QueryStats().Stats().TotalQueries)
	assert.Empty(t, drv.QueryStats().Stats().Verbs)
	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())
}

func TestStatsTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := NewStatsDriver(OpenDB(dialect.SQLite, db))
	drv.SetSlowThreshold(time.Hour)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE BOOK").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "UPDATE BOOK SET NAME = ?", []any{"x"}, nil))
	require.NoError(t, tx.Commit())
	assert.EqualValues(t, 1, drv.QueryStats().Stats().TotalExecs)
	assert.Zero(t, drv.QueryStats().Stats().SlowQueries)
	assert.EqualValues(t, 1, drv.QueryStats().Stats().Verbs["UPDATE"])
}

func TestVerb(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"SELECT 1":                       "SELECT",
		"  select tb_1_.ID FROM BOOK":    "SELECT",
		"(SELECT 1) UNION (SELECT 2)":    "SELECT",
		"UPDATE BOOK SET DELETED = TRUE": "UPDATE",
		"insert\ninto BOOK":             "INSERT",
		"":                               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, verb(in), in)
	}
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewDebugDriver(OpenDB(dialect.SQLite, db), logger)

	mock.ExpectQuery("SELECT tb_1_.ID FROM BOOK tb_1_").WillReturnRows(sqlmock.NewRows([]string{"ID"}))
	_, err = QueryValues(context.Background(), drv, "SELECT tb_1_.ID FROM BOOK tb_1_", []any{})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "SELECT tb_1_.ID FROM BOOK tb_1_")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

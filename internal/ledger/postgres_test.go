package ledger

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flexibleSQLMatcher turns sql into a whitespace-insensitive regex.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyTime accepts any timestamp argument.
var anyTime = ArgumentMatcherFunc(func(v interface{}) bool {
	switch v.(type) {
	case time.Time, *time.Time:
		return true
	}
	return false
})

// jsonArg matches a JSON-encoded argument by its text.
func jsonArg(want string) ArgumentMatcherFunc {
	return func(v interface{}) bool {
		b, ok := v.([]byte)
		return ok && string(b) == want
	}
}

var runColumns = []string{
	"id", "preset", "variant", "params", "argv", "search_path", "workdir", "hostname",
	"git_commit", "git_dirty", "log_path", "status", "exit_code", "last_error", "started_at", "finished_at",
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)

	mockPool.ExpectPing()
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	store, err := NewPostgresStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return store, mockPool
}

func TestNewPostgresStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgresStore(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return error if the table cannot be created", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).WillReturnError(errors.New("permission denied"))

		_, err = NewPostgresStore(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "launcher_runs")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresBeginFinish(t *testing.T) {
	ctx := context.Background()
	store, mockPool := newMockStore(t)

	r := NewRecord("ppo")
	r.Params = map[string]string{"system": "3wrobot_kin"}
	r.Argv = []string{"python3", "run.py", "system=3wrobot_kin"}
	r.SearchPath = "/srv/regelum"
	r.Workdir = "/srv/regelum/presets"

	mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertRun)).
		WithArgs(
			r.ID, "ppo", "", jsonArg(`{"system":"3wrobot_kin"}`), jsonArg(`["python3","run.py","system=3wrobot_kin"]`),
			"/srv/regelum", "/srv/regelum/presets", r.Hostname,
			"", false, "", "running", 0, "",
			anyTime, (*time.Time)(nil),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Begin(ctx, r))

	r.Complete(1, false, time.Now())
	mockPool.ExpectExec(flexibleSQLMatcher(sqlFinishRun)).
		WithArgs(r.ID, "failed", 1, "", anyTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.Finish(ctx, r))

	t.Run("finish of an unknown run", func(t *testing.T) {
		mockPool.ExpectExec(flexibleSQLMatcher(sqlFinishRun)).
			WithArgs("missing", "failed", 1, "", anyTime).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		missing := *r
		missing.ID = "missing"
		assert.ErrorIs(t, store.Finish(ctx, &missing), ErrRunNotFound)
	})

	t.Run("insert failure is wrapped", func(t *testing.T) {
		dbErr := errors.New("connection reset")
		anyArgs := make([]any, 16)
		for i := range anyArgs {
			anyArgs[i] = pgxmock.AnyArg()
		}
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertRun)).
			WithArgs(anyArgs...).
			WillReturnError(dbErr)

		rec := NewRecord("calf")
		err := store.Begin(ctx, rec)
		assert.ErrorIs(t, err, dbErr)
		assert.ErrorContains(t, err, "failed to insert run "+rec.ID)
	})

	mockPool.ExpectClose()
	require.NoError(t, store.Close())
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresQueries(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Minute)

	rows := func() *pgxmock.Rows {
		return pgxmock.NewRows(runColumns).
			AddRow("4f1c2a9e-1111", "ppo", "ros", []byte(`{"system":"kin"}`), []byte(`["python3","run.py"]`),
				"/srv", "/srv/presets", "gpu-01", "abc123", true, "/logs/4f1c.log", "successful", 0, "",
				started, &finished).
			AddRow("4f1c2a9e-2222", "calf", "", []byte(`{}`), []byte(`[]`),
				"/srv", "/srv/presets", "gpu-02", "", false, "", "running", 0, "",
				started.Add(-time.Hour), nil)
	}

	t.Run("list with a limit", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRuns + " ORDER BY started_at DESC LIMIT $1;")).
			WithArgs(10).
			WillReturnRows(rows())

		got, err := store.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)

		first := got[0]
		assert.Equal(t, "ros", first.Variant)
		assert.Equal(t, map[string]string{"system": "kin"}, first.Params)
		assert.Equal(t, []string{"python3", "run.py"}, first.Argv)
		assert.True(t, first.GitDirty)
		assert.Equal(t, StatusSuccessful, first.Status)
		require.NotNil(t, first.FinishedAt)
		assert.Equal(t, 5*time.Minute, first.Duration())

		assert.Equal(t, StatusRunning, got[1].Status)
		assert.Nil(t, got[1].FinishedAt)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("list all", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRuns + " ORDER BY started_at DESC;")).
			WillReturnRows(pgxmock.NewRows(runColumns))

		got, err := store.List(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("get by prefix", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRuns + sqlWhereIDPrefix)).
			WithArgs("4f1c2a9e").
			WillReturnRows(rows())

		_, err := store.Get(ctx, "4f1c2a9e")
		assert.ErrorIs(t, err, ErrAmbiguousID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("prefix wildcards are literal", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRuns + sqlWhereIDPrefix)).
			WithArgs("4f_%").
			WillReturnRows(pgxmock.NewRows(runColumns))

		_, err := store.Get(ctx, "4f_%")
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("get unknown id", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRuns + sqlWhereIDPrefix)).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows(runColumns))

		_, err := store.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("query failure", func(t *testing.T) {
		store, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRuns)).WillReturnError(errors.New("timeout"))

		_, err := store.List(ctx, 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query runs")
	})
}

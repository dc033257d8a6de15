package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with a mock pool.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS launcher_runs (
            id          TEXT PRIMARY KEY,
            preset      TEXT NOT NULL,
            variant     TEXT NOT NULL DEFAULT '',
            params      JSONB NOT NULL DEFAULT '{}',
            argv        JSONB NOT NULL DEFAULT '[]',
            search_path TEXT NOT NULL DEFAULT '',
            workdir     TEXT NOT NULL DEFAULT '',
            hostname    TEXT NOT NULL DEFAULT '',
            git_commit  TEXT NOT NULL DEFAULT '',
            git_dirty   BOOLEAN NOT NULL DEFAULT FALSE,
            log_path    TEXT NOT NULL DEFAULT '',
            status      TEXT NOT NULL,
            exit_code   INTEGER NOT NULL DEFAULT 0,
            last_error  TEXT NOT NULL DEFAULT '',
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ
        );
    `
	sqlUpsertRun = `
        INSERT INTO launcher_runs (id, preset, variant, params, argv, search_path, workdir, hostname,
            git_commit, git_dirty, log_path, status, exit_code, last_error, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            exit_code = EXCLUDED.exit_code,
            last_error = EXCLUDED.last_error,
            finished_at = EXCLUDED.finished_at;
    `
	sqlFinishRun = `
        UPDATE launcher_runs
        SET status = $2, exit_code = $3, last_error = $4, finished_at = $5
        WHERE id = $1;
    `
	sqlSelectRuns = `
        SELECT id, preset, variant, params, argv, search_path, workdir, hostname,
            git_commit, git_dirty, log_path, status, exit_code, last_error, started_at, finished_at
        FROM launcher_runs
    `
	// starts_with keeps "_" and "%" in a typed prefix literal.
	sqlWhereIDPrefix = ` WHERE starts_with(id, $1) ORDER BY started_at DESC LIMIT 2;`
)

// PostgresStore keeps run records in the launcher_runs table.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
}

// NewPostgresStore verifies the connection and creates the table if needed.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, sqlCreateRuns); err != nil {
		return nil, fmt.Errorf("failed to create launcher_runs: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("ledger"),
	}, nil
}

func (s *PostgresStore) Begin(ctx context.Context, r *Record) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("encoding params: %w", err)
	}
	argv, err := json.Marshal(r.Argv)
	if err != nil {
		return fmt.Errorf("encoding argv: %w", err)
	}

	_, err = s.pool.Exec(ctx, sqlUpsertRun,
		r.ID, r.Preset, r.Variant, params, argv, r.SearchPath, r.Workdir, r.Hostname,
		r.GitCommit, r.GitDirty, r.LogPath, string(r.Status), r.ExitCode, r.LastError,
		r.StartedAt.UTC(), utcOrNil(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) Finish(ctx context.Context, r *Record) error {
	tag, err := s.pool.Exec(ctx, sqlFinishRun,
		r.ID, string(r.Status), r.ExitCode, r.LastError, utcOrNil(r.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, r.ID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}
	records, err := s.query(ctx, sqlSelectRuns+sqlWhereIDPrefix, id)
	if err != nil {
		return nil, err
	}
	return matchID(records, id)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit > 0 {
		return s.query(ctx, sqlSelectRuns+" ORDER BY started_at DESC LIMIT $1;", limit)
	}
	return s.query(ctx, sqlSelectRuns+" ORDER BY started_at DESC;")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			r      Record
			params []byte
			argv   []byte
			status string
		)
		err := rows.Scan(
			&r.ID, &r.Preset, &r.Variant, &params, &argv, &r.SearchPath, &r.Workdir, &r.Hostname,
			&r.GitCommit, &r.GitDirty, &r.LogPath, &status, &r.ExitCode, &r.LastError,
			&r.StartedAt, &r.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &r.Params); err != nil {
				return nil, fmt.Errorf("decoding params of run %s: %w", r.ID, err)
			}
		}
		if len(argv) > 0 {
			if err := json.Unmarshal(argv, &r.Argv); err != nil {
				return nil, fmt.Errorf("decoding argv of run %s: %w", r.ID, err)
			}
		}
		r.Status = Status(status)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"gradcafe/internal"
)

type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func OpenPostgres(ctx context.Context, dsn string, log zerolog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &Postgres{pool: pool, log: log.With().Str("component", "storage").Str("backend", "postgres").Logger()}
	if err := p.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS applicants (
  p_id BIGSERIAL PRIMARY KEY,
  result_id BIGINT NOT NULL UNIQUE,
  program TEXT,
  comments TEXT,
  date_added DATE,
  url TEXT,
  status TEXT,
  term TEXT,
  us_or_international TEXT,
  gpa DOUBLE PRECISION,
  gre DOUBLE PRECISION,
  gre_v DOUBLE PRECISION,
  gre_aw DOUBLE PRECISION,
  degree TEXT,
  llm_generated_program TEXT,
  llm_generated_university TEXT
);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  command TEXT NOT NULL,
  status TEXT NOT NULL,
  stage TEXT,
  counts_json JSONB NOT NULL,
  error TEXT,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return err
}

func (p *Postgres) UpsertApplicants(ctx context.Context, rows []internal.CanonicalRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if skipped := len(rows) - countUpsertable(rows); skipped > 0 {
		p.log.Warn().Int("skipped", skipped).Msg("rows without result_id are not stored")
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := upsertApplicantSQL(func(n int) string { return "$" + strconv.Itoa(n) })
	affected := 0
	for i, row := range rows {
		a, ok := ApplicantFromRow(row)
		if ok {
			tag, err := tx.Exec(ctx, query,
				a.ResultID, a.Program, a.Comments, a.DateAdded, a.URL, a.Status, a.Term,
				a.USOrInternational, a.GPA, a.GRE, a.GREV, a.GREAW, a.Degree,
				a.LLMGeneratedProgram, a.LLMGeneratedUniversity,
			)
			if err != nil {
				return 0, fmt.Errorf("upsert result_id=%d: %w", a.ResultID, err)
			}
			affected += int(tag.RowsAffected())
		}
		logProgress(p.log, i+1, len(rows))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return affected, nil
}

func (p *Postgres) GetApplicant(ctx context.Context, resultID int64) (*Applicant, error) {
	var a Applicant
	err := p.pool.QueryRow(ctx, selectApplicantSQL+"$1", resultID).Scan(
		&a.PID, &a.ResultID, &a.Program, &a.Comments, &a.DateAdded, &a.URL, &a.Status, &a.Term,
		&a.USOrInternational, &a.GPA, &a.GRE, &a.GREV, &a.GREAW, &a.Degree,
		&a.LLMGeneratedProgram, &a.LLMGeneratedUniversity,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Postgres) CountApplicants(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM applicants`).Scan(&n)
	return n, err
}

func (p *Postgres) InsertRun(ctx context.Context, run Run) error {
	countsJSON, _ := json.Marshal(run.Counts)
	_, err := p.pool.Exec(ctx, `
INSERT INTO runs (id, command, status, stage, counts_json, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, run.ID, run.Command, string(run.Status), run.Stage, string(countsJSON), run.Error, run.StartedAt, run.FinishedAt)
	return err
}

func (p *Postgres) LastRun(ctx context.Context) (*Run, error) {
	var run Run
	var status string
	var stage, runErr *string
	var countsJSON []byte
	err := p.pool.QueryRow(ctx, `
SELECT id, command, status, stage, counts_json, error, started_at, finished_at
FROM runs ORDER BY started_at DESC LIMIT 1
`).Scan(&run.ID, &run.Command, &status, &stage, &countsJSON, &runErr, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	if stage != nil {
		run.Stage = *stage
	}
	if runErr != nil {
		run.Error = *runErr
	}
	_ = json.Unmarshal(countsJSON, &run.Counts)
	return &run, nil
}

func (p *Postgres) SetMetadata(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO metadata (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = now()
`, key, value)
	return err
}

func (p *Postgres) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM metadata WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

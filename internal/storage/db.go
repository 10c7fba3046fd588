package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"gradcafe/internal"
)

// runTimeLayout has a fixed width so run timestamps sort as text.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB struct {
	conn *sql.DB
	log  zerolog.Logger
}

func OpenSQLite(path string, log zerolog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, log: log.With().Str("component", "storage").Str("backend", "sqlite").Logger()}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS applicants (
  p_id INTEGER PRIMARY KEY AUTOINCREMENT,
  result_id INTEGER NOT NULL UNIQUE,
  program TEXT,
  comments TEXT,
  date_added TEXT,
  url TEXT,
  status TEXT,
  term TEXT,
  us_or_international TEXT,
  gpa REAL,
  gre REAL,
  gre_v REAL,
  gre_aw REAL,
  degree TEXT,
  llm_generated_program TEXT,
  llm_generated_university TEXT
);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  command TEXT NOT NULL,
  status TEXT NOT NULL,
  stage TEXT,
  countsJson TEXT NOT NULL,
  error TEXT,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertApplicants(ctx context.Context, rows []internal.CanonicalRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if skipped := len(rows) - countUpsertable(rows); skipped > 0 {
		d.log.Warn().Int("skipped", skipped).Msg("rows without result_id are not stored")
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertApplicantSQL(func(int) string { return "?" }))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	affected := 0
	for i, row := range rows {
		a, ok := ApplicantFromRow(row)
		if ok {
			res, err := stmt.ExecContext(ctx,
				a.ResultID, a.Program, a.Comments, sqliteDate(a.DateAdded), a.URL, a.Status, a.Term,
				a.USOrInternational, a.GPA, a.GRE, a.GREV, a.GREAW, a.Degree,
				a.LLMGeneratedProgram, a.LLMGeneratedUniversity,
			)
			if err != nil {
				return 0, fmt.Errorf("upsert result_id=%d: %w", a.ResultID, err)
			}
			n, _ := res.RowsAffected()
			affected += int(n)
		}
		logProgress(d.log, i+1, len(rows))
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

func (d *DB) GetApplicant(ctx context.Context, resultID int64) (*Applicant, error) {
	var a Applicant
	var dateAdded *string
	err := d.conn.QueryRowContext(ctx, selectApplicantSQL+"?", resultID).Scan(
		&a.PID, &a.ResultID, &a.Program, &a.Comments, &dateAdded, &a.URL, &a.Status, &a.Term,
		&a.USOrInternational, &a.GPA, &a.GRE, &a.GREV, &a.GREAW, &a.Degree,
		&a.LLMGeneratedProgram, &a.LLMGeneratedUniversity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if dateAdded != nil {
		if parsed, err := time.Parse(dateColumnValue, *dateAdded); err == nil {
			a.DateAdded = &parsed
		}
	}
	return &a, nil
}

func (d *DB) CountApplicants(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM applicants`).Scan(&n)
	return n, err
}

func (d *DB) InsertRun(ctx context.Context, run Run) error {
	countsJSON, _ := json.Marshal(run.Counts)
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO runs (id, command, status, stage, countsJson, error, startedAt, finishedAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, run.ID, run.Command, string(run.Status), run.Stage, string(countsJSON), run.Error,
		run.StartedAt.UTC().Format(runTimeLayout), run.FinishedAt.UTC().Format(runTimeLayout))
	return err
}

func (d *DB) LastRun(ctx context.Context) (*Run, error) {
	var run Run
	var status, countsJSON, startedAt, finishedAt string
	var stage, runErr sql.NullString
	err := d.conn.QueryRowContext(ctx, `
SELECT id, command, status, stage, countsJson, error, startedAt, finishedAt
FROM runs ORDER BY startedAt DESC LIMIT 1
`).Scan(&run.ID, &run.Command, &status, &stage, &countsJSON, &runErr, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.Stage = stage.String
	run.Error = runErr.String
	_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
	run.StartedAt, _ = time.Parse(runTimeLayout, startedAt)
	run.FinishedAt, _ = time.Parse(runTimeLayout, finishedAt)
	return &run, nil
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func sqliteDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateColumnValue)
	return &s
}

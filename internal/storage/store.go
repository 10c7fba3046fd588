package storage

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gradcafe/internal"
)

const (
	MetaLastRun     = "pipeline.last_run"
	MetaLastScrape  = "scrape.last_run"
	progressEvery   = 100
	dateColumnValue = "2006-01-02"
)

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one entry of the run log.
type Run struct {
	ID         string
	Command    string
	Status     RunStatus
	Stage      string
	Counts     internal.RunCounts
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is implemented by the SQLite and PostgreSQL backends.
type Store interface {
	UpsertApplicants(ctx context.Context, rows []internal.CanonicalRow) (int, error)
	GetApplicant(ctx context.Context, resultID int64) (*Applicant, error)
	CountApplicants(ctx context.Context) (int, error)
	InsertRun(ctx context.Context, run Run) error
	LastRun(ctx context.Context) (*Run, error)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (*string, error)
	Close() error
}

// Open picks the backend from the DSN: postgres:// and postgresql:// URLs use
// PostgreSQL, anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, log zerolog.Logger) (Store, error) {
	if IsPostgresDSN(dsn) {
		return OpenPostgres(ctx, dsn, log)
	}
	return OpenSQLite(dsn, log)
}

func IsPostgresDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

func logProgress(log zerolog.Logger, i, total int) {
	if i%progressEvery == 0 || i == total {
		log.Info().Int("processed", i).Int("total", total).Msg("applicants upsert progress")
	}
}

package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gradcafe/internal"
	"gradcafe/internal/config"
	"gradcafe/internal/master"
	"gradcafe/internal/standardizer"
	"gradcafe/internal/storage"
)

type Standardizer interface {
	Standardize(ctx context.Context, records []internal.RawRecord) ([]internal.StandardizedPair, standardizer.Stats, error)
}

type ProcessingService struct {
	store        storage.Store
	standardizer Standardizer
	master       *master.Reconciler
	cfg          config.Config
	log          zerolog.Logger
	now          func() time.Time
}

func NewProcessingService(store storage.Store, std Standardizer, cfg config.Config, log zerolog.Logger) *ProcessingService {
	return &ProcessingService{
		store:        store,
		standardizer: std,
		master:       master.NewReconciler(cfg.MasterFile, log),
		cfg:          cfg,
		log:          log.With().Str("component", "pipeline").Logger(),
		now:          time.Now,
	}
}

func (s *ProcessingService) Master() *master.Reconciler { return s.master }

func (s *ProcessingService) KnownIDs() map[int64]struct{} { return s.master.KnownIDs() }

type CleanResult struct {
	Rows   []internal.CanonicalRow
	Added  []internal.CanonicalRow
	Counts internal.RunCounts
}

// Clean turns raw records into canonical rows, appends the new ones to the
// master file and rewrites the no-LLM applicant file.
func (s *ProcessingService) Clean(ctx context.Context, records []internal.RawRecord) (CleanResult, error) {
	res := CleanResult{Counts: internal.RunCounts{Raw: len(records)}}

	normalized := NormalizeRecords(records)

	pairs, stats, err := s.standardizer.Standardize(ctx, normalized)
	res.Counts.UniqueKeys = stats.UniqueKeys
	res.Counts.Batches = stats.Batches
	if err != nil {
		return res, &StageError{Stage: StageStandardize, Err: err}
	}

	rows, err := MergeRows(normalized, pairs)
	if err != nil {
		return res, &StageError{Stage: StageMerge, Err: err}
	}
	res.Rows = rows
	res.Counts.Merged = len(rows)

	added, err := s.master.Append(rows)
	if err != nil {
		return res, &StageError{Stage: StageMaster, Processed: len(rows), Err: err}
	}
	res.Added = added
	res.Counts.NewInMaster = len(added)

	if err := SaveRows(s.cfg.ApplicantFile, WithoutStandardized(rows)); err != nil {
		return res, &StageError{Stage: StageOutput, Processed: len(rows), Err: err}
	}

	s.log.Info().
		Int("raw", res.Counts.Raw).
		Int("unique", res.Counts.UniqueKeys).
		Int("merged", res.Counts.Merged).
		Int("new", res.Counts.NewInMaster).
		Msg("clean finished")
	return res, nil
}

func (s *ProcessingService) Load(ctx context.Context, rows []internal.CanonicalRow) (int, error) {
	n, err := s.store.UpsertApplicants(ctx, rows)
	if err != nil {
		return 0, &StageError{Stage: StageStorage, Err: err}
	}
	s.log.Info().Int("rows", len(rows)).Int("affected", n).Msg("applicants upserted")
	return n, nil
}

// Process upserts every merged row, not only the ones new to the master file.
func (s *ProcessingService) Process(ctx context.Context, command string, records []internal.RawRecord) (internal.RunCounts, error) {
	started := s.now()

	res, err := s.Clean(ctx, records)
	if err == nil {
		var n int
		n, err = s.Load(ctx, res.Rows)
		if err != nil {
			var stageErr *StageError
			if errors.As(err, &stageErr) {
				stageErr.Processed = res.Counts.Merged
			}
		}
		res.Counts.Upserted = n
	}

	s.recordRun(ctx, command, started, res.Counts, err)
	return res.Counts, err
}

func (s *ProcessingService) recordRun(ctx context.Context, command string, started time.Time, counts internal.RunCounts, runErr error) {
	run := storage.Run{
		ID:         uuid.NewString(),
		Command:    command,
		Status:     storage.RunCompleted,
		Counts:     counts,
		StartedAt:  started,
		FinishedAt: s.now(),
	}
	if runErr != nil {
		run.Status = storage.RunFailed
		run.Error = runErr.Error()
		var stageErr *StageError
		if errors.As(runErr, &stageErr) {
			run.Stage = string(stageErr.Stage)
		}
	}

	if err := s.store.InsertRun(ctx, run); err != nil {
		s.log.Warn().Err(err).Msg("run log write failed")
	}
	if runErr == nil {
		if err := s.store.SetMetadata(ctx, storage.MetaLastRun, run.FinishedAt.UTC().Format(time.RFC3339)); err != nil {
			s.log.Warn().Err(err).Msg("last run metadata write failed")
		}
	}
}

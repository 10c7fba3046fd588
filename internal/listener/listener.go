package listener

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"gradcafe/internal"
	"gradcafe/internal/config"
	"gradcafe/internal/jobs"
	"gradcafe/internal/pipeline"
	"gradcafe/internal/scrape"
	"gradcafe/internal/storage"
)

type Scraper interface {
	Scrape(ctx context.Context, known map[int64]struct{}) (scrape.Result, error)
}

type Processor interface {
	KnownIDs() map[int64]struct{}
	Process(ctx context.Context, command string, records []internal.RawRecord) (internal.RunCounts, error)
}

type MetadataWriter interface {
	SetMetadata(ctx context.Context, key, value string) error
}

// Cycle summarizes one scrape-and-process pass.
type Cycle struct {
	Job     jobs.Snapshot
	Scraped int
	Pages   int
	Counts  internal.RunCounts
}

type Service struct {
	scraper     Scraper
	processor   Processor
	meta        MetadataWriter
	coordinator *jobs.Coordinator
	cfg         config.Config
	log         zerolog.Logger
	now         func() time.Time
}

func NewService(scraper Scraper, processor Processor, meta MetadataWriter, coordinator *jobs.Coordinator, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		scraper:     scraper,
		processor:   processor,
		meta:        meta,
		coordinator: coordinator,
		cfg:         cfg,
		log:         log.With().Str("component", "listener").Logger(),
		now:         time.Now,
	}
}

// Run repeats RunOnce every WatchInterval until ctx is done. Cycle failures are
// logged and do not stop the loop.
func (s *Service) Run(ctx context.Context) error {
	interval := s.cfg.WatchInterval()
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %s", interval)
	}
	for {
		if s.coordinator.Running() {
			s.log.Info().Str("job", s.coordinator.Status().JobID).Msg("another job is running, skipping cycle")
		} else if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, jobs.ErrAlreadyRunning) {
			s.log.Error().Err(err).Msg("listener cycle error")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunOnce scrapes results newer than the master file and processes them as a
// single coordinated job.
func (s *Service) RunOnce(ctx context.Context) (Cycle, error) {
	var cycle Cycle
	var cycleErr error
	snap, err := s.coordinator.Run(ctx, "run", func(ctx context.Context) error {
		cycleErr = s.runCycle(ctx, &cycle)
		return cycleErr
	})
	cycle.Job = snap
	if err != nil {
		return cycle, err
	}
	return cycle, cycleErr
}

func (s *Service) runCycle(ctx context.Context, cycle *Cycle) error {
	res, err := s.scraper.Scrape(ctx, s.processor.KnownIDs())
	cycle.Scraped = len(res.Records)
	cycle.Pages = res.Pages
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}
	if err := scrape.SaveRaw(s.cfg.RawFile, res.Records); err != nil {
		return fmt.Errorf("save raw records: %w", err)
	}
	if err := s.meta.SetMetadata(ctx, storage.MetaLastScrape, s.now().UTC().Format(time.RFC3339)); err != nil {
		s.log.Warn().Err(err).Msg("last scrape metadata write failed")
	}

	if len(res.Records) == 0 {
		s.log.Info().Int("pages", res.Pages).Msg("no new results")
		return nil
	}

	counts, err := s.processor.Process(ctx, "run", res.Records)
	cycle.Counts = counts
	if err != nil {
		return err
	}

	if s.cfg.WatchAutoExport {
		if err := s.exportApplicants(); err != nil {
			return err
		}
	}

	s.log.Info().
		Int("pages", res.Pages).
		Int("scraped", len(res.Records)).
		Int("new", counts.NewInMaster).
		Int("upserted", counts.Upserted).
		Msg("listener cycle done")
	return nil
}

func (s *Service) exportApplicants() error {
	rows, err := pipeline.LoadRows(s.cfg.ApplicantFile)
	if err != nil {
		return err
	}
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", fmt.Sprintf("applicants_%s.xlsx", s.now().UTC().Format("20060102T150405Z")))
	if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
		return fmt.Errorf("export applicants: %w", err)
	}
	s.log.Info().Str("path", outputPath).Int("rows", len(rows)).Msg("applicants exported")
	return nil
}

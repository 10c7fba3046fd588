package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gradcafe/internal/config"
	"gradcafe/internal/jobs"
	"gradcafe/internal/listener"
	"gradcafe/internal/logging"
	"gradcafe/internal/pipeline"
	"gradcafe/internal/scrape"
	"gradcafe/internal/standardizer"
	"gradcafe/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = logging.WithContext(ctx, log)

	cmd := os.Args[1]
	switch cmd {
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", cfg.ApplicantFile, "canonical rows json")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		rows, err := pipeline.LoadRows(*input)
		must(err)
		must(pipeline.ExportRowsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
		return
	case "clean", "run":
		must(cfg.Require("STANDARDIZER_URL", cfg.StandardizerURL))
	case "scrape", "load", "status":
	default:
		usage()
		os.Exit(1)
	}

	store, err := storage.Open(ctx, cfg.DBDSN, log)
	must(err)
	defer store.Close()

	processor := pipeline.NewProcessingService(store, standardizer.NewClient(cfg, log), cfg, log)
	coordinator := jobs.NewCoordinator(log)

	switch cmd {
	case "scrape":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", cfg.RawFile, "raw records json")
		_ = fs.Parse(os.Args[2:])
		var res scrape.Result
		_, err := coordinator.Run(ctx, cmd, func(ctx context.Context) error {
			var err error
			res, err = scrape.NewService(cfg, log).Scrape(ctx, processor.KnownIDs())
			if err != nil {
				return err
			}
			if err := scrape.SaveRaw(*out, res.Records); err != nil {
				return err
			}
			return store.SetMetadata(ctx, storage.MetaLastScrape, time.Now().UTC().Format(time.RFC3339))
		})
		must(err)
		must(jobError(coordinator))
		fmt.Printf("scrape done pages=%d records=%d output=%s\n", res.Pages, len(res.Records), *out)
	case "clean":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", cfg.RawFile, "raw records json")
		_ = fs.Parse(os.Args[2:])
		records, err := pipeline.LoadRawRecords(*input)
		must(err)
		var res pipeline.CleanResult
		_, err = coordinator.Run(ctx, cmd, func(ctx context.Context) error {
			var err error
			res, err = processor.Clean(ctx, records)
			return err
		})
		must(err)
		must(jobError(coordinator))
		fmt.Printf("clean done raw=%d unique=%d merged=%d new=%d master=%s\n",
			res.Counts.Raw, res.Counts.UniqueKeys, res.Counts.Merged, res.Counts.NewInMaster, cfg.MasterFile)
	case "load":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", cfg.MasterFile, "canonical rows json")
		_ = fs.Parse(os.Args[2:])
		rows, err := pipeline.LoadRows(*input)
		must(err)
		var n int
		_, err = coordinator.Run(ctx, cmd, func(ctx context.Context) error {
			var err error
			n, err = processor.Load(ctx, rows)
			return err
		})
		must(err)
		must(jobError(coordinator))
		fmt.Printf("load done rows=%d affected=%d\n", len(rows), n)
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "process this raw records json instead of scraping")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) != "" {
			records, err := pipeline.LoadRawRecords(*input)
			must(err)
			_, err = coordinator.Run(ctx, cmd, func(ctx context.Context) error {
				counts, err := processor.Process(ctx, cmd, records)
				if err == nil {
					printCounts(counts.Raw, counts.NewInMaster, counts.Upserted)
				}
				return err
			})
			must(err)
			must(jobError(coordinator))
			return
		}
		svc := listener.NewService(scrape.NewService(cfg, log), processor, store, coordinator, cfg, log)
		cycle, err := svc.RunOnce(ctx)
		must(err)
		printCounts(cycle.Scraped, cycle.Counts.NewInMaster, cycle.Counts.Upserted)
	case "status":
		must(printStatus(ctx, store, processor))
	}
}

func jobError(c *jobs.Coordinator) error {
	snap := c.Status()
	if snap.State == jobs.StateFailed {
		return fmt.Errorf("%s failed: %s", snap.Name, snap.Error)
	}
	return nil
}

func printCounts(raw, added, upserted int) {
	fmt.Printf("run done raw=%d new=%d upserted=%d\n", raw, added, upserted)
}

func printStatus(ctx context.Context, store storage.Store, processor *pipeline.ProcessingService) error {
	count, err := store.CountApplicants(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("applicants=%d master_rows=%d\n", count, len(processor.Master().Load()))

	for _, key := range []string{storage.MetaLastScrape, storage.MetaLastRun} {
		value, err := store.GetMetadata(ctx, key)
		if err != nil {
			return err
		}
		if value == nil {
			fmt.Printf("%s=never\n", key)
			continue
		}
		fmt.Printf("%s=%s\n", key, *value)
	}

	run, err := store.LastRun(ctx)
	if err != nil {
		return err
	}
	if run == nil {
		logger := logging.FromContext(ctx)
		logger.Debug().Msg("run log is empty")
		return nil
	}
	fmt.Printf("last_run id=%s command=%s status=%s", run.ID, run.Command, run.Status)
	if run.Stage != "" {
		fmt.Printf(" stage=%s", run.Stage)
	}
	fmt.Printf(" raw=%d new=%d upserted=%d took=%s\n",
		run.Counts.Raw, run.Counts.NewInMaster, run.Counts.Upserted, run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	if run.Error != "" {
		fmt.Printf("last_error=%s\n", run.Error)
	}
	return nil
}

func usage() {
	fmt.Println("usage: gradcafe <command>")
	fmt.Println("commands:")
	fmt.Println("  scrape [--out=data/raw_scraped_data.json]")
	fmt.Println("  clean [--input=data/raw_scraped_data.json]")
	fmt.Println("  load [--input=data/llm_extend_applicant_data.json]")
	fmt.Println("  run [--input=raw.json]")
	fmt.Println("  export:xlsx --out=./out/applicants.xlsx [--input=data/applicant_data.json]")
	fmt.Println("  status")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

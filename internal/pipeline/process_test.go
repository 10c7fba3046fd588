package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"gradcafe/internal"
	"gradcafe/internal/config"
	"gradcafe/internal/standardizer"
	"gradcafe/internal/storage"
	"gradcafe/internal/util"
)

type fakeStandardizer struct {
	calls int
	err   error
}

func (f *fakeStandardizer) Standardize(_ context.Context, records []internal.RawRecord) ([]internal.StandardizedPair, standardizer.Stats, error) {
	f.calls++
	if f.err != nil {
		return nil, standardizer.Stats{Inputs: len(records)}, f.err
	}
	out := make([]internal.StandardizedPair, len(records))
	for i, rec := range records {
		out[i] = internal.StandardizedPair{Program: rec.ProgramRaw, University: rec.UniversityRaw}
	}
	return out, standardizer.Stats{Inputs: len(records), UniqueKeys: len(records), Batches: 1}, nil
}

type flakyStore struct {
	storage.Store
	failures int
}

func (f *flakyStore) UpsertApplicants(ctx context.Context, rows []internal.CanonicalRow) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("connection refused")
	}
	return f.Store.UpsertApplicants(ctx, rows)
}

func newTestService(t *testing.T, std Standardizer) (*ProcessingService, storage.Store, config.Config) {
	t.Helper()
	return newTestServiceWith(t, std, func(s storage.Store) storage.Store { return s })
}

func newTestServiceWith(t *testing.T, std Standardizer, wrap func(storage.Store) storage.Store) (*ProcessingService, storage.Store, config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		MasterFile:    filepath.Join(dir, "llm_extend_applicant_data.json"),
		ApplicantFile: filepath.Join(dir, "applicant_data.json"),
	}
	store, err := storage.OpenSQLite(filepath.Join(dir, "gradcafe.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewProcessingService(wrap(store), std, cfg, zerolog.Nop()), store, cfg
}

func rawRecord(id int64) internal.RawRecord {
	return internal.RawRecord{
		ResultID:      util.Int64Ptr(id),
		UniversityRaw: util.StringPtr("MIT"),
		ProgramRaw:    util.StringPtr("Computer Science Accepted Fall 2026"),
		DateAddedRaw:  util.StringPtr("February 1, 2026"),
		ResultTextRaw: util.StringPtr(sampleBlob),
	}
}

func TestProcessEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc, store, cfg := newTestService(t, &fakeStandardizer{})

	counts, err := svc.Process(ctx, "run", []internal.RawRecord{rawRecord(1), rawRecord(2)})
	if err != nil {
		t.Fatal(err)
	}
	want := internal.RunCounts{Raw: 2, UniqueKeys: 2, Batches: 1, Merged: 2, NewInMaster: 2, Upserted: 2}
	if counts != want {
		t.Fatalf("counts=%+v", counts)
	}

	a, err := store.GetApplicant(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a == nil || util.Deref(a.Program) != "Computer Science, MIT" || util.Deref(a.Status) != "Accepted on 01/02/2024" {
		t.Fatalf("applicant=%+v", a)
	}

	plain, err := LoadRows(cfg.ApplicantFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(plain) != 2 || plain[0].HasStandardized {
		t.Fatalf("applicant file rows=%d", len(plain))
	}

	again, err := svc.Process(ctx, "run", []internal.RawRecord{rawRecord(2)})
	if err != nil {
		t.Fatal(err)
	}
	if again.NewInMaster != 0 {
		t.Fatalf("rerun must not grow the master file: %+v", again)
	}
	if again.Upserted != 1 {
		t.Fatalf("rerun must still upsert the merged row: %+v", again)
	}
	if n, _ := store.CountApplicants(ctx); n != 2 {
		t.Fatalf("applicants=%d", n)
	}

	last, err := store.LastRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Status != storage.RunCompleted {
		t.Fatalf("last run=%+v", last)
	}
	if v, _ := store.GetMetadata(ctx, storage.MetaLastRun); v == nil {
		t.Fatal("last run metadata missing")
	}
}

func TestProcessStandardizeFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	cause := &standardizer.BatchError{Batch: 0, Size: 1, Attempts: 5, Err: errors.New("down")}
	svc, store, cfg := newTestService(t, &fakeStandardizer{err: cause})

	_, err := svc.Process(ctx, "clean", []internal.RawRecord{rawRecord(1)})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageStandardize {
		t.Fatalf("err=%v", err)
	}
	var batchErr *standardizer.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatal("batch error must be reachable through the stage error")
	}

	if rows := svc.Master().Load(); len(rows) != 0 {
		t.Fatalf("master written on failure: %d rows", len(rows))
	}
	if _, err := LoadRows(cfg.ApplicantFile); err == nil {
		t.Fatal("applicant file written on failure")
	}
	if n, _ := store.CountApplicants(ctx); n != 0 {
		t.Fatalf("applicants=%d", n)
	}

	last, err := store.LastRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Status != storage.RunFailed || last.Stage != string(StageStandardize) {
		t.Fatalf("last run=%+v", last)
	}
}

func TestLoadUpsertsMasterRows(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, &fakeStandardizer{})

	res, err := svc.Clean(ctx, []internal.RawRecord{rawRecord(9)})
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountApplicants(ctx); n != 0 {
		t.Fatal("clean must not touch the store")
	}

	n, err := svc.Load(ctx, svc.Master().Load())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(res.Added) != 1 {
		t.Fatalf("n=%d added=%d", n, len(res.Added))
	}
}

func TestProcessStorageFailureRecoversOnRerun(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyStore{failures: 1}
	svc, store, _ := newTestServiceWith(t, &fakeStandardizer{}, func(s storage.Store) storage.Store {
		flaky.Store = s
		return flaky
	})

	counts, err := svc.Process(ctx, "run", []internal.RawRecord{rawRecord(7)})
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageStorage {
		t.Fatalf("err=%v", err)
	}
	if stageErr.Processed != counts.Merged || counts.Merged != 1 {
		t.Fatalf("processed=%d merged=%d", stageErr.Processed, counts.Merged)
	}
	if len(svc.Master().Load()) != 1 {
		t.Fatal("master file should already hold the row")
	}
	last, err := store.LastRun(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Status != storage.RunFailed || last.Stage != string(StageStorage) {
		t.Fatalf("last run=%+v", last)
	}

	counts, err = svc.Process(ctx, "run", []internal.RawRecord{rawRecord(7)})
	if err != nil {
		t.Fatal(err)
	}
	if counts.NewInMaster != 0 || counts.Upserted != 1 {
		t.Fatalf("counts=%+v", counts)
	}
	a, err := store.GetApplicant(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if a == nil {
		t.Fatal("row must reach the store after the rerun")
	}
}

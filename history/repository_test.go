package history

import (
	"errors"
	"path/filepath"
	"testing"

	"tiff2dzi/contracts"

	"github.com/sirupsen/logrus"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	repo, err := NewRepository(filepath.Join(t.TempDir(), "history.db"), log)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_BeginAndFinishSucceeded(t *testing.T) {
	repo := newTestRepository(t)
	request := contracts.ConversionRequest{InputPath: "scans/nasa.tif", OutputDir: "dzi-images"}

	id, err := repo.Begin(request, "nasa", "native")
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}

	run, err := repo.Get(id)
	if err != nil || run == nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Status != contracts.StatusInProgress {
		t.Errorf("status = %s, want %s", run.Status, contracts.StatusInProgress)
	}
	if run.FinishedAt != "" {
		t.Errorf("in-progress run must not have finished_at, got %q", run.FinishedAt)
	}

	result := &contracts.ConvertResult{PixelWidth: 600, PixelHeight: 300, Levels: 11}
	if err := repo.Finish(id, result, nil); err != nil {
		t.Fatalf("failed to finish: %v", err)
	}

	run, _ = repo.Get(id)
	if run.Status != contracts.StatusSucceeded {
		t.Errorf("status = %s, want %s", run.Status, contracts.StatusSucceeded)
	}
	if run.Width != 600 || run.Height != 300 || run.Levels != 11 {
		t.Errorf("dimensions not recorded: %+v", run)
	}
	if run.InputPath != request.InputPath || run.BaseName != "nasa" || run.Engine != "native" {
		t.Errorf("request not recorded: %+v", run)
	}
	if run.FinishedAt == "" {
		t.Error("finished_at not set")
	}
}

func TestRepository_FinishFailed(t *testing.T) {
	repo := newTestRepository(t)
	id, _ := repo.Begin(contracts.ConversionRequest{InputPath: "bad.tif", OutputDir: "out"}, "bad", "native")

	failure := contracts.Fail(contracts.StageDecode, errors.New("tiff: invalid format"))
	if err := repo.Finish(id, nil, failure); err != nil {
		t.Fatalf("failed to finish: %v", err)
	}

	run, _ := repo.Get(id)
	if run.Status != contracts.StatusFailed {
		t.Errorf("status = %s, want %s", run.Status, contracts.StatusFailed)
	}
	if run.Stage != string(contracts.StageDecode) {
		t.Errorf("stage = %q, want %q", run.Stage, contracts.StageDecode)
	}
	if run.ErrorMessage != "tiff: invalid format" {
		t.Errorf("error message = %q", run.ErrorMessage)
	}
}

func TestRepository_FinishUnknown(t *testing.T) {
	repo := newTestRepository(t)
	if err := repo.Finish("does-not-exist", nil, nil); err == nil {
		t.Error("expected error for unknown run id")
	}
}

func TestRepository_GetMissing(t *testing.T) {
	repo := newTestRepository(t)
	run, err := repo.Get("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil run, got %+v", run)
	}
}

func TestRepository_List(t *testing.T) {
	repo := newTestRepository(t)
	for _, name := range []string{"a", "b", "c"} {
		if _, err := repo.Begin(contracts.ConversionRequest{InputPath: name + ".tif", OutputDir: "out"}, name, "native"); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := repo.List(0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].BaseName != "c" {
		t.Errorf("most recent run first: got %s", runs[0].BaseName)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("failed to list with limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs, got %d", len(limited))
	}
}

package splitter_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/randompersona1/ussplitter-server/internal/logging"
	"github.com/randompersona1/ussplitter-server/internal/queue"
	"github.com/randompersona1/ussplitter-server/internal/splitter"
	"github.com/randompersona1/ussplitter-server/internal/testsupport"
)

func newService(t *testing.T) (*splitter.Service, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return splitter.NewService(cfg, store, logging.NewNop()), store
}

func TestAdmitCreatesPendingJobWithInput(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	jobID, err := svc.Admit(ctx, "", strings.NewReader("audio bytes"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if jobID == "" {
		t.Fatal("expected a job id")
	}

	status, err := svc.Status(ctx, jobID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status != queue.StatusPending {
		t.Fatalf("expected PENDING, got %s", status)
	}

	content, err := os.ReadFile(svc.InputPath(jobID))
	if err != nil {
		t.Fatalf("read input: %v", err)
	}
	if string(content) != "audio bytes" {
		t.Fatalf("unexpected input contents %q", content)
	}

	job, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job == nil || job.ID != jobID {
		t.Fatalf("expected exactly the admitted job in the queue, got %#v", job)
	}
}

func TestAdmitRecordsRequestedModel(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	jobID, err := svc.Admit(ctx, "mdx_extra", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	job, err := store.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job == nil || job.ID != jobID || job.Model != "mdx_extra" {
		t.Fatalf("unexpected claimed job: %#v", job)
	}
}

func TestStatusUnknownIDReadsNone(t *testing.T) {
	svc, _ := newService(t)

	status, err := svc.Status(context.Background(), "never-admitted")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status != queue.StatusNone {
		t.Fatalf("expected NONE, got %s", status)
	}
}

func TestLocateFindsNestedStems(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	jobID, err := svc.Admit(ctx, "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	// The engine buries stems under a model/track subtree of its choosing.
	stemDir := filepath.Join(svc.JobDir(jobID), "htdemucs", "input")
	testsupport.WriteFile(t, filepath.Join(stemDir, "vocals.mp3"), "vocals")
	testsupport.WriteFile(t, filepath.Join(stemDir, "no_vocals.mp3"), "instrumental")

	vocals, err := svc.LocateVocals(ctx, jobID)
	if err != nil {
		t.Fatalf("LocateVocals failed: %v", err)
	}
	if filepath.Base(vocals) != "vocals.mp3" {
		t.Fatalf("unexpected vocals path %s", vocals)
	}

	instrumental, err := svc.LocateInstrumental(ctx, jobID)
	if err != nil {
		t.Fatalf("LocateInstrumental failed: %v", err)
	}
	if filepath.Base(instrumental) != "no_vocals.mp3" {
		t.Fatalf("unexpected instrumental path %s", instrumental)
	}
}

func TestLocateBeforeSeparationReportsNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	jobID, err := svc.Admit(ctx, "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	if _, err := svc.LocateVocals(ctx, jobID); !errors.Is(err, splitter.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLocateUnknownJobReportsNotFound(t *testing.T) {
	svc, _ := newService(t)

	if _, err := svc.LocateVocals(context.Background(), "missing"); !errors.Is(err, splitter.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCleanupRefusesInFlightJobs(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	jobID, err := svc.Admit(ctx, "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	for _, status := range []queue.Status{queue.StatusPending, queue.StatusProcessing} {
		if err := store.SetStatus(ctx, jobID, status); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		removed, err := svc.Cleanup(ctx, jobID)
		if err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		if removed {
			t.Fatalf("expected cleanup to refuse %s job", status)
		}
		if _, statErr := os.Stat(svc.JobDir(jobID)); statErr != nil {
			t.Fatalf("job directory should survive refused cleanup: %v", statErr)
		}
	}
}

func TestCleanupRefusesUnknownJobs(t *testing.T) {
	svc, _ := newService(t)

	removed, err := svc.Cleanup(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed {
		t.Fatal("expected cleanup to refuse an unknown job")
	}
}

func TestCleanupRemovesTerminalJob(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	for _, terminal := range []queue.Status{queue.StatusFinished, queue.StatusError} {
		jobID, err := svc.Admit(ctx, "", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
		if _, err := store.ClaimNext(ctx); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
		if err := store.SetStatus(ctx, jobID, terminal); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}

		removed, err := svc.Cleanup(ctx, jobID)
		if err != nil {
			t.Fatalf("Cleanup failed: %v", err)
		}
		if !removed {
			t.Fatalf("expected cleanup to remove %s job", terminal)
		}
		if _, err := os.Stat(svc.JobDir(jobID)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected job directory gone, stat returned %v", err)
		}
		status, err := svc.Status(ctx, jobID)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status != queue.StatusNone {
			t.Fatalf("expected NONE after cleanup, got %s", status)
		}
	}
}

func TestCleanupAllRefusesWhileAnythingInFlight(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	doneID, err := svc.Admit(ctx, "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.SetStatus(ctx, doneID, queue.StatusFinished); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	pendingID, err := svc.Admit(ctx, "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	removed, err := svc.CleanupAll(ctx)
	if err != nil {
		t.Fatalf("CleanupAll failed: %v", err)
	}
	if removed {
		t.Fatal("expected CleanupAll to refuse while a job is PENDING")
	}
	for _, id := range []string{doneID, pendingID} {
		if _, statErr := os.Stat(svc.JobDir(id)); statErr != nil {
			t.Fatalf("job directory %s should survive refused cleanup: %v", id, statErr)
		}
	}
}

func TestCleanupAllWipesTerminalJobs(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	ids := make([]string, 0, 2)
	for _, terminal := range []queue.Status{queue.StatusFinished, queue.StatusError} {
		jobID, err := svc.Admit(ctx, "", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
		if _, err := store.ClaimNext(ctx); err != nil {
			t.Fatalf("ClaimNext failed: %v", err)
		}
		if err := store.SetStatus(ctx, jobID, terminal); err != nil {
			t.Fatalf("SetStatus failed: %v", err)
		}
		ids = append(ids, jobID)
	}

	removed, err := svc.CleanupAll(ctx)
	if err != nil {
		t.Fatalf("CleanupAll failed: %v", err)
	}
	if !removed {
		t.Fatal("expected CleanupAll to wipe terminal jobs")
	}

	for _, id := range ids {
		if _, err := os.Stat(svc.JobDir(id)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected job directory %s gone, stat returned %v", id, err)
		}
		status, err := svc.Status(ctx, id)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status != queue.StatusNone {
			t.Fatalf("expected NONE after CleanupAll, got %s", status)
		}
	}

	// The database must survive the wipe.
	if _, err := store.Stats(ctx); err != nil {
		t.Fatalf("store unusable after CleanupAll: %v", err)
	}
}

func TestCleanupAllPreservesNestedLogDir(t *testing.T) {
	// The shipped defaults nest log_dir inside data_dir.
	cfg := testsupport.NewConfig(t, testsupport.WithNestedLogDir())
	store := testsupport.MustOpenStore(t, cfg)
	svc := splitter.NewService(cfg, store, logging.NewNop())
	ctx := context.Background()

	logFile := filepath.Join(cfg.Paths.LogDir, "ussplitter.log")
	testsupport.WriteFile(t, logFile, "log lines")

	jobID, err := svc.Admit(ctx, "", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if _, err := store.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.SetStatus(ctx, jobID, queue.StatusFinished); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	removed, err := svc.CleanupAll(ctx)
	if err != nil {
		t.Fatalf("CleanupAll failed: %v", err)
	}
	if !removed {
		t.Fatal("expected CleanupAll to succeed")
	}

	if _, err := os.Stat(svc.JobDir(jobID)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected job directory gone, stat returned %v", err)
	}
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file must survive CleanupAll: %v", err)
	}
	if string(content) != "log lines" {
		t.Fatalf("unexpected log contents %q", content)
	}
}

// gatedReader blocks its first Read until released.
type gatedReader struct {
	release <-chan struct{}
	data    io.Reader
	once    sync.Once
}

func (r *gatedReader) Read(p []byte) (int, error) {
	r.once.Do(func() { <-r.release })
	return r.data.Read(p)
}

func TestAdmitRunsConcurrently(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	release := make(chan struct{})
	slowDone := make(chan error, 1)
	go func() {
		_, err := svc.Admit(ctx, "", &gatedReader{release: release, data: strings.NewReader("slow")})
		slowDone <- err
	}()

	fastDone := make(chan error, 1)
	go func() {
		_, err := svc.Admit(ctx, "", strings.NewReader("fast"))
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("admission blocked behind a concurrent slow upload")
	}

	close(release)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow Admit failed: %v", err)
	}
}

func TestCleanupAllOnEmptySystemSucceeds(t *testing.T) {
	svc, _ := newService(t)

	removed, err := svc.CleanupAll(context.Background())
	if err != nil {
		t.Fatalf("CleanupAll failed: %v", err)
	}
	if !removed {
		t.Fatal("expected CleanupAll to succeed with no jobs")
	}
}

package splitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/randompersona1/ussplitter-server/internal/config"
	"github.com/randompersona1/ussplitter-server/internal/engine"
	"github.com/randompersona1/ussplitter-server/internal/logging"
	"github.com/randompersona1/ussplitter-server/internal/queue"
)

// ErrNotFound reports a missing job directory or stem file.
var ErrNotFound = errors.New("not found")

const (
	inputFileName    = "input.mp3"
	vocalsStem       = "vocals.mp3"
	instrumentalStem = "no_vocals.mp3"
)

// Service implements job admission, lifecycle queries, and cleanup on top
// of the queue store and the artifact directory tree.
type Service struct {
	dataDir string
	// keepDir is the top-level entry under dataDir holding the log
	// directory, empty when logs live elsewhere. CleanupAll must never
	// remove it; the default layout nests log_dir inside data_dir.
	keepDir string
	store   *queue.Store
	logger  *slog.Logger

	// mu guards Admit (read side) against CleanupAll (write side) so a
	// job is never admitted into the middle of a wipe, while concurrent
	// admissions still proceed in parallel.
	mu sync.RWMutex
}

// NewService constructs a Service over the configured artifact root.
func NewService(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Service {
	return &Service{
		dataDir: cfg.Paths.DataDir,
		keepDir: topLevelDir(cfg.Paths.DataDir, cfg.Paths.LogDir),
		store:   store,
		logger:  logging.WithComponent(logger, "splitter"),
	}
}

// topLevelDir returns the first path element of nested relative to root,
// or "" when nested is not strictly inside root.
func topLevelDir(root, nested string) string {
	rel, err := filepath.Rel(root, nested)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
		rel = rel[:i]
	}
	return rel
}

// JobDir returns the artifact directory for a job id.
func (s *Service) JobDir(jobID string) string {
	return filepath.Join(s.dataDir, jobID)
}

// InputPath returns where a job's uploaded audio is stored.
func (s *Service) InputPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), inputFileName)
}

// Admit enrolls a new job: a fresh id, an artifact directory holding the
// uploaded audio as input.mp3, and a PENDING queue entry. It returns the id
// for later polling and does not run the engine.
func (s *Service) Admit(ctx context.Context, model string, audio io.Reader) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobID := uuid.NewString()
	jobDir := s.JobDir(jobID)

	// Random ids make a collision statistically impossible; an existing
	// directory means something else went badly wrong.
	if err := os.Mkdir(jobDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: job directory %s already exists", engine.ErrInvalidArgs, jobDir)
		}
		return "", fmt.Errorf("create job directory: %w", err)
	}

	if err := s.writeInput(jobDir, audio); err != nil {
		_ = os.RemoveAll(jobDir)
		return "", err
	}

	if err := s.store.Enqueue(ctx, jobID, model); err != nil {
		_ = os.RemoveAll(jobDir)
		return "", err
	}

	s.logger.Info("job admitted",
		logging.String("job_id", jobID),
		logging.String("model", model),
	)
	return jobID, nil
}

func (s *Service) writeInput(jobDir string, audio io.Reader) error {
	target := filepath.Join(jobDir, inputFileName)
	file, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create input file: %w", err)
	}
	if _, err := io.Copy(file, audio); err != nil {
		_ = file.Close()
		return fmt.Errorf("write input file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close input file: %w", err)
	}
	return nil
}

// Status reports a job's lifecycle state. Unknown ids read as StatusNone.
func (s *Service) Status(ctx context.Context, jobID string) (queue.Status, error) {
	return s.store.GetStatus(ctx, jobID)
}

// Statuses lists every known job with its status in admission order.
func (s *Service) Statuses(ctx context.Context) ([]queue.JobStatus, error) {
	return s.store.ListStatuses(ctx)
}

// Stats returns the job count per status.
func (s *Service) Stats(ctx context.Context) (map[queue.Status]int, error) {
	return s.store.Stats(ctx)
}

// LocateVocals finds the vocals stem for a job. Only FINISHED jobs are
// guaranteed to have one; earlier calls just report ErrNotFound.
func (s *Service) LocateVocals(ctx context.Context, jobID string) (string, error) {
	return s.locate(jobID, vocalsStem)
}

// LocateInstrumental finds the non-vocals stem for a job.
func (s *Service) LocateInstrumental(ctx context.Context, jobID string) (string, error) {
	return s.locate(jobID, instrumentalStem)
}

// locate searches the job directory recursively. The engine picks the
// nested output layout, so the exact stem path is not assumed.
func (s *Service) locate(jobID, stem string) (string, error) {
	root := s.JobDir(jobID)
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}

	var found string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && entry.Name() == stem {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search job directory: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s for job %s", ErrNotFound, stem, jobID)
	}
	return found, nil
}

// Cleanup deletes one terminal job's artifacts and store rows. It refuses
// in-flight and unknown jobs, reporting false without side effects.
func (s *Service) Cleanup(ctx context.Context, jobID string) (bool, error) {
	status, err := s.store.GetStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	if !status.Terminal() {
		return false, nil
	}

	if err := os.RemoveAll(s.JobDir(jobID)); err != nil {
		return false, fmt.Errorf("remove job directory: %w", err)
	}
	if err := s.store.Delete(ctx, jobID); err != nil {
		return false, err
	}

	s.logger.Info("job cleaned up", logging.String("job_id", jobID))
	return true, nil
}

// CleanupAll wipes every job directory and both store tables. A single
// PENDING or PROCESSING job anywhere blocks the whole operation.
func (s *Service) CleanupAll(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses, err := s.store.ListStatuses(ctx)
	if err != nil {
		return false, err
	}
	for _, job := range statuses {
		if job.Status.InFlight() {
			return false, nil
		}
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return false, fmt.Errorf("read artifact root: %w", err)
	}
	for _, entry := range entries {
		// The queue database and its WAL live next to the job directories.
		if !entry.IsDir() {
			continue
		}
		// The default layout nests the log directory under the artifact
		// root; wiping it would take the daemon's open log file with it.
		if s.keepDir != "" && entry.Name() == s.keepDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dataDir, entry.Name())); err != nil {
			return false, fmt.Errorf("remove job directory %s: %w", entry.Name(), err)
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return false, err
	}

	s.logger.Info("all jobs cleaned up", logging.Int("jobs", len(statuses)))
	return true, nil
}

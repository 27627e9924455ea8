package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// Catalog reports which stored names belong to a library entry
type Catalog interface {
	StoredNames(ctx context.Context) (map[string]struct{}, error)
}

// Assets lists and removes uploaded files
type Assets interface {
	List() ([]types.AssetInfo, error)
	Remove(ctx context.Context, storedName string) error
}

// Config controls how often the scheduler runs and what it considers stale
type Config struct {
	TempDir      string
	Interval     time.Duration
	OrphanMaxAge time.Duration
	TempMaxAge   time.Duration
}

// Scheduler removes uploads that never made it into the library and stale
// temporary files
type Scheduler struct {
	cfg     Config
	catalog Catalog
	assets  Assets
	log     *zap.Logger
	now     func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	started  bool
	done     chan struct{}
}

// Report summarises one sweep
type Report struct {
	OrphansRemoved int
	TempRemoved    int
	BytesFreed     int64
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(cfg Config, catalog Catalog, assets Assets, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		catalog:  catalog,
		assets:   assets,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per interval
func (s *Scheduler) Start() {
	s.log.Info("running initial cleanup")
	s.Sweep(context.Background())

	ticker := time.NewTicker(s.cfg.Interval)
	s.started = true
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.Info("cleanup scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("orphan_max_age", s.cfg.OrphanMaxAge),
		zap.Duration("temp_max_age", s.cfg.TempMaxAge))
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.started {
			<-s.done
		}
		s.log.Info("cleanup scheduler stopped")
	})
}

// Sweep removes orphaned uploads and stale temp files once
func (s *Scheduler) Sweep(ctx context.Context) Report {
	var r Report
	s.removeOrphans(ctx, &r)
	s.cleanTempDir(&r)

	if r.OrphansRemoved > 0 || r.TempRemoved > 0 {
		s.log.Info("cleanup complete",
			zap.Int("orphans", r.OrphansRemoved),
			zap.Int("temp_files", r.TempRemoved),
			zap.Float64("freed_mb", float64(r.BytesFreed)/(1024*1024)))
	}
	return r
}

// removeOrphans deletes old uploads that no audio record points at. Young
// files are left alone because their upload may still be transcribing.
func (s *Scheduler) removeOrphans(ctx context.Context, r *Report) {
	assets, err := s.assets.List()
	if err != nil {
		s.log.Warn("failed to list uploads", zap.Error(err))
		return
	}
	known, err := s.catalog.StoredNames(ctx)
	if err != nil {
		s.log.Warn("failed to load stored names", zap.Error(err))
		return
	}

	now := s.now()
	for _, a := range assets {
		if _, ok := known[a.StoredName]; ok {
			continue
		}
		if now.Sub(a.ModTime) <= s.cfg.OrphanMaxAge {
			continue
		}
		if err := s.assets.Remove(ctx, a.StoredName); err != nil {
			s.log.Warn("failed to remove orphaned upload", zap.String("stored_name", a.StoredName), zap.Error(err))
			continue
		}
		r.OrphansRemoved++
		r.BytesFreed += a.Size
		s.log.Info("removed orphaned upload", zap.String("stored_name", a.StoredName))
	}
}

// cleanTempDir removes files older than TempMaxAge from the temp directory
func (s *Scheduler) cleanTempDir(r *Report) {
	if s.cfg.TempDir == "" {
		return
	}
	now := s.now()

	err := filepath.Walk(s.cfg.TempDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age > s.cfg.TempMaxAge {
			if err := os.Remove(path); err != nil {
				s.log.Warn("failed to delete temp file", zap.String("path", path), zap.Error(err))
			} else {
				r.TempRemoved++
				r.BytesFreed += info.Size()
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("error during temp cleanup", zap.Error(err))
	}
}

// EnsureDirExists creates dir if it doesn't exist
func EnsureDirExists(dir string) error {
	return os.MkdirAll(dir, 0755)
}

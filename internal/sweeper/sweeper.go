package sweeper

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gobwas/glob"

	"knowledge-ingest-platform/internal/logger"
	"knowledge-ingest-platform/internal/pipeline"
	"knowledge-ingest-platform/internal/store"
	"knowledge-ingest-platform/internal/watcher"
)

// Sweeper fills the gaps the watcher cannot see: the initial scan of a
// project root at startup, and periodic re-checks of remote documents that
// emit no filesystem events.
type Sweeper struct {
	coordinator *pipeline.Coordinator
	store       store.Store
	scheduler   *gocron.Scheduler
	interval    time.Duration
	ignores     []glob.Glob
}

func New(coordinator *pipeline.Coordinator, st store.Store, interval time.Duration, ignoreGlobs []string) (*Sweeper, error) {
	ignores := make([]glob.Glob, 0, len(ignoreGlobs))
	for _, pattern := range ignoreGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		ignores = append(ignores, g)
	}

	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Sweeper{
		coordinator: coordinator,
		store:       st,
		scheduler:   s,
		interval:    interval,
		ignores:     ignores,
	}, nil
}

// Start registers the remote sweep job and launches the scheduler.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).Tag("remote-sweep").Do(func() {
		if err := s.SweepRemote(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Remote sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

func (s *Sweeper) Stop() {
	s.scheduler.Stop()
}

// ScanProject walks a project root and submits a created event for every
// non-ignored file. Run once at startup per project; files already tracked
// with an unchanged hash short-circuit inside the pipeline.
func (s *Sweeper) ScanProject(ctx context.Context, alias, root string) error {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Scan skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		s.coordinator.Submit(ctx, alias, watcher.Event{Identity: path, Kind: watcher.KindCreated})
		count++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Initial project scan submitted", "project", alias, "root", root, "files", count)
	return nil
}

// SweepRemote re-submits every live remote document so changed upstream
// content is picked up without a filesystem event.
func (s *Sweeper) SweepRemote(ctx context.Context) error {
	items, err := s.store.ListRemoteItems(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.coordinator.Submit(ctx, item.ProjectAlias, watcher.Event{
			Identity: item.Identity,
			Kind:     watcher.KindModified,
		})
	}

	if len(items) > 0 {
		logger.Info("Remote sweep submitted", "items", len(items))
	}
	return nil
}

func (s *Sweeper) ignored(path string) bool {
	normalized := filepath.ToSlash(path)
	for _, g := range s.ignores {
		if g.Match(normalized) {
			return true
		}
	}
	return false
}

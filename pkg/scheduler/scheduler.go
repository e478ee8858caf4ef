package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nmasdoufi/printaudit/pkg/config"
	"github.com/nmasdoufi/printaudit/pkg/logging"
)

// TaskRunner defines background work to execute.
type TaskRunner interface {
	Run(ctx context.Context) error
}

// Scheduler repeats audits on a ticker and, optionally, whenever the host
// list changes.
type Scheduler struct {
	cfg    config.SchedulerConfig
	input  string
	runner TaskRunner
	log    *logging.Logger
}

// New creates scheduler. input is the host list watched when
// cfg.WatchInput is set.
func New(cfg config.SchedulerConfig, input string, runner TaskRunner, log *logging.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, input: input, runner: runner, log: log}
}

// Start runs immediately, then repeats until ctx is done. When the scheduler
// is disabled it runs once and returns that run's error.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Debugf("scheduler disabled, running once")
		return s.runner.Run(ctx)
	}
	interval, err := time.ParseDuration(s.cfg.Tick)
	if err != nil {
		return fmt.Errorf("invalid scheduler tick: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("invalid scheduler tick %q: must be positive", s.cfg.Tick)
	}

	trigger := make(chan struct{}, 1)
	if s.cfg.WatchInput && s.input != "" {
		watcher, err := s.watchInput(ctx, trigger)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	s.runOnce(ctx, "startup")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx, "tick")
		case <-trigger:
			s.runOnce(ctx, "input changed")
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	s.log.Infof("scheduled run (%s)", reason)
	if err := s.runner.Run(ctx); err != nil {
		s.log.Errorf("scheduled run error: %v", err)
	}
}

// watchInput watches the host list's directory, so replaced files are seen
// too, and signals trigger on writes to the list.
func (s *Scheduler) watchInput(ctx context.Context, trigger chan<- struct{}) (*fsnotify.Watcher, error) {
	target, err := filepath.Abs(s.input)
	if err != nil {
		return nil, fmt.Errorf("resolve input path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if abs, _ := filepath.Abs(event.Name); abs != target {
					continue
				}
				s.log.Debugf("host list modified: %s", event.Name)
				select {
				case trigger <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warnf("file watcher error: %v", err)
			}
		}
	}()
	return watcher, nil
}

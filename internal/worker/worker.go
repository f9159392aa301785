// Package worker runs background housekeeping for the uploads directory.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yangwenmai/aiworkspace/internal/store"
)

// purgeBatch is the maximum number of ledger entries handled per query.
const purgeBatch = 100

// FileRemover deletes files, treating a missing file as success.
type FileRemover interface {
	Discard(path string) error
}

// Janitor purges expired artifacts and temp inputs left behind by crashes.
type Janitor struct {
	ledger     store.ExpiredPurger
	files      FileRemover
	dir        string
	tempPrefix string
	tempMaxAge time.Duration
	now        func() time.Time
}

// New creates a Janitor for the uploads directory dir. Files in dir whose
// names start with tempPrefix and are older than tempMaxAge are swept.
func New(ledger store.ExpiredPurger, files FileRemover, dir, tempPrefix string, tempMaxAge time.Duration) *Janitor {
	return &Janitor{
		ledger:     ledger,
		files:      files,
		dir:        dir,
		tempPrefix: tempPrefix,
		tempMaxAge: tempMaxAge,
		now:        time.Now,
	}
}

// SweepResult counts what a sweep removed.
type SweepResult struct {
	Artifacts int
	Temps     int
}

// Start schedules Sweep with a cron spec (e.g. "@every 5m") and blocks
// until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { j.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule purge %q: %w", spec, err)
	}
	slog.Info("janitor started", "schedule", spec)

	j.runOnce(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("janitor stopped")
	return nil
}

func (j *Janitor) runOnce(ctx context.Context) {
	res, err := j.Sweep(ctx)
	if err != nil {
		slog.Error("janitor sweep failed", "error", err)
	}
	if res.Artifacts > 0 || res.Temps > 0 {
		slog.Info("janitor sweep", "artifacts", res.Artifacts, "temps", res.Temps)
	}
}

// Sweep removes every expired artifact (file first, then its ledger entry)
// and every stale temp input. It keeps going past individual failures and
// returns them joined.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	var errs []error

	n, err := j.purgeArtifacts(ctx)
	res.Artifacts = n
	if err != nil {
		errs = append(errs, err)
	}

	n, err = j.sweepTemps()
	res.Temps = n
	if err != nil {
		errs = append(errs, err)
	}
	return res, errors.Join(errs...)
}

func (j *Janitor) purgeArtifacts(ctx context.Context) (int, error) {
	removed := 0
	for {
		expired, err := j.ledger.ListExpired(ctx, j.now(), purgeBatch)
		if err != nil {
			return removed, fmt.Errorf("list expired: %w", err)
		}
		if len(expired) == 0 {
			return removed, nil
		}

		progress := 0
		var errs []error
		for _, a := range expired {
			if err := j.files.Discard(a.Path); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", a.Name, err))
				continue
			}
			if err := j.ledger.DeleteArtifact(ctx, a.ID); err != nil {
				errs = append(errs, fmt.Errorf("delete ledger %s: %w", a.ID, err))
				continue
			}
			removed++
			progress++
		}
		if len(errs) > 0 || progress < purgeBatch {
			return removed, errors.Join(errs...)
		}
	}
}

func (j *Janitor) sweepTemps() (int, error) {
	if j.tempPrefix == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read uploads dir: %w", err)
	}

	cutoff := j.now().Add(-j.tempMaxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), j.tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed concurrently
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := j.files.Discard(filepath.Join(j.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

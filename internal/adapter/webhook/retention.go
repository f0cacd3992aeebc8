package webhook

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"datasweep/internal/store/callback"
)

// RetentionPruner drops stored callbacks older than a configured age
// on a cron schedule, so a long-running receiver does not accumulate
// payloads forever.
type RetentionPruner struct {
	store  *callback.FileStore
	logger *slog.Logger
	maxAge time.Duration
	cron   *cron.Cron
}

// NewRetentionPruner schedules pruning on a standard 5-field cron
// expression or a descriptor like "@hourly". The pruner is created
// stopped.
func NewRetentionPruner(store *callback.FileStore, schedule string, maxAge time.Duration, logger *slog.Logger) (*RetentionPruner, error) {
	p := &RetentionPruner{
		store:  store,
		logger: logger,
		maxAge: maxAge,
		cron:   cron.New(),
	}
	if _, err := p.cron.AddFunc(schedule, p.prune); err != nil {
		return nil, fmt.Errorf("retention schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start begins the schedule.
func (p *RetentionPruner) Start() {
	p.cron.Start()
	p.logger.Info("callback retention enabled", "max_age", p.maxAge)
}

// Stop halts the schedule and waits for an in-flight prune to finish.
func (p *RetentionPruner) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
}

func (p *RetentionPruner) prune() {
	cutoff := time.Now().Add(-p.maxAge)
	removed, err := p.store.PruneOlderThan(cutoff)
	if err != nil {
		p.logger.Error("callback retention prune failed", "error", err)
		return
	}
	if removed > 0 {
		p.logger.Info("pruned old callbacks", "removed", removed, "cutoff", cutoff.Format(time.RFC3339))
	}
}

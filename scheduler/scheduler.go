package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"sourcer/config"
	"sourcer/models"
)

// Store is the maintenance surface of the fact store.
type Store interface {
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
	RunStats(ctx context.Context, since time.Time) (models.RunStats, error)
}

const pruneTimeout = 30 * time.Second

type Scheduler struct {
	cfg   config.SchedulerConfig
	store Store
	cron  *cron.Cron
	now   func() time.Time

	// guards against overlapping prunes when a run outlasts the schedule
	mu sync.Mutex
}

func New(cfg config.SchedulerConfig, store Store) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		store: store,
		cron:  cron.New(),
		now:   time.Now,
	}
}

// Start registers the cache prune job. An empty PruneCron leaves the
// scheduler idle.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.PruneCron == "" {
		zap.L().Info("no prune schedule configured, expired facts stay until overwritten")
		return nil
	}

	zap.L().Info("starting scheduler", zap.String("prune_cron", s.cfg.PruneCron))
	_, err := s.cron.AddFunc(s.cfg.PruneCron, func() {
		if _, err := s.TriggerNow(ctx); err != nil {
			zap.L().Error("scheduled prune failed", zap.Error(err))
		}
	})
	if err != nil {
		return eris.Wrapf(err, "invalid cron expression %q", s.cfg.PruneCron)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// TriggerNow prunes expired facts immediately and logs recent run counts.
func (s *Scheduler) TriggerNow(ctx context.Context) (int64, error) {
	if !s.mu.TryLock() {
		zap.L().Debug("prune already running, skipping")
		return 0, nil
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	now := s.now()
	n, err := s.store.PruneExpired(ctx, now)
	if err != nil {
		return 0, eris.Wrap(err, "scheduler: prune expired facts")
	}

	fields := []zap.Field{zap.Int64("pruned", n)}
	if stats, err := s.store.RunStats(ctx, now.Add(-24*time.Hour)); err != nil {
		zap.L().Warn("run stats unavailable", zap.Error(err))
	} else {
		fields = append(fields,
			zap.Int("runs_24h", stats.Total),
			zap.Int("succeeded_24h", stats.Succeeded),
			zap.Int("failed_24h", stats.Failed),
			zap.Int("cached_24h", stats.Cached),
			zap.Int("manual_24h", stats.Manual))
	}
	zap.L().Info("fact cache pruned", fields...)
	return n, nil
}

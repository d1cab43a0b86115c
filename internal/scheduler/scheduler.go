package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Prober re-checks connectivity of the history store, reporting
// whether it is connected after the probe.
type Prober interface {
	Reconnect(ctx context.Context) bool
}

// Scheduler periodically probes the store so a degraded process can
// recover without a restart.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	prober Prober
	spec   string
}

// New creates a scheduler running the probe on the given cron spec
// (e.g. "@every 30s"). An empty spec disables probing.
func New(prober Prober, spec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		prober: prober,
		spec:   spec,
	}
}

func (s *Scheduler) Start() error {
	if s.prober == nil || s.spec == "" {
		log.Println("⚠️ Store probe disabled, degraded store will not recover automatically")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		s.prober.Reconnect(s.ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - store probe runs on %q", s.spec)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// IsRunning reports whether any probe job is scheduled.
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}

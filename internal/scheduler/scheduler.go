// Package scheduler runs the periodic settlement jobs.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cesargomez89/streampay/internal/logger"
)

// Job is one scheduled unit of work. It receives a context bounded by the
// scheduler's job timeout and cancelled on Stop.
type Job func(ctx context.Context) error

type Scheduler struct {
	Logger  *logger.Logger
	Timeout time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	names  map[cron.EntryID]string
}

func New(timeout time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("scheduler")
	ctx, cancel := context.WithCancel(context.Background())

	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &Scheduler{
		Logger:  log,
		Timeout: timeout,
		cron:    c,
		ctx:     ctx,
		cancel:  cancel,
		names:   make(map[cron.EntryID]string),
	}
}

// Register adds job under a standard cron spec or descriptor such as "@daily".
// A run still in progress when the next one is due causes that tick to be skipped.
func (s *Scheduler) Register(name, spec string, job Job) error {
	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()
	s.Logger.Info("Registered job", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx := s.ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	start := time.Now()
	log := s.Logger.With("job", name)
	log.Info("Job started")
	if err := job(ctx); err != nil {
		log.Error("Job failed", "error", err, "elapsed", time.Since(start))
		return
	}
	log.Info("Job finished", "elapsed", time.Since(start))
}

// Next reports when each registered job fires next, keyed by name.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.names))
	for _, e := range s.cron.Entries() {
		out[s.names[e.ID]] = e.Next
	}
	return out
}

func (s *Scheduler) Start() {
	s.Logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop prevents new runs, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.Logger.Info("Stopping scheduler")
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}

package scheduler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gamewatch/pkg/logx"

	"github.com/robfig/cron/v3"
)

// Config controls the trigger.
type Config struct {
	Enabled  bool
	Schedule string
	Timezone string        // IANA TZ, e.g. "Europe/Berlin"; empty means local
	Timeout  time.Duration // bound for one run; 0 means unbounded
}

// Job is one scheduled run. ctx ends when the run times out or the service stops.
type Job func(ctx context.Context)

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	job Job

	c       *cron.Cron
	entry   cron.EntryID
	loc     *time.Location
	base    context.Context
	started bool

	// draining holds stop contexts of triggers replaced by Apply whose runs
	// may still be in flight.
	draining []context.Context

	// running spans cron instances so a rebuilt trigger cannot overlap an old run.
	running atomic.Bool
	skipped atomic.Int64
}

func New(cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, job: job, log: log, base: context.Background()}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Start begins triggering. ctx is the parent of every run's context.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	if ctx != nil {
		s.base = ctx
	}
	s.started = true
	return s.startLocked()
}

func (s *Service) startLocked() error {
	cur := s.cfg
	if !cur.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	spec, err := ParseSchedule(cur.Schedule)
	if err != nil {
		return err
	}
	sched, err := spec.schedule()
	if err != nil {
		return err
	}

	s.loc = s.loadLocationLocked()
	cl := logx.CronLogger{Log: s.log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	s.entry = c.Schedule(sched, cron.FuncJob(s.run))
	s.c = c
	c.Start()

	s.log.Info("scheduler started",
		logx.String("schedule", spec.String()),
		logx.String("kind", spec.Kind.String()),
		logx.String("tz", s.loc.String()),
		logx.Time("next", c.Entry(s.entry).Next),
	)
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) run() {
	if !s.running.CompareAndSwap(false, true) {
		n := s.skipped.Add(1)
		s.log.Info("run skipped; previous run still in progress", logx.Int64("skipped_total", n))
		return
	}
	defer s.running.Store(false)

	s.mu.Lock()
	base, timeout, job := s.base, s.cfg.Timeout, s.job
	s.mu.Unlock()
	if base.Err() != nil || job == nil {
		return
	}

	ctx, cancel := base, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(base, timeout)
	}
	defer cancel()
	job(ctx)
}

// Next returns the next trigger time, or zero when not running.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entry).Next
}

// Skipped reports how many ticks were dropped because a run was in progress.
func (s *Service) Skipped() int64 { return s.skipped.Load() }

// Apply swaps the config. The trigger is rebuilt when schedule, timezone or
// the enabled flag changed; an in-flight run is not interrupted.
func (s *Service) Apply(cfg Config) error {
	if _, err := ParseSchedule(cfg.Schedule); cfg.Enabled && err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if s.c == nil {
		if s.started && cfg.Enabled {
			return s.startLocked()
		}
		return nil
	}
	if old.Schedule == cfg.Schedule && old.Timezone == cfg.Timezone && old.Enabled == cfg.Enabled {
		return nil
	}

	s.retireLocked()
	s.log.Info("scheduler restarting",
		logx.String("schedule", cfg.Schedule),
		logx.String("tz", cfg.Timezone),
		logx.Bool("enabled", cfg.Enabled),
	)
	return s.startLocked()
}

// retireLocked stops the current trigger and keeps its stop context so
// Stop can still wait for a run it started.
func (s *Service) retireLocked() {
	live := s.draining[:0]
	for _, d := range s.draining {
		if d.Err() == nil {
			live = append(live, d)
		}
	}
	s.draining = append(live, s.c.Stop())
	s.c = nil
}

// Stop stops triggering and waits for in-flight runs, including runs started
// by a trigger that Apply replaced, until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.c != nil {
		s.retireLocked()
	}
	pending := s.draining
	s.draining = nil
	s.started = false
	s.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	for _, d := range pending {
		select {
		case <-d.Done():
		case <-ctx.Done():
			s.log.Warn("scheduler stop timed out; run still in progress")
			return
		}
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

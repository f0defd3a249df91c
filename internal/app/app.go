// Package app wires configuration into the components and runs them, either
// as a long-running daemon (Start/Stop) or as one-shot operations.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gamewatch/internal/config"
	"gamewatch/internal/monitor"
	"gamewatch/internal/notifier"
	"gamewatch/internal/registry"
	"gamewatch/internal/riot"
	"gamewatch/internal/runtime/supervisor"
	"gamewatch/internal/scheduler"
	"gamewatch/internal/storage"
	"gamewatch/pkg/logx"
	"gamewatch/pkg/systemd"

	"github.com/spf13/viper"
)

type App struct {
	cfgm *config.ConfigManager
	env  *viper.Viper
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	riot  *riot.Client
	disp  *notifier.Dispatcher
	mon   *monitor.Monitor
	reg   *registry.Service
	sched *scheduler.Service
}

// NewApp loads the config at cfgPath (with env overrides when env is set)
// and builds every component. The store is opened here; Close or Stop
// releases it.
func NewApp(ctx context.Context, cfgPath string, env *viper.Viper) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath, env)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	rc, err := mapRiotConfig(cfg)
	if err != nil {
		return nil, err
	}
	nc, err := mapNotifyConfig(cfg)
	if err != nil {
		return nil, err
	}
	schedCfg, err := mapSchedulerConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, sc, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	client := riot.New(rc, nil, log)
	disp, err := notifier.New(nc, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	mon := monitor.New(mapMonitorConfig(cfg), monitor.Deps{
		Registry:   store,
		Status:     client,
		Dispatcher: disp,
		Log:        log,
	})

	a := &App{
		cfgm:  cfgm,
		env:   env,
		log:   log.With(logx.String("comp", "app")),
		logs:  logSvc,
		store: store,
		riot:  client,
		disp:  disp,
		mon:   mon,
		reg:   registry.New(store, client, log),
	}
	a.sched = scheduler.New(schedCfg, a.runCycle, log.With(logx.String("comp", "scheduler")))
	return a, nil
}

// Logger returns the root application logger.
func (a *App) Logger() logx.Logger { return a.log }

// runCycle is the scheduled job.
func (a *App) runCycle(ctx context.Context) {
	s := a.mon.Run(ctx)
	if s.Err != nil {
		a.log.Error("scheduled cycle failed", logx.Err(s.Err))
		_, _ = systemd.Status("last cycle failed: " + s.Err.Error())
		return
	}
	_, _ = systemd.Status(fmt.Sprintf("last cycle %s: %d checked, %d active, %d notified",
		s.StartedAt.Format(time.RFC3339), len(s.Checked), len(s.Active), s.Notified))
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// validate rejects a reloaded config that the components could not apply.
func (a *App) validate(_ context.Context, cfg *config.Config) error {
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapRiotConfig(cfg); err != nil {
		return err
	}
	if _, err := mapSchedulerConfig(cfg); err != nil {
		return err
	}
	nc, err := mapNotifyConfig(cfg)
	if err != nil {
		return err
	}
	// channel construction checks sender/host/token combinations
	if _, err := notifier.New(nc, nil, logx.Nop()); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Start runs the scheduler, the config watcher and the reload loop until ctx
// ends or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validate)

	// A disabled scheduler still starts so a reload can enable it.
	if err := a.sched.Start(a.sup.Context()); err != nil {
		return err
	}
	if !a.sched.Enabled() {
		a.log.Warn("monitor disabled; no cycles will run until monitor.enabled is set")
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		return a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.GoRestart("systemd.watchdog", systemd.Watchdog, supervisor.WithMaxRestarts(3))

	if _, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd ready notification failed", logx.Err(err))
	}
	a.log.Info("app started",
		logx.Bool("monitor_enabled", a.sched.Enabled()),
		logx.Time("next_cycle", a.sched.Next()),
		logx.Strs("channels", a.disp.Channels()),
	)
	return nil
}

func (a *App) reloadLoop(c context.Context, sub chan *config.Config) error {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return nil
		case newCfg, ok := <-sub:
			if !ok {
				return nil
			}
			// Coalesce bursts: keep only the latest config in the channel.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

// apply pushes a validated config into the running components.
func (a *App) apply(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if restart := config.RestartRequired(sections); len(restart) > 0 {
		a.log.Warn("config changed in sections that need a restart to take effect", logx.Strs("sections", restart))
	}

	a.logs.Apply(mapLoggingConfig(newCfg))
	a.mon.Apply(mapMonitorConfig(newCfg))

	if nc, err := mapNotifyConfig(newCfg); err != nil {
		a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
	} else if err := a.disp.Apply(nc); err != nil {
		a.log.Warn("notify channels not rebuilt; keeping previous", logx.Err(err))
	}

	if sc, err := mapSchedulerConfig(newCfg); err != nil {
		a.log.Warn("invalid monitor schedule config; keeping previous", logx.Err(err))
	} else if err := a.sched.Apply(sc); err != nil {
		a.log.Warn("schedule not applied; keeping previous", logx.Err(err))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts the daemon down; each step is bounded so one component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx := ctx
		if dl, ok := ctx.Deadline(); !ok || time.Until(dl) > max {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	// The scheduler waits for a running cycle, which still needs the store.
	step("scheduler", 10*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// Close releases the store and log files without a running daemon.
func (a *App) Close() error {
	err := a.store.Close()
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}

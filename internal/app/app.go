// Package app wires configuration, logging, storage, the notification bus
// and retention into one host process.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bridgekit/internal/asset"
	"bridgekit/internal/bridge"
	"bridgekit/internal/config"
	"bridgekit/internal/eventbus"
	"bridgekit/internal/retention"
	"bridgekit/internal/runtime/supervisor"
	"bridgekit/internal/storage"
	logx "bridgekit/pkg/logx"
)

// TopicLog carries forwarded log records: (severity, message).
const TopicLog = "log.record"

type StopReason string

const (
	StopUnknown      StopReason = "unknown"
	StopSignal       StopReason = "signal"
	StopFatalError   StopReason = "fatal_error"
	StopCommandDone  StopReason = "command_done"
	StopConfigReload StopReason = "config_reload"
)

type Option func(*options)

type options struct {
	sink bridge.LogSink
}

// WithLogSink sends forwarded log records to sink instead of TopicLog.
func WithLogSink(sink bridge.LogSink) Option { return func(o *options) { o.sink = sink } }

type App struct {
	cfgPath string
	cfgm    *config.ConfigManager
	sup     *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	bus       *eventbus.Bus
	store     storage.Store
	bridge    *bridge.Bridge
	assets    *asset.Registry
	retention *retention.Service
}

func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.LoadOrDefault()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	// The default sink needs the bus, which needs the logger. Records are
	// only forwarded after New returns, so bus is set by then.
	var bus *eventbus.Bus
	sink := o.sink
	if sink == nil {
		sink = bridge.LogFunc(func(sev bridge.Severity, msg string) {
			if bus != nil {
				_ = bus.Broadcast(TopicLog, eventbus.Str(sev.String()), eventbus.Str(msg))
			}
		})
	}
	logSvc, log := logx.New(mapLoggingConfig(cfg), bridge.Forwarder{Sink: sink})

	bus = eventbus.New(eventbus.WithLogger(log.With(logx.String("comp", "eventbus"))))
	bus.Define(TopicLog)
	for _, t := range cfg.Messages.Topics {
		if t = strings.TrimSpace(t); t != "" {
			bus.Define(t)
		}
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		assets:  asset.NewRegistry(),
	}

	sc, enabled, err := mapStorageConfig(cfg, filepath.Dir(cfgPath))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		a.store = st
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))

		rc, err := mapRetentionConfig(cfg)
		if err != nil {
			a.closeAll()
			return nil, err
		}
		ret, err := retention.New(rc, st, bus, log.With(logx.String("comp", "retention")))
		if err != nil {
			a.closeAll()
			return nil, err
		}
		if rc.Enabled {
			if err := ret.Validate(rc); err != nil {
				a.closeAll()
				return nil, fmt.Errorf("retention.schedule: %w", err)
			}
		}
		a.retention = ret
	} else {
		a.log.Info("storage disabled")
	}

	a.bridge = &bridge.Bridge{
		Logger: bridge.ToLogx(log.With(logx.String("comp", "bridge"))),
		Store:  a.store,
		Bus:    bus,
	}
	return a, nil
}

func (a *App) Logger() logx.Logger           { return a.log }
func (a *App) Bus() *eventbus.Bus            { return a.bus }
func (a *App) Store() storage.Store          { return a.store }
func (a *App) Bridge() *bridge.Bridge        { return a.bridge }
func (a *App) Retention() *retention.Service { return a.retention }
func (a *App) Config() *config.Config        { return a.cfgm.Get() }
func (a *App) Assets() *asset.Registry       { return a.assets }

// NewAsset creates an asset bound to the app bridge.
func (a *App) NewAsset(class string, opts ...asset.Option) *asset.Asset {
	return asset.New(a.assets, class, a.bridge, opts...)
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) validate(_ context.Context, cfg *config.Config) error {
	if _, _, err := mapStorageConfig(cfg, filepath.Dir(a.cfgPath)); err != nil {
		return err
	}
	rc, err := mapRetentionConfig(cfg)
	if err != nil {
		return err
	}
	if rc.Enabled && a.retention != nil {
		if err := a.retention.Validate(rc); err != nil {
			return fmt.Errorf("retention.schedule: %w", err)
		}
	}
	return nil
}

// Start launches retention, the config watcher and the reload loop.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validate)

	if a.retention != nil {
		if err := a.retention.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(last, cfg)
				last = cfg
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.String("config", a.cfgPath))
	return nil
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLoggingConfig(newCfg))

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "messages":
			for _, t := range newCfg.Messages.Topics {
				if t = strings.TrimSpace(t); t != "" {
					a.bus.Define(t)
				}
			}
		case "retention":
			if a.retention == nil {
				continue
			}
			rc, err := mapRetentionConfig(newCfg)
			if err == nil {
				err = a.retention.Apply(rc)
			}
			if err != nil {
				a.log.Warn("invalid retention config; keeping previous", logx.Err(err))
			}
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop halts background work and closes the store and log outputs.
// Each step is bounded so one slow component cannot stall shutdown.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		a.sup.Cancel()
	}

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		c, cancel := context.WithTimeout(ctx, limit)
		defer cancel()
		start := time.Now()
		if err := fn(c); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("retention", 2*time.Second, func(c context.Context) error {
		if a.retention != nil {
			a.retention.Stop(c)
		}
		return nil
	})
	step("supervisor", 2*time.Second, func(c context.Context) error {
		if a.sup == nil {
			return nil
		}
		if err := a.sup.Wait(c); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}

// Close releases resources without a prior Start.
func (a *App) Close() error {
	return a.Stop(context.Background(), StopCommandDone)
}

func (a *App) closeAll() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
}

// Package app assembles the daemon: config, logging, transport session,
// dispatch engine, and the supporting services around them.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"zapblast/internal/campaign"
	"zapblast/internal/config"
	"zapblast/internal/eventbus"
	"zapblast/internal/httpapi"
	"zapblast/internal/notify"
	"zapblast/internal/relay"
	"zapblast/internal/reports"
	"zapblast/internal/scheduler"
	"zapblast/internal/storage"
	"zapblast/internal/transport"
	"zapblast/internal/transport/sim"
	logx "zapblast/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	session transport.Session

	engine *campaign.Service
	sched  *scheduler.Service
	rec    *reports.Recorder
	relay  *relay.Relay
	notif  *notify.Notifier
	api    *httpapi.Server

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorage(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, logSvc.Logger().With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	session, err := buildSession(cfg, logSvc)
	if err != nil {
		return nil, err
	}

	engCfg, err := mapCampaign(cfg)
	if err != nil {
		return nil, err
	}
	engineSvc := campaign.New(engCfg, session, bus, logSvc.Logger().With(logx.String("comp", "campaign")))

	schedCfg, err := mapScheduler(cfg)
	if err != nil {
		return nil, err
	}
	schedSvc := scheduler.New(schedCfg, engineSvc, logSvc.Logger().With(logx.String("comp", "scheduler")))

	recSvc := reports.New(store, bus, logSvc.Logger().With(logx.String("comp", "reports")))

	relaySvc, err := relay.New(mapRelay(cfg), bus, logSvc.Logger().With(logx.String("comp", "relay")))
	if err != nil {
		return nil, err
	}

	notifSvc, err := notify.New(mapNotify(cfg), bus, logSvc.Logger().With(logx.String("comp", "notify")))
	if err != nil {
		return nil, err
	}

	apiSvc := httpapi.New(mapHTTP(cfg), engineSvc, schedSvc, recSvc, bus,
		logSvc.Logger().With(logx.String("comp", "http")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		session: session,
		engine:  engineSvc,
		sched:   schedSvc,
		rec:     recSvc,
		relay:   relaySvc,
		notif:   notifSvc,
		api:     apiSvc,
	}, nil
}

func buildSession(cfg *config.Config, logSvc *logx.Service) (transport.Session, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Transport.Driver))
	if driver == "" {
		driver = "sim"
	}
	switch driver {
	case "sim":
		simCfg, err := mapSim(cfg)
		if err != nil {
			return nil, err
		}
		return sim.New(simCfg, logSvc.Logger().With(logx.String("comp", "transport"))), nil
	default:
		return nil, fmt.Errorf("transport.driver: unknown driver %q", cfg.Transport.Driver)
	}
}

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapCampaign(cfg); err != nil {
			return err
		}
		if _, err := mapSim(cfg); err != nil {
			return err
		}
		if _, _, err := mapStorage(cfg); err != nil {
			return err
		}
		if _, err := mapScheduler(cfg); err != nil {
			return err
		}
		if nc := cfg.Notify; nc != nil && nc.Enabled {
			if strings.TrimSpace(nc.Token) == "" {
				return fmt.Errorf("notify.token is required when notify is enabled")
			}
			if nc.ChatID == 0 {
				return fmt.Errorf("notify.chat_id is required when notify is enabled")
			}
		}
		if ec := cfg.Events; ec != nil && ec.Enabled && strings.TrimSpace(ec.URL) == "" {
			return fmt.Errorf("events.url is required when events are enabled")
		}
		return nil
	})

	if c, ok := a.session.(interface{ Connect(context.Context) error }); ok {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}

	if err := a.rec.Start(ctx); err != nil {
		return err
	}
	if err := a.relay.Start(ctx); err != nil {
		return err
	}
	if err := a.notif.Start(ctx); err != nil {
		return err
	}
	if err := a.api.Start(ctx); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(ctx)
	}()

	updates := a.cfgm.Subscribe(4)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watchSession(ctx)
	}()

	a.log.Info("app started")
	return nil
}

// applyConfig fans a committed reload out to the hot-swappable components.
// The validator already vetted cfg, so mapping errors here are unexpected.
func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(mapLogging(cfg))

	if engCfg, err := mapCampaign(cfg); err == nil {
		a.engine.Apply(engCfg)
	}
	if schedCfg, err := mapScheduler(cfg); err == nil {
		a.sched.Apply(schedCfg)
	}
	if err := a.notif.Apply(mapNotify(cfg)); err != nil {
		a.log.Warn("notify config apply failed", logx.Err(err))
	}
	a.log.Info("config applied")
}

// watchSession logs transport connection-state changes. The engine itself
// only ever gates on Connected() at start time; a mid-run disconnect
// surfaces as per-recipient failures.
func (a *App) watchSession(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.session.StateChanges():
			if !ok {
				return
			}
			a.log.Info("session state changed",
				logx.String("state", string(ev.State)),
				logx.Time("at", ev.At))
			a.bus.Publish(eventbus.Event{Type: "transport.state", Time: ev.At, Data: ev})
			if ev.State == transport.StateLoggedOut {
				a.log.Warn("session logged out; campaigns cannot start until re-login")
			}
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("app stopping")
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.api.Stop(ctx); err != nil {
		a.log.Warn("http api stop failed", logx.Err(err))
	}
	a.sched.Shutdown(ctx)
	a.engine.Shutdown(ctx)
	if err := a.notif.Stop(ctx); err != nil {
		a.log.Warn("notifier stop failed", logx.Err(err))
	}
	if err := a.relay.Stop(ctx); err != nil {
		a.log.Warn("relay stop failed", logx.Err(err))
	}
	if err := a.rec.Stop(ctx); err != nil {
		a.log.Warn("report recorder stop failed", logx.Err(err))
	}
	if err := a.session.Close(ctx); err != nil {
		a.log.Warn("session close failed", logx.Err(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
	}

	a.wg.Wait()
	a.log.Info("app stopped")
	_ = a.logs.Close()
	return nil
}

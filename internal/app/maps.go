package app

import (
	"fmt"
	"strings"
	"time"

	"zapblast/internal/campaign"
	"zapblast/internal/config"
	"zapblast/internal/httpapi"
	"zapblast/internal/notify"
	"zapblast/internal/relay"
	"zapblast/internal/scheduler"
	"zapblast/internal/storage"
	"zapblast/internal/transport/sim"
	logx "zapblast/pkg/logx"
)

// Mapping helpers translate the file-level config (durations as strings,
// optional sections as pointers) into each component's typed config. They
// are also the validation surface for hot reload: a mapping error rejects
// the whole reload.

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapCampaign(cfg *config.Config) (campaign.Config, error) {
	min, err := config.ParseDurationField("campaign.min_delay", cfg.Campaign.MinDelay)
	if err != nil {
		return campaign.Config{}, err
	}
	max, err := config.ParseDurationField("campaign.max_delay", cfg.Campaign.MaxDelay)
	if err != nil {
		return campaign.Config{}, err
	}
	timeout, err := config.ParseDurationField("campaign.send_timeout", cfg.Campaign.SendTimeout)
	if err != nil {
		return campaign.Config{}, err
	}
	if min > 0 && max > 0 && max < min {
		return campaign.Config{}, fmt.Errorf("campaign.max_delay must be >= campaign.min_delay")
	}
	return campaign.Config{MinDelay: min, MaxDelay: max, SendTimeout: timeout}, nil
}

func mapStorage(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	if sc == nil {
		return storage.Config{}, false, nil
	}
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{Driver: driver, Path: sc.Path, BusyTimeout: busy}, true, nil
}

func mapSim(cfg *config.Config) (sim.Config, error) {
	sc := cfg.Transport.Sim
	if sc == nil {
		return sim.Config{}, nil
	}
	latency, err := config.ParseDurationField("transport.sim.latency", sc.Latency)
	if err != nil {
		return sim.Config{}, err
	}
	if sc.FailRate < 0 || sc.FailRate > 1 {
		return sim.Config{}, fmt.Errorf("transport.sim.fail_rate must be in [0,1]")
	}
	return sim.Config{
		Latency:      latency,
		FailRate:     sc.FailRate,
		RatePerSec:   sc.RatePerSec,
		Unregistered: sc.Unregistered,
		Seed:         sc.Seed,
	}, nil
}

func mapRelay(cfg *config.Config) relay.Config {
	ec := cfg.Events
	if ec == nil {
		return relay.Config{}
	}
	return relay.Config{Enabled: ec.Enabled, URL: ec.URL, Queue: ec.Queue}
}

func mapNotify(cfg *config.Config) notify.Config {
	nc := cfg.Notify
	if nc == nil {
		return notify.Config{}
	}
	return notify.Config{
		Enabled:    nc.Enabled,
		Token:      nc.Token,
		ChatID:     nc.ChatID,
		RatePerSec: float64(nc.RatePerSec),
	}
}

func mapScheduler(cfg *config.Config) (scheduler.Config, error) {
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return scheduler.Config{}, fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return scheduler.Config{Enabled: cfg.Scheduler.Enabled, Timezone: cfg.Scheduler.Timezone}, nil
}

func mapHTTP(cfg *config.Config) httpapi.Config {
	return httpapi.Config{
		Addr:           cfg.HTTP.Addr,
		UploadMaxBytes: cfg.HTTP.UploadMaxBytes,
	}
}

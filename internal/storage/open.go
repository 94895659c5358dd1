package storage

import (
	"context"
	"errors"
	"strings"

	logx "zapblast/pkg/logx"
)

// Store is the minimal persistence API used by the report writer and the
// HTTP status surface. This is an audit log, not campaign state: nothing is
// ever read back to resume a run.
type Store interface {
	AppendReport(ctx context.Context, e ReportEntry) error
	RecentReports(ctx context.Context, campaignID string, limit int) ([]ReportEntry, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the delivery-report store.
//
// Driver values:
//   - "file": dependency-free jsonl backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Report kinds.
const (
	ReportAttempt = "attempt"
	ReportSummary = "summary"
)

// ReportEntry is one row of the campaign audit trail: a per-recipient
// delivery attempt, or the terminal summary of a run.
// Keep it compact and schema-stable.
type ReportEntry struct {
	At         time.Time `json:"at"`
	CampaignID string    `json:"campaign_id"`
	Kind       string    `json:"kind"`
	Number     string    `json:"number,omitempty"` // attempt rows only
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	Sent       int       `json:"sent"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	DurationMS int64     `json:"duration_ms,omitempty"` // summary rows only
}

package campaign

import (
	"time"
)

// Config controls pacing of the dispatch loop.
//
// Delays are the jitter window between consecutive sends: each gap is drawn
// uniformly from [MinDelay, MaxDelay). The window is the dominant wall-clock
// cost of a run; it exists to stay under the transport's rate enforcement,
// so keep it generous.
type Config struct {
	MinDelay    time.Duration // default 30s
	MaxDelay    time.Duration // default 60s
	SendTimeout time.Duration // per-attempt bound (lookup + send), default 30s
}

func (c Config) withDefaults() Config {
	if c.MinDelay <= 0 {
		c.MinDelay = 30 * time.Second
	}
	if c.MaxDelay <= c.MinDelay {
		c.MaxDelay = c.MinDelay + 30*time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	return c
}

// State is the engine's lifecycle position. There is exactly one slot: the
// engine is Idle or it is Running one campaign.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is a read-only snapshot, safe to request while the loop runs.
type Status struct {
	State         State     `json:"state"`
	ID            string    `json:"id,omitempty"`
	Sent          int       `json:"sent"`
	Failed        int       `json:"failed"`
	Total         int       `json:"total"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	StopRequested bool      `json:"stop_requested,omitempty"`
}

// Bus event types emitted by the engine, in the order they can occur within
// one run: started, progress*, [stopped], finished. The finished event is
// always last and emitted exactly once per run.
const (
	EventStarted  = "campaign.started"
	EventProgress = "campaign.progress"
	EventStopped  = "campaign.stopped"
	EventFinished = "campaign.finished"
)

type StartedData struct {
	ID        string    `json:"id"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

type ProgressData struct {
	ID      string `json:"id"`
	Number  string `json:"number"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Error   string `json:"error,omitempty"`
}

type StoppedData struct {
	ID string `json:"id"`
}

type FinishedData struct {
	ID              string `json:"id"`
	Sent            int    `json:"sent"`
	Failed          int    `json:"failed"`
	Total           int    `json:"total"`
	DurationSeconds int64  `json:"duration_seconds"`
	Cancelled       bool   `json:"cancelled"`
}

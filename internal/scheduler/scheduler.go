// Package scheduler arms deferred campaign starts. One pending slot,
// mirroring the dispatch engine's single-campaign discipline.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zapblast/internal/campaign"
	"zapblast/internal/contact"
	"zapblast/internal/transport"
	logx "zapblast/pkg/logx"
)

var (
	ErrDisabled      = errors.New("scheduler disabled")
	ErrAlreadyArmed  = errors.New("a scheduled campaign is already pending")
	ErrNothingArmed  = errors.New("no scheduled campaign pending")
	ErrFireInThePast = errors.New("schedule resolves to the past")
)

type Config struct {
	Enabled  bool
	Timezone string // IANA name; empty means local time
}

// Starter is the slice of the dispatch engine the scheduler needs.
type Starter interface {
	Start(contacts contact.List, payload transport.Payload) (campaign.Status, error)
}

// Pending describes the armed deferral.
type Pending struct {
	ID       string    `json:"id"`
	FireAt   time.Time `json:"fire_at"`
	Total    int       `json:"total"`
	Schedule string    `json:"schedule"`
}

type Service struct {
	log    logx.Logger
	engine Starter

	mu    sync.Mutex
	cfg   Config
	loc   *time.Location
	cur   *armed
	timer *time.Timer
}

type armed struct {
	id       string
	fireAt   time.Time
	schedule string
	contacts contact.List
	payload  transport.Payload
}

func New(cfg Config, engine Starter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, engine: engine, cfg: cfg}
	s.loc = s.loadLocation(cfg.Timezone)
	return s
}

func (s *Service) loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Apply swaps the runtime configuration. An armed deferral keeps its
// already-computed fire time; only future Arm calls see the new timezone.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.loc = s.loadLocation(cfg.Timezone)
}

// Arm schedules a one-shot campaign start. Only one deferral can be
// pending at a time.
func (s *Service) Arm(schedule string, contacts contact.List, payload transport.Payload) (Pending, error) {
	spec, err := ParseSchedule(schedule)
	if err != nil {
		return Pending{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled {
		return Pending{}, ErrDisabled
	}
	if s.cur != nil {
		return Pending{}, ErrAlreadyArmed
	}

	now := time.Now()
	fireAt, err := spec.NextFire(now, s.loc)
	if err != nil {
		return Pending{}, err
	}
	if !fireAt.After(now) {
		return Pending{}, ErrFireInThePast
	}

	a := &armed{
		id:       uuid.NewString(),
		fireAt:   fireAt,
		schedule: schedule,
		contacts: contacts,
		payload:  payload,
	}
	s.cur = a
	s.timer = time.AfterFunc(time.Until(fireAt), func() { s.fire(a) })

	s.log.Info("campaign armed",
		logx.String("schedule_id", a.id),
		logx.Time("fire_at", fireAt),
		logx.Int("total", len(contacts)))
	return s.pendingLocked(), nil
}

// Cancel disarms the pending deferral.
func (s *Service) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ErrNothingArmed
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.log.Info("campaign disarmed", logx.String("schedule_id", s.cur.id))
	s.cur, s.timer = nil, nil
	return nil
}

// Status returns the pending deferral, or nil when nothing is armed.
func (s *Service) Status() *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	p := s.pendingLocked()
	return &p
}

func (s *Service) pendingLocked() Pending {
	return Pending{
		ID:       s.cur.id,
		FireAt:   s.cur.fireAt,
		Total:    len(s.cur.contacts),
		Schedule: s.cur.schedule,
	}
}

func (s *Service) fire(a *armed) {
	s.mu.Lock()
	if s.cur != a { // cancelled or replaced while the timer was in flight
		s.mu.Unlock()
		return
	}
	s.cur, s.timer = nil, nil
	s.mu.Unlock()

	st, err := s.engine.Start(a.contacts, a.payload)
	if err != nil {
		// The slot may be busy or the session down. The deferral is
		// consumed either way; the operator is told via logs.
		s.log.Warn("scheduled campaign could not start",
			logx.String("schedule_id", a.id),
			logx.Err(err))
		return
	}
	s.log.Info("scheduled campaign started",
		logx.String("schedule_id", a.id),
		logx.String("campaign_id", st.ID))
}

// Shutdown disarms any pending deferral.
func (s *Service) Shutdown(ctx context.Context) {
	_ = ctx
	_ = s.Cancel()
}

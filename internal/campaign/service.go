// Package campaign owns the dispatch engine: a single-slot, cancellable,
// observable send loop over a validated contact list.
//
// Concurrency model: one background goroutine drives a run; it is the only
// writer of the run's counters. External callers may Start, Stop, or read
// Status. Sends are strictly sequential; pacing and per-account rate limits
// on the transport side forbid parallel delivery.
package campaign

import (
	"context"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"zapblast/internal/contact"
	"zapblast/internal/eventbus"
	"zapblast/internal/transport"
	logx "zapblast/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config

	session transport.Session
	bus     eventbus.Bus
	log     logx.Logger

	// cur is the single campaign slot; nil means Idle.
	cur *run

	runCtx    context.Context
	runCancel context.CancelFunc
	loopWG    sync.WaitGroup
}

// run is one in-flight campaign. Counters are guarded by Service.mu; only
// the loop goroutine writes them.
type run struct {
	id       string
	contacts contact.List
	payload  transport.Payload
	rng      *rand.Rand

	startedAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once

	sent      int
	failed    int
	stopped   bool // Stop() was called while this run was live
	exhausted bool // loop reached the end of the list
}

func New(cfg Config, session transport.Session, bus eventbus.Bus, log logx.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:       cfg.withDefaults(),
		session:   session,
		bus:       bus,
		log:       log,
		runCtx:    ctx,
		runCancel: cancel,
	}
}

// Apply updates pacing knobs at runtime. An in-flight run picks the new
// window up on its next inter-send delay.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// Start begins a campaign over contacts with the given payload.
//
// Preconditions checked synchronously, in order: payload well-formed,
// contact list non-empty, transport connected, engine slot free. On success
// the engine transitions Idle -> Running, emits campaign.started, and the
// loop goroutine takes over; Start returns immediately with the initial
// status snapshot.
func (s *Service) Start(contacts contact.List, payload transport.Payload) (Status, error) {
	if err := payload.Validate(); err != nil {
		return Status{}, err
	}
	if len(contacts) == 0 {
		return Status{}, ErrNoContacts
	}
	if !s.session.Connected() {
		return Status{}, ErrNotConnected
	}

	s.mu.Lock()
	if s.cur != nil {
		s.mu.Unlock()
		return Status{}, ErrAlreadyRunning
	}
	if s.runCtx.Err() != nil {
		s.mu.Unlock()
		return Status{}, ErrNotConnected
	}
	r := &run{
		id:        uuid.NewString(),
		contacts:  contacts,
		payload:   payload,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
	// Working order: uniformly random permutation (Fisher–Yates). The input
	// list itself is never mutated.
	order := make(contact.List, len(contacts))
	copy(order, contacts)
	r.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	s.cur = r
	cfg := s.cfg
	ctx := s.runCtx
	s.mu.Unlock()

	s.log.Info("campaign started",
		logx.String("campaign", r.id),
		logx.Int("total", len(order)),
		logx.String("kind", string(payload.Kind())))
	s.bus.Publish(eventbus.Event{Type: EventStarted, Time: r.startedAt, Data: StartedData{
		ID:        r.id,
		Total:     len(order),
		StartedAt: r.startedAt,
	}})

	s.loopWG.Add(1)
	go func() {
		defer s.loopWG.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic in campaign loop",
					logx.String("campaign", r.id),
					logx.Any("panic", rec),
					logx.Stack(string(debug.Stack())))
				s.clearSlot(r)
			}
		}()
		s.loop(ctx, cfg, r, order)
	}()

	return s.snapshot(r), nil
}

// Stop requests cancellation of the current run.
//
// It is a no-op (not an error) when the engine is Idle. It never interrupts
// an in-flight network call, but it does cut the pacing delay short and
// guarantees no further contact is attempted. campaign.stopped is emitted
// immediately; the terminal campaign.finished follows once the loop unwinds.
func (s *Service) Stop() bool {
	s.mu.Lock()
	r := s.cur
	if r != nil {
		r.stopped = true
	}
	s.mu.Unlock()
	if r == nil {
		return false
	}

	r.stopOnce.Do(func() {
		close(r.stopCh)
		s.log.Info("campaign stop requested", logx.String("campaign", r.id))
		s.bus.Publish(eventbus.Event{Type: EventStopped, Data: StoppedData{ID: r.id}})
	})
	return true
}

// Status returns the current snapshot; {State: idle} when no run is live.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return Status{State: StateIdle}
	}
	return s.snapshotLocked(s.cur)
}

// Shutdown cancels any in-flight run (mid-call aborts included) and waits
// for the loop goroutine to exit. Used on process teardown only.
func (s *Service) Shutdown(ctx context.Context) {
	s.Stop()
	s.runCancel()

	done := make(chan struct{})
	go func() {
		s.loopWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("campaign loop did not drain before shutdown deadline")
	}
}

func (s *Service) snapshot(r *run) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(r)
}

func (s *Service) snapshotLocked(r *run) Status {
	return Status{
		State:         StateRunning,
		ID:            r.id,
		Sent:          r.sent,
		Failed:        r.failed,
		Total:         len(r.contacts),
		StartedAt:     r.startedAt,
		StopRequested: r.stopped,
	}
}

func (s *Service) clearSlot(r *run) {
	s.mu.Lock()
	if s.cur == r {
		s.cur = nil
	}
	s.mu.Unlock()
}

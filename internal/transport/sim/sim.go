// Package sim is an in-memory transport.Session used for development runs
// and tests. It answers lookups and sends with configurable latency and
// failure behavior so the dispatch loop can be exercised without a live
// messaging account.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"zapblast/internal/transport"
	logx "zapblast/pkg/logx"
)

type Config struct {
	// Latency is the simulated round-trip per lookup/send (default 150ms).
	Latency time.Duration
	// FailRate in [0,1] makes that fraction of sends fail (default 0).
	FailRate float64
	// Unregistered numbers answer AddressExists with false.
	Unregistered []string
	// RatePerSec caps outbound calls (default 10). The real network throttles
	// hard; keeping the guard here means tests exercise the same code path.
	RatePerSec int
	// Seed makes a run reproducible; 0 seeds from the clock.
	Seed int64
}

var errSimulatedFailure = errors.New("sim: simulated send failure")

type Session struct {
	cfg Config
	log logx.Logger

	limiter *rate.Limiter
	states  chan transport.StateEvent

	mu           sync.Mutex
	rng          *rand.Rand
	connected    bool
	unregistered map[string]struct{}
	sent         int
}

func New(cfg Config, log logx.Logger) *Session {
	if cfg.Latency <= 0 {
		cfg.Latency = 150 * time.Millisecond
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Session{
		cfg:          cfg,
		log:          log,
		limiter:      rate.NewLimiter(rate.Limit(rps), rps),
		states:       make(chan transport.StateEvent, 16),
		rng:          rand.New(rand.NewSource(seed)),
		unregistered: make(map[string]struct{}, len(cfg.Unregistered)),
	}
	for _, n := range cfg.Unregistered {
		s.unregistered[n] = struct{}{}
	}
	return s
}

// Connect flips the session online. There is no pairing to wait for, but the
// state notification contract is the same as a real session's.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	already := s.connected
	s.connected = true
	s.mu.Unlock()
	if already {
		return nil
	}
	s.notify(transport.StateConnected)
	s.log.Info("sim session connected")
	return nil
}

func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	was := s.connected
	s.connected = false
	s.mu.Unlock()
	if was {
		s.notify(transport.StateDisconnected)
	}
	return nil
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) StateChanges() <-chan transport.StateEvent { return s.states }

func (s *Session) AddressExists(ctx context.Context, number string) (bool, error) {
	if err := s.roundTrip(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	_, missing := s.unregistered[number]
	s.mu.Unlock()
	return !missing, nil
}

func (s *Session) Send(ctx context.Context, number string, p transport.Payload) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.roundTrip(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	fail := s.cfg.FailRate > 0 && s.rng.Float64() < s.cfg.FailRate
	if !fail {
		s.sent++
	}
	s.mu.Unlock()

	if fail {
		return errSimulatedFailure
	}
	s.log.Debug("sim send",
		logx.String("to", number),
		logx.String("kind", string(p.Kind())),
		logx.Int("bytes", len(p.Image)+len(p.Audio)))
	return nil
}

// SentCount reports successful sends; tests use it to cross-check counters.
func (s *Session) SentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// roundTrip models one network call: rate-limit gate, then latency,
// both interruptible by ctx.
func (s *Session) roundTrip(ctx context.Context) error {
	if !s.Connected() {
		return errors.New("sim: session not connected")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	tmr := time.NewTimer(s.cfg.Latency)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tmr.C:
		return nil
	}
}

func (s *Session) notify(st transport.State) {
	ev := transport.StateEvent{State: st, At: time.Now()}
	select {
	case s.states <- ev:
	default:
		// observer is slow; connection state is also queryable via Connected()
	}
}

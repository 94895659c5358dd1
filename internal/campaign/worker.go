package campaign

import (
	"context"
	"math"
	"time"

	"zapblast/internal/contact"
	"zapblast/internal/eventbus"
	logx "zapblast/pkg/logx"
)

const reasonNotRegistered = "address not registered"

// loop drives one run to its terminal event. It is the only writer of the
// run's counters and always emits campaign.finished exactly once, as the
// run's last event.
func (s *Service) loop(ctx context.Context, cfg Config, r *run, order contact.List) {
	total := len(order)

	for i, ct := range order {
		if r.cancelled(ctx) {
			break
		}

		// Re-read so Apply() reaches an in-flight run at its next attempt.
		cfg = s.currentCfg()
		reason := s.attempt(ctx, cfg, r, ct)

		s.mu.Lock()
		if reason == "" {
			r.sent++
		} else {
			r.failed++
		}
		sent, failed := r.sent, r.failed
		s.mu.Unlock()

		done := sent + failed
		s.bus.Publish(eventbus.Event{Type: EventProgress, Data: ProgressData{
			ID:      r.id,
			Number:  ct.Number,
			Sent:    sent,
			Failed:  failed,
			Total:   total,
			Percent: percent(done, total),
			Error:   reason,
		}})
		if reason != "" {
			s.log.Warn("send failed",
				logx.String("campaign", r.id),
				logx.String("to", ct.Number),
				logx.String("reason", reason))
		} else {
			s.log.Debug("send ok",
				logx.String("campaign", r.id),
				logx.String("to", ct.Number),
				logx.Int("done", done),
				logx.Int("total", total))
		}

		if i == total-1 {
			s.mu.Lock()
			r.exhausted = true
			s.mu.Unlock()
			break
		}
		if r.cancelled(ctx) {
			break
		}
		// Jittered pacing gap. Only cancellation may cut it short; outcome of
		// the attempt never does.
		s.pause(ctx, cfg, r)
	}

	end := time.Now()
	dur := end.Sub(r.startedAt)

	s.mu.Lock()
	sent, failed := r.sent, r.failed
	cancelled := r.stopped && !r.exhausted
	s.mu.Unlock()

	s.log.Info("campaign finished",
		logx.String("campaign", r.id),
		logx.Int("sent", sent),
		logx.Int("failed", failed),
		logx.Int("total", total),
		logx.Bool("cancelled", cancelled),
		logx.Duration("dur", dur))
	s.bus.Publish(eventbus.Event{Type: EventFinished, Time: end, Data: FinishedData{
		ID:              r.id,
		Sent:            sent,
		Failed:          failed,
		Total:           total,
		DurationSeconds: int64(math.Round(dur.Seconds())),
		Cancelled:       cancelled,
	}})

	// Slot freed only after the terminal event, so a racing Start can never
	// interleave its events with this run's.
	s.clearSlot(r)
}

// attempt performs exactly one delivery try for ct and returns "" on
// success or the failure reason. Any error is per-recipient: it is recorded
// and the batch continues.
func (s *Service) attempt(ctx context.Context, cfg Config, r *run, ct contact.Contact) string {
	actx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()

	exists, err := s.session.AddressExists(actx, ct.Number)
	if err != nil {
		return "address lookup failed: " + err.Error()
	}
	if !exists {
		return reasonNotRegistered
	}
	if err := s.session.Send(actx, ct.Number, r.payload); err != nil {
		return err.Error()
	}
	return ""
}

// pause sleeps a uniformly random duration in [MinDelay, MaxDelay), racing
// the timer against the stop channel and the run context so cancellation
// takes effect within channel-select latency instead of the full window.
func (s *Service) pause(ctx context.Context, cfg Config, r *run) {
	window := cfg.MaxDelay - cfg.MinDelay
	delay := cfg.MinDelay
	if window > 0 {
		delay += time.Duration(r.rng.Int63n(int64(window)))
	}

	tmr := time.NewTimer(delay)
	defer tmr.Stop()
	select {
	case <-ctx.Done():
	case <-r.stopCh:
	case <-tmr.C:
	}
}

func (s *Service) currentCfg() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (r *run) cancelled(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(done) / float64(total)))
}

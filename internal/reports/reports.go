// Package reports turns campaign bus events into persisted delivery reports.
package reports

import (
	"context"
	"sync"
	"time"

	"zapblast/internal/campaign"
	"zapblast/internal/eventbus"
	"zapblast/internal/storage"
	logx "zapblast/pkg/logx"
)

// Recorder subscribes to the event bus and appends one report row per
// delivery attempt plus one summary row when a run finishes. It is a pure
// sink: losing a row never affects the campaign itself.
type Recorder struct {
	store storage.Store
	bus   eventbus.Bus
	log   logx.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func New(store storage.Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log}
}

// Start begins consuming events. It is a no-op when the store is nil
// (storage disabled).
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	if r.store == nil {
		r.log.Info("report recorder disabled (no storage)")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	events, unsub := r.bus.Subscribe(128)

	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go func() {
		defer close(r.done)
		defer unsub()
		r.consume(ctx, events)
	}()

	r.log.Info("report recorder started")
	return nil
}

func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *Recorder) consume(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev eventbus.Event) {
	var entry storage.ReportEntry

	switch ev.Type {
	case campaign.EventProgress:
		d, ok := ev.Data.(campaign.ProgressData)
		if !ok {
			return
		}
		entry = storage.ReportEntry{
			At:         ev.Time,
			CampaignID: d.ID,
			Kind:       storage.ReportAttempt,
			Number:     d.Number,
			OK:         d.Error == "",
			Error:      d.Error,
			Sent:       d.Sent,
			Failed:     d.Failed,
			Total:      d.Total,
		}
	case campaign.EventFinished:
		d, ok := ev.Data.(campaign.FinishedData)
		if !ok {
			return
		}
		entry = storage.ReportEntry{
			At:         ev.Time,
			CampaignID: d.ID,
			Kind:       storage.ReportSummary,
			Sent:       d.Sent,
			Failed:     d.Failed,
			Total:      d.Total,
			DurationMS: d.DurationSeconds * 1000,
		}
	default:
		return
	}

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.store.AppendReport(wctx, entry); err != nil {
		r.log.Warn("append report failed",
			logx.String("campaign_id", entry.CampaignID),
			logx.String("kind", entry.Kind),
			logx.Err(err))
	}
}

// Recent returns persisted reports, newest-first capped at limit, oldest
// first within the slice. A nil store yields storage.ErrDisabled.
func (r *Recorder) Recent(ctx context.Context, campaignID string, limit int) ([]storage.ReportEntry, error) {
	if r.store == nil {
		return nil, storage.ErrDisabled
	}
	return r.store.RecentReports(ctx, campaignID, limit)
}

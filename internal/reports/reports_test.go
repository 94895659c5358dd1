package reports

import (
	"context"
	"sync"
	"testing"
	"time"

	"zapblast/internal/campaign"
	"zapblast/internal/eventbus"
	"zapblast/internal/storage"
	logx "zapblast/pkg/logx"
)

type memStore struct {
	mu      sync.Mutex
	entries []storage.ReportEntry
}

func (m *memStore) AppendReport(_ context.Context, e storage.ReportEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) RecentReports(_ context.Context, campaignID string, limit int) ([]storage.ReportEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ReportEntry
	for _, e := range m.entries {
		if campaignID == "" || e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) snapshot() []storage.ReportEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.ReportEntry(nil), m.entries...)
}

func TestRecorderPersistsAttemptsAndSummary(t *testing.T) {
	t.Parallel()

	store := &memStore{}
	bus := eventbus.New()
	rec := New(store, bus, logx.Nop())

	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer rec.Stop(ctx)

	bus.Publish(eventbus.Event{Type: campaign.EventStarted, Data: campaign.StartedData{ID: "c1", Total: 2}})
	bus.Publish(eventbus.Event{Type: campaign.EventProgress, Data: campaign.ProgressData{
		ID: "c1", Number: "5511999999999", Sent: 1, Total: 2, Percent: 50,
	}})
	bus.Publish(eventbus.Event{Type: campaign.EventProgress, Data: campaign.ProgressData{
		ID: "c1", Number: "5521988888888", Sent: 1, Failed: 1, Total: 2, Percent: 100, Error: "address not registered",
	}})
	bus.Publish(eventbus.Event{Type: campaign.EventFinished, Data: campaign.FinishedData{
		ID: "c1", Sent: 1, Failed: 1, Total: 2, DurationSeconds: 3,
	}})

	deadline := time.Now().Add(2 * time.Second)
	var got []storage.ReportEntry
	for time.Now().Before(deadline) {
		got = store.snapshot()
		if len(got) == 3 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3 (started event must not be persisted)", len(got))
	}

	if got[0].Kind != storage.ReportAttempt || !got[0].OK {
		t.Fatalf("first entry: %+v", got[0])
	}
	if got[1].Kind != storage.ReportAttempt || got[1].OK || got[1].Error != "address not registered" {
		t.Fatalf("second entry: %+v", got[1])
	}
	if got[2].Kind != storage.ReportSummary || got[2].DurationMS != 3000 {
		t.Fatalf("summary entry: %+v", got[2])
	}
}

func TestRecorderDisabledWithoutStore(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	rec := New(nil, bus, logx.Nop())
	ctx := context.Background()
	if err := rec.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rec.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := rec.Recent(ctx, "", 10); err != storage.ErrDisabled {
		t.Fatalf("Recent err = %v, want ErrDisabled", err)
	}
}

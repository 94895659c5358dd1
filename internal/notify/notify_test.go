package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"zapblast/internal/campaign"
	"zapblast/internal/eventbus"
	logx "zapblast/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSender) Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := what.(string); ok {
		f.texts = append(f.texts, s)
	}
	return &tele.Message{}, nil
}

func (f *fakeSender) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func testNotifier(t *testing.T, bus eventbus.Bus) (*Notifier, *fakeSender) {
	t.Helper()
	fake := &fakeSender{}
	n := &Notifier{
		bus:     bus,
		log:     logx.Nop(),
		cfg:     Config{Enabled: true, ChatID: 42, RatePerSec: 1000},
		bot:     fake,
		limiter: rate.NewLimiter(rate.Limit(1000), 1),
	}
	return n, fake
}

func waitFor(t *testing.T, fake *fakeSender, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := fake.snapshot()
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d messages, have %d", want, len(fake.snapshot()))
	return nil
}

func TestNotifierLifecycleMessages(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	n, fake := testNotifier(t, bus)
	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop(ctx)

	bus.Publish(eventbus.Event{Type: campaign.EventStarted, Data: campaign.StartedData{ID: "abcdefgh1234", Total: 4}})
	bus.Publish(eventbus.Event{Type: campaign.EventStopped, Data: campaign.StoppedData{ID: "abcdefgh1234"}})
	bus.Publish(eventbus.Event{Type: campaign.EventFinished, Data: campaign.FinishedData{
		ID: "abcdefgh1234", Sent: 2, Failed: 1, Total: 4, DurationSeconds: 90, Cancelled: true,
	}})

	got := waitFor(t, fake, 3)
	if got[0] != "Campaign abcdefgh started: 4 recipients." {
		t.Fatalf("started message: %q", got[0])
	}
	if got[1] != "Campaign abcdefgh: stop requested." {
		t.Fatalf("stopped message: %q", got[1])
	}
	if got[2] != "Campaign abcdefgh cancelled: 2 sent, 1 failed of 4 in 1m30s." {
		t.Fatalf("finished message: %q", got[2])
	}
}

func TestNotifierProgressMilestones(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	n, fake := testNotifier(t, bus)
	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer n.Stop(ctx)

	bus.Publish(eventbus.Event{Type: campaign.EventStarted, Data: campaign.StartedData{ID: "c1", Total: 10}})
	for i := 1; i <= 10; i++ {
		bus.Publish(eventbus.Event{Type: campaign.EventProgress, Data: campaign.ProgressData{
			ID: "c1", Sent: i, Total: 10, Percent: i * 10,
		}})
	}
	bus.Publish(eventbus.Event{Type: campaign.EventFinished, Data: campaign.FinishedData{
		ID: "c1", Sent: 10, Total: 10, DurationSeconds: 5,
	}})

	// started + milestones at 25, 50, 75 + finished. 100% is left to finished.
	got := waitFor(t, fake, 5)
	time.Sleep(50 * time.Millisecond)
	got = fake.snapshot()
	if len(got) != 5 {
		t.Fatalf("messages = %d, want 5: %q", len(got), got)
	}
	if got[1] != "Campaign c1 at 25%: 3 sent, 0 failed of 10." {
		t.Fatalf("first milestone: %q", got[1])
	}
	if got[3] != "Campaign c1 at 75%: 8 sent, 0 failed of 10." {
		t.Fatalf("last milestone: %q", got[3])
	}
}

func TestNotifierDisabled(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	n, err := New(Config{Enabled: false}, bus, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := n.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := n.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	if _, err := New(Config{Enabled: true, ChatID: 42}, bus, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
	if _, err := New(Config{Enabled: true, Token: "t"}, bus, logx.Nop()); err == nil {
		t.Fatal("expected error for zero chat id")
	}
}

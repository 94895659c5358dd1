// Package notify pushes campaign lifecycle summaries to an operator's
// Telegram chat. Send-only: the bot never polls for updates.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"zapblast/internal/campaign"
	"zapblast/internal/eventbus"
	logx "zapblast/pkg/logx"
)

type Config struct {
	Enabled    bool
	Token      string
	ChatID     int64
	RatePerSec float64 // outbound message ceiling, default 1
}

// sender is the slice of the telebot API we use. Narrowed for tests.
type sender interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// Notifier subscribes to the bus and forwards started/stopped/finished
// events as human-readable messages. Progress events are summarized only
// at coarse milestones to keep the chat usable.
type Notifier struct {
	bus eventbus.Bus
	log logx.Logger

	mu      sync.Mutex
	cfg     Config
	bot     sender
	limiter *rate.Limiter
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	lastMilestone int
}

func New(cfg Config, bus eventbus.Bus, log logx.Logger) (*Notifier, error) {
	n := &Notifier{bus: bus, log: log}
	if err := n.configure(cfg); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Notifier) configure(cfg Config) error {
	if cfg.Enabled && strings.TrimSpace(cfg.Token) == "" {
		return errors.New("notify enabled but token is empty")
	}
	if cfg.Enabled && cfg.ChatID == 0 {
		return errors.New("notify enabled but chat_id is zero")
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if cfg.Enabled && (n.bot == nil || n.cfg.Token != cfg.Token) {
		b, err := tele.NewBot(tele.Settings{
			Token:  cfg.Token,
			Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		})
		if err != nil {
			return err
		}
		n.bot = b
	}
	n.cfg = cfg
	n.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	return nil
}

// Apply swaps the runtime configuration. Used by config hot reload.
func (n *Notifier) Apply(cfg Config) error {
	return n.configure(cfg)
}

func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return nil
	}
	if !n.cfg.Enabled {
		n.log.Info("operator notifier disabled")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	events, unsub := n.bus.Subscribe(64)

	n.cancel = cancel
	n.done = make(chan struct{})
	n.running = true

	go func() {
		defer close(n.done)
		defer unsub()
		n.consume(ctx, events)
	}()

	n.log.Info("operator notifier started", logx.Int64("chat_id", n.cfg.ChatID))
	return nil
}

func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = false
	cancel, done := n.cancel, n.done
	n.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (n *Notifier) consume(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			text := n.render(ev)
			if text == "" {
				continue
			}
			n.send(ctx, text)
		}
	}
}

// render maps a bus event to the message text, or "" to skip it.
func (n *Notifier) render(ev eventbus.Event) string {
	switch ev.Type {
	case campaign.EventStarted:
		d, ok := ev.Data.(campaign.StartedData)
		if !ok {
			return ""
		}
		n.mu.Lock()
		n.lastMilestone = 0
		n.mu.Unlock()
		return fmt.Sprintf("Campaign %s started: %d recipients.", short(d.ID), d.Total)
	case campaign.EventProgress:
		d, ok := ev.Data.(campaign.ProgressData)
		if !ok {
			return ""
		}
		ms := d.Percent / 25 * 25 // 25% milestones
		n.mu.Lock()
		skip := ms <= n.lastMilestone || ms == 100
		if !skip {
			n.lastMilestone = ms
		}
		n.mu.Unlock()
		if skip {
			return ""
		}
		return fmt.Sprintf("Campaign %s at %d%%: %d sent, %d failed of %d.",
			short(d.ID), ms, d.Sent, d.Failed, d.Total)
	case campaign.EventStopped:
		d, ok := ev.Data.(campaign.StoppedData)
		if !ok {
			return ""
		}
		return fmt.Sprintf("Campaign %s: stop requested.", short(d.ID))
	case campaign.EventFinished:
		d, ok := ev.Data.(campaign.FinishedData)
		if !ok {
			return ""
		}
		verdict := "completed"
		if d.Cancelled {
			verdict = "cancelled"
		}
		return fmt.Sprintf("Campaign %s %s: %d sent, %d failed of %d in %s.",
			short(d.ID), verdict, d.Sent, d.Failed, d.Total,
			(time.Duration(d.DurationSeconds) * time.Second).String())
	}
	return ""
}

func (n *Notifier) send(ctx context.Context, text string) {
	n.mu.Lock()
	bot, limiter, chatID := n.bot, n.limiter, n.cfg.ChatID
	n.mu.Unlock()
	if bot == nil {
		return
	}

	if err := limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := bot.Send(&tele.Chat{ID: chatID}, text); err != nil {
		n.log.Warn("notify send failed", logx.Err(err))
	}
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

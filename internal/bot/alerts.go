package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"fx-triangle-watch/internal/domain"

	tele "gopkg.in/telebot.v3"
)

// DefaultAlertCooldown spaces alerts to one chat. The monitor emits on every
// quote while the rate stays outside the band.
const DefaultAlertCooldown = 30 * time.Second

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Subscription is one chat's alert preference.
type Subscription struct {
	// MinDeviationBps drops groups whose |rate-1| is below this many basis points.
	MinDeviationBps float64
	lastSent        time.Time
}

// AlertDispatcher pushes detection groups to subscribed chats.
type AlertDispatcher struct {
	sender   messageSender
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	subs map[int64]*Subscription
}

func NewAlertDispatcher(sender messageSender, cooldown time.Duration) *AlertDispatcher {
	if cooldown < 0 {
		cooldown = 0
	}
	return &AlertDispatcher{
		sender:   sender,
		cooldown: cooldown,
		now:      time.Now,
		subs:     make(map[int64]*Subscription),
	}
}

// Subscribe adds chatID or updates its deviation floor. It reports whether the
// chat was newly added.
func (d *AlertDispatcher) Subscribe(chatID int64, minDeviationBps float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sub, ok := d.subs[chatID]; ok {
		sub.MinDeviationBps = minDeviationBps
		return false
	}
	d.subs[chatID] = &Subscription{MinDeviationBps: minDeviationBps}
	return true
}

func (d *AlertDispatcher) Unsubscribe(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.subs[chatID]; !ok {
		return false
	}
	delete(d.subs, chatID)
	return true
}

func (d *AlertDispatcher) Subscription(chatID int64) (Subscription, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub, ok := d.subs[chatID]
	if !ok {
		return Subscription{}, false
	}
	return *sub, true
}

func (d *AlertDispatcher) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// NotifySignals sends the group as one message to every chat whose floor it
// clears and whose cooldown has passed.
func (d *AlertDispatcher) NotifySignals(_ context.Context, signals []domain.ArbitrageSignal) error {
	if d == nil || d.sender == nil || len(signals) == 0 {
		return nil
	}

	recipients := d.claimRecipients(deviationBps(signals[0].Rate))
	if len(recipients) == 0 {
		return nil
	}

	msg := formatAlertMessage(signals)
	var errs []error
	for _, chatID := range recipients {
		if _, err := d.sender.Send(&tele.Chat{ID: chatID}, msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed sending %d alerts: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// claimRecipients stamps the cooldown for every returned chat.
func (d *AlertDispatcher) claimRecipients(bps float64) []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	out := make([]int64, 0, len(d.subs))
	for chatID, sub := range d.subs {
		if bps < sub.MinDeviationBps {
			continue
		}
		if !sub.lastSent.IsZero() && now.Sub(sub.lastSent) < d.cooldown {
			continue
		}
		sub.lastSent = now
		out = append(out, chatID)
	}
	slices.Sort(out)
	return out
}

func deviationBps(rate float64) float64 {
	return math.Abs(rate-1) * 10_000
}

// parseAlertMode accepts "on [min-bps]", "off" and "status". Empty args mean status.
func parseAlertMode(args []string) (string, float64, error) {
	if len(args) == 0 {
		return "status", 0, nil
	}

	mode := strings.ToLower(strings.TrimSpace(args[0]))
	switch mode {
	case "off", "status":
		if len(args) > 1 {
			return "", 0, errors.New("unexpected arguments")
		}
		return mode, 0, nil
	case "on":
		if len(args) == 1 {
			return mode, 0, nil
		}
		if len(args) > 2 {
			return "", 0, errors.New("unexpected arguments")
		}
		bps, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
		if err != nil || math.IsNaN(bps) || bps < 0 || bps > 10_000 {
			return "", 0, errors.New("min deviation must be between 0 and 10000 bps")
		}
		return mode, bps, nil
	default:
		return "", 0, errors.New("invalid mode")
	}
}

func formatAlertMessage(signals []domain.ArbitrageSignal) string {
	first := signals[0]
	lines := make([]string, 0, len(signals)+2)
	lines = append(lines, fmt.Sprintf("Triangle mispricing, rate %.6f (%.1f bps)", first.Rate, deviationBps(first.Rate)))
	for _, s := range signals {
		lines = append(lines, formatLeg(s))
	}
	lines = append(lines, fmt.Sprintf("valid until %s", first.ExpiresAt().UTC().Format(time.TimeOnly)))
	return strings.Join(lines, "\n")
}

func formatLeg(s domain.ArbitrageSignal) string {
	return fmt.Sprintf("%s %s by %.4f%%", strings.ToUpper(string(s.Direction)), s.InstrumentID, s.Magnitude*100)
}

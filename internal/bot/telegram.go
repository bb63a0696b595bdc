package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fx-triangle-watch/internal/chart"
	"fx-triangle-watch/internal/domain"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"
)

const (
	commandTimeout      = 5 * time.Second
	defaultChartSamples = 200
	maxChartSamples     = 500
)

type TriangleQuerier interface {
	LatestSnapshot(ctx context.Context) (domain.TriangleSnapshot, error)
	ListSignals(ctx context.Context, filter domain.SignalFilter) ([]domain.ArbitrageSignal, error)
	RateChart(ctx context.Context, limit int) ([]byte, error)
}

// StartTelegramBot returns nil when token is empty so callers can skip the sink.
func StartTelegramBot(token string, svc TriangleQuerier, logger *logrus.Logger) (*AlertDispatcher, error) {
	log := logger.WithField("component", "telegram")
	if token == "" {
		log.Info("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil, nil
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	alerts := NewAlertDispatcher(b, DefaultAlertCooldown)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/rate", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		snap, err := svc.LatestSnapshot(ctx)
		if err != nil {
			return c.Send(fmt.Sprintf("Error reading rate: %v", err))
		}
		return c.Send(formatSnapshot(snap))
	})

	b.Handle("/signals", func(c tele.Context) error {
		filter, err := parseSignalArgs(c.Args())
		if err != nil {
			return c.Send("Usage: /signals | /signals EURUSD | /signals EURUSD --dir up")
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		signals, err := svc.ListSignals(ctx, filter)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching signals: %v", err))
		}
		if len(signals) == 0 {
			return c.Send("No signals recorded yet.")
		}
		return c.Send(formatSignalList(signals))
	})

	b.Handle("/chart", func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		photo, reply := renderChart(ctx, svc, c.Args())
		if photo == nil {
			return c.Send(reply)
		}
		return c.Send(photo)
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}
		return c.Send(alertReply(alerts, chat.ID, c.Args()))
	})

	log.Info("telegram bot started")
	go b.Start()
	return alerts, nil
}

// renderChart returns either a photo or the text reply explaining why there
// is none.
func renderChart(ctx context.Context, svc TriangleQuerier, args []string) (*tele.Photo, string) {
	limit := defaultChartSamples
	if len(args) > 0 {
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil || n < 2 || n > maxChartSamples {
			return nil, fmt.Sprintf("Usage: /chart [samples 2-%d]", maxChartSamples)
		}
		limit = n
	}
	png, err := svc.RateChart(ctx, limit)
	switch {
	case errors.Is(err, chart.ErrTooFewSamples):
		return nil, "Not enough rate samples yet."
	case err != nil:
		return nil, fmt.Sprintf("Error rendering chart: %v", err)
	}
	return &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(png)),
		Caption: fmt.Sprintf("Cross rate, last %d samples", limit),
	}, ""
}

func alertReply(alerts *AlertDispatcher, chatID int64, args []string) string {
	mode, bps, err := parseAlertMode(args)
	if err != nil {
		return "Usage: /alerts on [min-bps] | /alerts off | /alerts status"
	}

	switch mode {
	case "on":
		floor := "every detection"
		if bps > 0 {
			floor = fmt.Sprintf("deviations of %.1f bps or more", bps)
		}
		if alerts.Subscribe(chatID, bps) {
			return "Mispricing alerts enabled for " + floor + "."
		}
		return "Mispricing alerts updated to " + floor + "."
	case "off":
		if alerts.Unsubscribe(chatID) {
			return "Mispricing alerts disabled for this chat."
		}
		return "Mispricing alerts are already disabled for this chat."
	default:
		sub, ok := alerts.Subscription(chatID)
		if !ok {
			return fmt.Sprintf("Alerts status: OFF (%d chats subscribed)", alerts.SubscriberCount())
		}
		return fmt.Sprintf("Alerts status: ON, min %.1f bps (%d chats subscribed)", sub.MinDeviationBps, alerts.SubscriberCount())
	}
}

func parseSignalArgs(args []string) (domain.SignalFilter, error) {
	filter := domain.SignalFilter{Limit: 9}

	for i := 0; i < len(args); i++ {
		arg := strings.TrimSpace(args[i])
		if arg == "" {
			continue
		}

		if arg == "--dir" || arg == "--limit" {
			if i+1 >= len(args) {
				return domain.SignalFilter{}, fmt.Errorf("missing value for %s", arg)
			}
			i++
			if err := applyOption(&filter, arg, args[i]); err != nil {
				return domain.SignalFilter{}, err
			}
			continue
		}
		if name, value, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(name, "--") {
			if err := applyOption(&filter, name, value); err != nil {
				return domain.SignalFilter{}, err
			}
			continue
		}

		if strings.HasPrefix(arg, "--") {
			return domain.SignalFilter{}, errors.New("unknown option")
		}
		if filter.InstrumentID != "" {
			return domain.SignalFilter{}, errors.New("multiple instruments provided")
		}
		filter.InstrumentID = strings.ToUpper(arg)
	}

	return filter, nil
}

func applyOption(filter *domain.SignalFilter, name, value string) error {
	switch name {
	case "--dir":
		dir := domain.Direction(strings.ToLower(strings.TrimSpace(value)))
		if !dir.IsValid() {
			return errors.New("direction must be up or down")
		}
		filter.Direction = dir
	case "--limit":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n <= 0 || n > 30 {
			return errors.New("limit must be between 1 and 30")
		}
		filter.Limit = n
	default:
		return errors.New("unknown option")
	}
	return nil
}

func formatSnapshot(snap domain.TriangleSnapshot) string {
	tri := snap.Triangle
	lines := []string{tri.String()}
	for _, leg := range tri.Legs() {
		if bid, ok := snap.Bids[leg]; ok {
			lines = append(lines, fmt.Sprintf("%s bid %.6f", leg, bid))
		} else {
			lines = append(lines, fmt.Sprintf("%s bid n/a", leg))
		}
	}
	if !snap.Complete() {
		lines = append(lines, "Rate: waiting for all legs")
		return strings.Join(lines, "\n")
	}
	lines = append(lines,
		fmt.Sprintf("Rate: %.6f (%s, threshold %.5f)", snap.Rate, snap.Regime, snap.Threshold),
		fmt.Sprintf("Updated %s", snap.UpdatedAt.UTC().Format(time.RFC822)),
	)
	return strings.Join(lines, "\n")
}

func formatSignalList(signals []domain.ArbitrageSignal) string {
	lines := make([]string, 0, len(signals)+1)
	lines = append(lines, "Latest signals:")
	for _, s := range signals {
		lines = append(lines, fmt.Sprintf("#%d %s rate %.6f at %s",
			s.ID, formatLeg(s), s.Rate, s.DetectedAt.UTC().Format(time.RFC822)))
	}
	return strings.Join(lines, "\n")
}

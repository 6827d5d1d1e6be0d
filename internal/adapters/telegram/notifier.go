package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/sentiment-fusion/internal/adapters/config"
	"github.com/selivandex/sentiment-fusion/internal/orchestrator"
	"github.com/selivandex/sentiment-fusion/pkg/logger"
	"github.com/selivandex/sentiment-fusion/pkg/metrics"
	"github.com/selivandex/sentiment-fusion/pkg/templates"
)

const (
	runFinishedTemplate = "run_finished.tmpl"
	queueSize           = 64
)

// Sender delivers a message to Telegram
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier posts a message to a chat whenever an update run ends.
// It implements orchestrator.Reporter; delivery happens on the Run goroutine.
type Notifier struct {
	api      Sender
	chatID   int64
	renderer templates.Renderer
	queue    chan orchestrator.Snapshot
}

// NewNotifier creates new Telegram notifier
func NewNotifier(cfg *config.TelegramConfig, renderer templates.Renderer) (*Notifier, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	bot.Debug = false

	logger.Info("telegram notifier initialized",
		zap.String("bot_username", bot.Self.UserName),
		zap.Int64("chat_id", cfg.ChatID),
	)

	return NewNotifierWithSender(bot, cfg.ChatID, renderer), nil
}

// NewNotifierWithSender creates a notifier over an existing sender
func NewNotifierWithSender(api Sender, chatID int64, renderer templates.Renderer) *Notifier {
	return &Notifier{
		api:      api,
		chatID:   chatID,
		renderer: renderer,
		queue:    make(chan orchestrator.Snapshot, queueSize),
	}
}

// Report queues terminal snapshots. Intermediate snapshots are ignored and a
// full queue drops the message rather than stalling the run.
func (n *Notifier) Report(snap orchestrator.Snapshot) {
	if !snap.Terminal() {
		return
	}

	select {
	case n.queue <- snap:
	default:
		logger.Warn("telegram queue full, dropping run notification",
			zap.String("instrument", snap.Instrument),
			zap.String("run_id", snap.RunID),
		)
	}
}

// Run delivers queued notifications until ctx is cancelled
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-n.queue:
			if err := n.SendRunFinished(snap); err != nil {
				metrics.UpstreamErrors.WithLabelValues("telegram").Inc()
			}
		}
	}
}

// SendRunFinished renders and sends the summary of a finished run
func (n *Notifier) SendRunFinished(snap orchestrator.Snapshot) error {
	data := struct {
		orchestrator.Snapshot
		Duration string
	}{Snapshot: snap, Duration: runDuration(snap).String()}

	text, err := n.renderer.ExecuteTemplate(runFinishedTemplate, data)
	if err != nil {
		return err
	}

	return n.sendMessage(text)
}

func (n *Notifier) sendMessage(text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true

	if _, err := n.api.Send(msg); err != nil {
		logger.Error("failed to send telegram message",
			zap.Int64("chat_id", n.chatID),
			zap.Error(err),
		)
		return err
	}

	return nil
}

func runDuration(snap orchestrator.Snapshot) time.Duration {
	end := snap.UpdatedAt
	if snap.CompletedAt != nil {
		end = *snap.CompletedAt
	}
	if end.Before(snap.StartedAt) {
		return 0
	}
	return end.Sub(snap.StartedAt).Round(time.Second)
}

package telegram

import (
	"context"
	"errors"
	"log/slog"

	json "github.com/goccy/go-json"
	"github.com/mymmrac/telego"

	"botline/pkg/channel"
	"botline/pkg/config"
)

// Source long-polls Telegram and forwards every permitted update as raw JSON.
type Source struct {
	bot         *telego.Bot
	allowFrom   map[string]struct{}
	pollTimeout int
	log         *slog.Logger
}

func NewSource(bot *telego.Bot, cfg config.TelegramConfig, log *slog.Logger) (*Source, error) {
	if bot == nil {
		return nil, errors.New("telegram client is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Source{
		bot:         bot,
		allowFrom:   allowFromSet(cfg.AllowFrom),
		pollTimeout: cfg.PollTimeoutSeconds,
		log:         log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in bus metadata and logs.
func (s *Source) Name() string {
	return channelName
}

// Run starts long polling and hands each update to sink until ctx is done.
func (s *Source) Run(ctx context.Context, sink channel.Sink) error {
	if sink == nil {
		return errors.New("sink is required")
	}

	updates, err := s.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: s.pollTimeout})
	if err != nil {
		return err
	}

	s.log.Info("Telegram long polling started", "timeout", s.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			if !s.permitted(update) {
				s.log.Debug("Ignoring update from unauthorized sender", "update_id", update.UpdateID)
				continue
			}

			payload, err := json.Marshal(update)
			if err != nil {
				s.log.Error("Failed to encode update", "update_id", update.UpdateID, "error", err)
				continue
			}
			if message := update.Message; message != nil {
				s.log.Info("Received message", "chat_id", message.Chat.ID, "content", previewText(message.Text))
			}

			if err := sink(ctx, payload); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("Update not accepted", "update_id", update.UpdateID, "error", err)
			}
		}
	}
}

func (s *Source) permitted(update telego.Update) bool {
	if len(s.allowFrom) == 0 {
		return true
	}

	var from *telego.User
	switch {
	case update.Message != nil:
		from = update.Message.From
	case update.EditedMessage != nil:
		from = update.EditedMessage.From
	case update.CallbackQuery != nil:
		from = &update.CallbackQuery.From
	}
	if from == nil {
		return false
	}

	return senderAllowed(s.allowFrom, from.ID, from.Username)
}

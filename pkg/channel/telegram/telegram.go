// Package telegram connects the bot to the Telegram Bot API through telego.
package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"botline/pkg/config"

	"github.com/mymmrac/telego"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// NewClient builds a telego bot from the Telegram channel config.
func NewClient(cfg config.TelegramConfig, log *slog.Logger) (*telego.Bot, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}
	if log == nil {
		log = slog.Default()
	}

	opts := []telego.BotOption{telego.WithLogger(logAdapter{log: log.With("component", "telego")})}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, telego.WithAPIServer(strings.TrimRight(base, "/")))
	}

	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}
	return bot, nil
}

// logAdapter routes telego's internal logging into slog.
type logAdapter struct {
	log *slog.Logger
}

func (l logAdapter) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l logAdapter) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimPrefix(strings.TrimSpace(value), "@")
		if trimmed == "" {
			continue
		}
		allowed[strings.ToLower(trimmed)] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// senderAllowed checks a sender id or username against the allow list.
// An empty list accepts everyone.
func senderAllowed(allowed map[string]struct{}, id int64, username string) bool {
	if len(allowed) == 0 {
		return true
	}

	if _, ok := allowed[strconv.FormatInt(id, 10)]; ok {
		return true
	}
	if username == "" {
		return false
	}
	_, ok := allowed[strings.ToLower(username)]
	return ok
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"botline/pkg/bot"
	"botline/pkg/dispatch"
	"botline/pkg/store"
)

const welcomeText = "*Hello!* I answer /ping, repeat /echo text and keep a /count per chat."

// registerHandlers installs the built-in commands served by the gateway.
func registerHandlers(b *bot.Bot, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "cmd.handlers")

	b.Command("start", func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		return b.Reply(ev.Message).Markdown(welcomeText).Commit()
	})

	b.Command("ping", func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		return b.Reply(ev.Message).Text("pong").Commit()
	})

	b.Command("echo", func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		text := strings.TrimSpace(ev.Command.Args.String())
		if text == "" {
			text = "usage: /echo <text>"
		}
		return b.Reply(ev.Message).Action(bot.ChatActionTyping).Text(text).Commit()
	})

	b.Command("count", func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		session, ok := store.SessionFromContext(ctx)
		if !ok {
			return b.Reply(ev.Message).Text("no conversation store configured").Commit()
		}

		n, err := session.Increment(ctx, "count")
		if err != nil {
			return fmt.Errorf("increment count: %w", err)
		}
		return b.Reply(ev.Message).Text(fmt.Sprintf("count: %d", n)).Commit()
	})

	b.Callback(func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		return ev.Answer(ctx, dispatch.AnswerOptions{Text: "Got " + ev.Callback.Data})
	})

	b.Use(func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		chatID, _ := ev.ChatID()
		log.Debug("Unhandled update", "update_id", ev.Update.ID, "kind", ev.Update.Kind, "chat_id", chatID)
		return nil
	})
}

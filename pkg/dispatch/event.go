package dispatch

import (
	"context"

	"botline/pkg/model"
)

// Event is the per-dispatch view of one update.
type Event struct {
	Update   *model.Update
	Message  *model.Message
	Callback *model.CallbackQuery
	// Command is set when the message is a command addressed to this bot.
	Command *model.Command

	answerer Answerer
}

// ChatID returns the conversation the event belongs to.
func (e *Event) ChatID() (int64, bool) {
	return e.Update.ChatID()
}

// Text returns the message text, or the callback payload for callback queries.
func (e *Event) Text() string {
	switch {
	case e.Message != nil:
		return e.Message.Text
	case e.Callback != nil:
		return e.Callback.Data
	default:
		return ""
	}
}

// Answer acknowledges the callback query this event carries.
//
// Answer should be called at most once per query; the remote service rejects
// a second acknowledgement and that is left to the caller.
func (e *Event) Answer(ctx context.Context, opts AnswerOptions) error {
	if e.Callback == nil {
		return model.UsageError("answer called on an event without a callback query")
	}
	if e.answerer == nil {
		return model.UsageError("no answerer configured for callback queries")
	}

	return e.answerer.AnswerCallback(ctx, e.Callback, opts)
}

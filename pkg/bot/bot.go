// Package bot wires the update parser, dispatcher and action queue to one
// remote Bot API.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"botline/pkg/bus"
	"botline/pkg/channel"
	"botline/pkg/dispatch"
	"botline/pkg/model"
	"botline/pkg/queue"
	"botline/pkg/store"
)

const defaultCallTimeout = 30 * time.Second

type Options struct {
	// Strict rejects inbound updates with unknown fields or ambiguous content.
	Strict bool
	// Immediate runs every action at once instead of per chat.
	Immediate bool
	// Username is the bot's own handle, used to filter addressed commands.
	Username string
	// Store, when set, backs the session attached to each dispatch.
	Store       store.Store
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// Action is one outbound Bot API call.
type Action struct {
	ID     string
	Method string
	Params channel.Params
}

type Bot struct {
	caller      channel.Caller
	bus         *bus.MessageBus
	parser      model.Parser
	queue       *queue.Queue
	dispatcher  *dispatch.Dispatcher
	store       store.Store
	callTimeout time.Duration
	log         *slog.Logger
}

// New creates a bot sending through caller. Failures without a hook and
// rejected updates are published on mb.
func New(caller channel.Caller, mb *bus.MessageBus, opts Options) (*Bot, error) {
	if caller == nil {
		return nil, errors.New("caller is required")
	}
	if mb == nil {
		return nil, errors.New("message bus is required")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	b := &Bot{
		caller:      caller,
		bus:         mb,
		parser:      model.Parser{Strict: opts.Strict},
		store:       opts.Store,
		callTimeout: timeout,
		log:         log.With("component", "bot"),
	}
	b.queue = queue.New(mb, queue.WithImmediate(opts.Immediate), queue.WithLogger(log))
	b.dispatcher = dispatch.New(
		dispatch.WithUsername(opts.Username),
		dispatch.WithAnswerer(b),
		dispatch.WithLogger(log),
	)

	return b, nil
}

func (b *Bot) Use(handler dispatch.Handler) {
	b.dispatcher.Use(handler)
}

func (b *Bot) Command(name string, handler dispatch.Handler) {
	b.dispatcher.Command(name, handler)
}

func (b *Bot) Callback(handler dispatch.Handler) {
	b.dispatcher.Callback(handler)
}

// Queue exposes the action queue, mainly for inspection.
func (b *Bot) Queue() *queue.Queue {
	return b.queue
}

// Run handles inbound payloads from the bus one at a time until ctx is done
// or the bus closes.
func (b *Bot) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	b.log.Info("Bot loop started")
	defer b.log.Info("Bot loop stopped")

	for {
		in, ok := b.bus.ConsumeInbound(ctx)
		if !ok {
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}

		if err := b.handle(ctx, in.Source, in.Payload); err != nil {
			b.log.Debug("Update not handled", "source", in.Source, "error", err)
		}
	}
}

// HandleUpdate parses and dispatches one raw update payload.
func (b *Bot) HandleUpdate(ctx context.Context, payload []byte) error {
	return b.handle(ctx, "", payload)
}

func (b *Bot) handle(ctx context.Context, source string, payload []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}

	update, err := b.parser.ParseUpdateJSON(payload)
	if err != nil {
		b.log.Warn("Rejected update", "source", source, "category", model.CategoryFromError(err), "error", err)
		b.bus.PublishEvent(ctx, bus.Event{
			Type:    bus.EventUpdateRejected,
			Source:  source,
			Payload: map[string]string{"category": model.CategoryFromError(err)},
			Error:   err.Error(),
		})
		return err
	}

	if b.store != nil {
		if chatID, ok := update.ChatID(); ok {
			ctx = store.WithSession(ctx, store.NewSession(b.store, chatID))
		}
	}

	if err := b.dispatcher.Dispatch(ctx, update); err != nil {
		b.log.Error("Handler failed", "source", source, "update_id", update.ID, "error", err)
		b.bus.PublishEvent(ctx, bus.Event{
			Type:     bus.EventHandlerFailed,
			Source:   source,
			UpdateID: update.ID,
			Error:    err.Error(),
		})
		return err
	}

	return nil
}

// Reply starts a builder whose actions share the conversation queue of chat.
func (b *Bot) Reply(chat any) *Reply {
	r := &Reply{bot: b}
	r.To(chat)
	if r.err == nil {
		r.key = r.chatID
	}
	return r
}

// Detached starts a builder with its own private queue, so its actions do not
// wait behind other traffic for the same chat.
func (b *Bot) Detached(chat any) *Reply {
	r := &Reply{bot: b, key: queue.NewPrivateKey()}
	r.To(chat)
	return r
}

// AnswerCallback acknowledges a callback query on a private queue.
func (b *Bot) AnswerCallback(_ context.Context, query *model.CallbackQuery, opts dispatch.AnswerOptions) error {
	if query == nil || query.ID == "" {
		return model.UsageError("callback query id is required")
	}

	params := channel.Params{"callback_query_id": query.ID}
	if opts.Text != "" {
		params["text"] = opts.Text
	}
	if opts.ShowAlert {
		params["show_alert"] = true
	}
	if opts.URL != "" {
		params["url"] = opts.URL
	}
	if opts.CacheTime > 0 {
		params["cache_time"] = opts.CacheTime
	}

	b.Enqueue(queue.NewPrivateKey(), Action{Method: "answerCallbackQuery", Params: params}, nil)
	return nil
}

// Enqueue schedules action on the queue for key. then, when non-nil, owns the
// outcome and must call next.
func (b *Bot) Enqueue(key any, action Action, then queue.Hook) string {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}

	b.queue.Enqueue(key, queue.Job{
		Name: action.Method,
		Run:  b.task(action),
		Then: then,
	})
	return action.ID
}

func (b *Bot) task(action Action) queue.Task {
	return func(done queue.Done) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), b.callTimeout)
			defer cancel()

			b.log.Debug("Calling method", "action_id", action.ID, "method", action.Method)
			result, err := b.caller.Call(ctx, action.Method, action.Params)
			if err != nil {
				done(nil, fmt.Errorf("%s: %w", action.Method, err))
				return
			}
			done(result, nil)
		}()
	}
}

// ResultMessage parses the message returned by a send method.
func ResultMessage(result any) (*model.Message, error) {
	var data []byte
	switch v := result.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, model.UsageError(fmt.Sprintf("result of type %T is not a message payload", result))
	}

	return model.Parser{}.ParseMessageJSON(data)
}

// Package dispatch routes parsed updates through ordered handler chains.
//
// A handler receives the event and a Next continuation. Calling next resumes
// the chain at the following handler; returning without calling it stops the
// chain for that update. When every handler has called next the dispatch
// simply ends.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"botline/pkg/model"
)

// AnyCommand registers a command handler that matches every command.
const AnyCommand = "*"

// ErrNextCalled is returned when a handler calls its continuation twice.
var ErrNextCalled = errors.New("dispatch: next called more than once")

// Next resumes the chain at the following handler.
type Next func() error

// Handler inspects an event and either handles it or calls next.
type Handler func(ctx context.Context, ev *Event, next Next) error

// AnswerOptions configures a callback query acknowledgement.
type AnswerOptions struct {
	Text      string
	ShowAlert bool
	URL       string
	CacheTime int
}

// Answerer acknowledges a callback query toward the remote service.
type Answerer interface {
	AnswerCallback(ctx context.Context, query *model.CallbackQuery, opts AnswerOptions) error
}

type commandHandle struct {
	name    string
	handler Handler
}

// Dispatcher holds the general, command and callback chains.
type Dispatcher struct {
	answerer Answerer
	username string
	log      *slog.Logger

	mu        sync.RWMutex
	general   []Handler
	commands  []commandHandle
	callbacks []Handler
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithUsername sets the bot's own handle. Commands addressed to a different
// handle skip the command chain.
func WithUsername(username string) Option {
	return func(d *Dispatcher) { d.username = strings.TrimPrefix(strings.TrimSpace(username), "@") }
}

// WithAnswerer sets the capability bound into callback events.
func WithAnswerer(answerer Answerer) Option {
	return func(d *Dispatcher) { d.answerer = answerer }
}

// WithLogger sets the dispatcher logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "dispatch")

	return d
}

// Use appends a handler to the general chain, which sees every update.
func (d *Dispatcher) Use(handler Handler) {
	if handler == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.general = append(d.general, handler)
}

// Command appends a handler for one command name, or AnyCommand.
func (d *Dispatcher) Command(name string, handler Handler) {
	if handler == nil {
		return
	}

	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = append(d.commands, commandHandle{name: name, handler: handler})
}

// Callback appends a handler to the callback query chain.
func (d *Dispatcher) Callback(handler Handler) {
	if handler == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, handler)
}

// Dispatch runs one update through the chains. Commands are offered to
// matching command handlers first, callback queries to callback handlers
// first; both fall through to the general chain.
func (d *Dispatcher) Dispatch(ctx context.Context, update *model.Update) error {
	if update == nil {
		return nil
	}

	ev := d.newEvent(update)
	chain := d.chainFor(ev)
	d.log.Debug("Dispatching update", "update_id", update.ID, "kind", update.Kind, "handlers", len(chain))
	if len(chain) == 0 {
		return nil
	}

	return run(ctx, ev, chain)
}

func (d *Dispatcher) newEvent(update *model.Update) *Event {
	ev := &Event{
		Update:   update,
		Message:  update.Message,
		Callback: update.CallbackQuery,
	}
	if update.CallbackQuery != nil {
		ev.answerer = d.answerer
	}
	if update.Message != nil && update.Message.Command != nil && d.addressedToMe(update.Message.Command) {
		ev.Command = update.Message.Command
	}

	return ev
}

func (d *Dispatcher) addressedToMe(cmd *model.Command) bool {
	return cmd.Username == "" || d.username == "" || strings.EqualFold(cmd.Username, d.username)
}

func (d *Dispatcher) chainFor(ev *Event) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()

	chain := make([]Handler, 0, len(d.general)+len(d.commands)+len(d.callbacks))
	switch {
	case ev.Command != nil:
		for _, h := range d.commands {
			if h.name == AnyCommand || strings.EqualFold(h.name, ev.Command.Name) {
				chain = append(chain, h.handler)
			}
		}
	case ev.Callback != nil:
		chain = append(chain, d.callbacks...)
	}

	return append(chain, d.general...)
}

// run invokes handlers in order. Each handler decides whether the rest run.
func run(ctx context.Context, ev *Event, chain []Handler) error {
	var step func(i int) error
	step = func(i int) error {
		if i >= len(chain) {
			return nil
		}

		called := false
		return chain[i](ctx, ev, func() error {
			if called {
				return ErrNextCalled
			}
			called = true
			return step(i + 1)
		})
	}

	return step(0)
}

package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultBufferSize = 100

// MessageBus carries raw inbound updates from transport sources to the bot
// loop and fans out process-wide events to subscribers.
type MessageBus struct {
	inbound chan Inbound

	eventSubscribers      map[uint64]subscriber
	nextEventSubscriberID uint64

	done      chan struct{}
	closeOnce sync.Once

	log *slog.Logger

	mu sync.RWMutex
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:          make(chan Inbound, defaultBufferSize),
		eventSubscribers: make(map[uint64]subscriber),
		done:             make(chan struct{}),
		log:              slog.Default(),
	}
}

// SetLogger replaces the logger used to report dropped events.
func (mb *MessageBus) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}

	mb.mu.Lock()
	mb.log = logger
	mb.mu.Unlock()
}

func (mb *MessageBus) PublishInbound(ctx context.Context, msg Inbound) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	case mb.inbound <- msg:
		return true
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (Inbound, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return Inbound{}, false
	case <-mb.done:
		return Inbound{}, false
	case msg := <-mb.inbound:
		return msg, true
	}
}

func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)

		mb.mu.Lock()
		for id, sub := range mb.eventSubscribers {
			close(sub.ch)
			delete(mb.eventSubscribers, id)
		}
		mb.mu.Unlock()
	})
}

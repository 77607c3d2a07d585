package bus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type EventType string

const (
	EventActionFailed   EventType = "action_failed"
	EventTransportFault EventType = "transport_fault"
	EventUpdateRejected EventType = "update_rejected"
	EventHandlerFailed  EventType = "handler_failed"
)

type Event struct {
	Type     EventType         `json:"type"`
	At       time.Time         `json:"at"`
	Source   string            `json:"source,omitempty"`
	Key      string            `json:"key,omitempty"`
	Method   string            `json:"method,omitempty"`
	UpdateID int64             `json:"update_id,omitempty"`
	Payload  map[string]string `json:"payload,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// ReportFailure publishes an unhandled action failure. It lets the bus act as
// the queue's error sink.
func (mb *MessageBus) ReportFailure(key any, name string, err error) {
	event := Event{
		Type:   EventActionFailed,
		Key:    fmt.Sprint(key),
		Method: name,
	}
	if err != nil {
		event.Error = err.Error()
	}

	mb.PublishEvent(context.Background(), event)
}

func (mb *MessageBus) PublishEvent(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	mb.mu.RLock()
	targets := make([]chan Event, 0, len(mb.eventSubscribers))
	for _, sub := range mb.eventSubscribers {
		if sub.wants(event.Type) {
			targets = append(targets, sub.ch)
		}
	}
	log := mb.log
	mb.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			// Drop instead of blocking the publisher on slow subscribers.
			log.Warn("Event dropped for slow subscriber",
				"type", event.Type,
				"method", event.Method,
				"key", event.Key,
				"error", event.Error,
			)
		}
	}

	return true
}

// subscriber is one event channel with an optional type filter.
type subscriber struct {
	ch    chan Event
	types map[EventType]struct{}
}

func (s subscriber) wants(eventType EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// SubscribeEvents registers a buffered event stream. With types given, only
// those event types are delivered. The channel closes on unsubscribe, on
// context cancellation or when the bus closes.
func (mb *MessageBus) SubscribeEvents(ctx context.Context, buffer int, types ...EventType) (<-chan Event, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	sub := subscriber{ch: make(chan Event, buffer)}
	if len(types) > 0 {
		sub.types = make(map[EventType]struct{}, len(types))
		for _, eventType := range types {
			sub.types[eventType] = struct{}{}
		}
	}

	mb.mu.Lock()
	select {
	case <-mb.done:
		mb.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	default:
	}

	id := mb.nextEventSubscriberID
	mb.nextEventSubscriberID++
	mb.eventSubscribers[id] = sub
	mb.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			mb.mu.Lock()
			if current, ok := mb.eventSubscribers[id]; ok {
				delete(mb.eventSubscribers, id)
				close(current.ch)
			}
			mb.mu.Unlock()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-mb.done:
		}
		unsubscribe()
	}()

	return sub.ch, unsubscribe
}

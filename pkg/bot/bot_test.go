package bot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"botline/pkg/bus"
	"botline/pkg/channel"
	"botline/pkg/dispatch"
	"botline/pkg/model"
	"botline/pkg/store"
)

type recordedCall struct {
	method string
	params channel.Params
}

type fakeCaller struct {
	mu     sync.Mutex
	calls  []recordedCall
	fail   map[string]error
	result json.RawMessage
	seen   chan recordedCall
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		fail:   map[string]error{},
		result: json.RawMessage(`{"message_id":99,"date":1,"chat":{"id":7,"type":"private","first_name":"Ann"},"text":"ok"}`),
		seen:   make(chan recordedCall, 32),
	}
}

func (f *fakeCaller) Call(_ context.Context, method string, params channel.Params) (json.RawMessage, error) {
	call := recordedCall{method: method, params: params}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	err := f.fail[method]
	f.mu.Unlock()

	f.seen <- call
	if err != nil {
		return nil, err
	}
	return f.result, nil
}

func (f *fakeCaller) waitCall(t *testing.T) recordedCall {
	t.Helper()
	select {
	case call := <-f.seen:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call")
		return recordedCall{}
	}
}

func newTestBot(t *testing.T, opts Options) (*Bot, *fakeCaller, *bus.MessageBus) {
	t.Helper()
	caller := newFakeCaller()
	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	b, err := New(caller, mb, opts)
	require.NoError(t, err)
	return b, caller, mb
}

const textUpdate = `{"update_id":1,"message":{"message_id":5,"date":1700000000,` +
	`"chat":{"id":7,"type":"private","first_name":"Ann"},` +
	`"from":{"id":7,"first_name":"Ann"},"text":"/count"}}`

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, bus.NewMessageBus(), Options{})
	require.Error(t, err)

	_, err = New(newFakeCaller(), nil, Options{})
	require.Error(t, err)
}

func TestReplyActionsRunInOrder(t *testing.T) {
	b, caller, _ := newTestBot(t, Options{})

	err := b.Reply(int64(7)).
		Action(ChatActionTyping).
		Text("one").
		Markdown("*two*").
		Commit()
	require.NoError(t, err)

	require.Equal(t, "sendChatAction", caller.waitCall(t).method)
	second := caller.waitCall(t)
	require.Equal(t, "sendMessage", second.method)
	require.Equal(t, "one", second.params.String("text"))
	require.Equal(t, int64(7), second.params.Int64("chat_id"))
	third := caller.waitCall(t)
	require.Equal(t, "Markdown", third.params.String("parse_mode"))
}

func TestReplyThenReceivesResult(t *testing.T) {
	b, caller, _ := newTestBot(t, Options{})

	got := make(chan *model.Message, 1)
	err := b.Reply("7").
		Text("hello").
		Then(func(result any, err error, next func()) {
			defer next()
			require.NoError(t, err)
			msg, perr := ResultMessage(result)
			require.NoError(t, perr)
			got <- msg
		}).
		Commit()
	require.NoError(t, err)

	caller.waitCall(t)
	select {
	case msg := <-got:
		require.Equal(t, int64(99), msg.ID)
		require.Equal(t, "ok", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("hook did not run")
	}
}

func TestReplyErrorsEnqueueNothing(t *testing.T) {
	b, caller, _ := newTestBot(t, Options{})

	err := b.Reply(int64(7)).Text("first").Photo(struct{}{}, "").Commit()
	require.Equal(t, model.ErrorResolution, model.CategoryFromError(err))

	err = b.Reply(int64(7)).Content(&model.Message{ID: 1}).Commit()
	require.Equal(t, model.ErrorUsage, model.CategoryFromError(err))

	err = b.Reply(int64(7)).Then(func(any, error, func()) {}).Commit()
	require.Equal(t, model.ErrorUsage, model.CategoryFromError(err))

	long := make([]rune, model.MaxCaptionLength+1)
	for i := range long {
		long[i] = 'x'
	}
	err = b.Reply(int64(7)).Photo("file-id", string(long)).Commit()
	require.Equal(t, model.ErrorUsage, model.CategoryFromError(err))

	err = b.Reply(struct{}{}).Text("nowhere").Commit()
	require.Equal(t, model.ErrorResolution, model.CategoryFromError(err))

	require.Zero(t, b.Queue().Len())
	caller.mu.Lock()
	defer caller.mu.Unlock()
	require.Empty(t, caller.calls)
}

func TestReplyCommitTwice(t *testing.T) {
	b, caller, _ := newTestBot(t, Options{})

	r := b.Reply(int64(7)).Text("once")
	require.NoError(t, r.Commit())
	require.Equal(t, model.ErrorUsage, model.CategoryFromError(r.Commit()))
	caller.waitCall(t)
}

func TestReplyContentAndFiles(t *testing.T) {
	b, _, _ := newTestBot(t, Options{})

	photo := &model.Photo{Best: model.Image{File: model.File{ID: "big"}}}
	r := b.Reply(int64(7)).
		Content("hi").
		Content(photo).
		Content(&model.Location{Latitude: 1.5, Longitude: 2.5}).
		Document("https://example.com/a.pdf", "cap").
		Forward(&model.Message{ID: 3, Chat: model.Chat{ID: 11}}).
		To(int64(8)).
		Delete(int64(4))

	actions := r.Actions()
	require.Len(t, actions, 6)
	require.Equal(t, "sendMessage", actions[0].Method)

	file, ok := actions[1].Params.File("photo")
	require.True(t, ok)
	require.Equal(t, "big", file.ID)

	require.Equal(t, 2.5, actions[2].Params.Float("longitude"))

	doc, ok := actions[3].Params.File("document")
	require.True(t, ok)
	require.Equal(t, "https://example.com/a.pdf", doc.URL)

	require.Equal(t, int64(11), actions[4].Params.Int64("from_chat_id"))
	require.Equal(t, int64(8), actions[5].Params.Int64("chat_id"))
}

func TestUnhandledFailurePublishesEvent(t *testing.T) {
	b, caller, mb := newTestBot(t, Options{})
	caller.fail["sendMessage"] = errors.New("forbidden")

	events, cancel := mb.SubscribeEvents(context.Background(), 4, bus.EventActionFailed)
	defer cancel()

	require.NoError(t, b.Reply(int64(7)).Text("x").Commit())

	select {
	case ev := <-events:
		require.Equal(t, "sendMessage", ev.Method)
		require.Equal(t, "7", ev.Key)
		require.Contains(t, ev.Error, "forbidden")
	case <-time.After(2 * time.Second):
		t.Fatal("expected action_failed event")
	}
}

func TestHandleUpdateDispatchesWithSession(t *testing.T) {
	mem := store.NewMemory()
	b, caller, _ := newTestBot(t, Options{Store: mem})

	b.Command("count", func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		session, ok := store.SessionFromContext(ctx)
		require.True(t, ok)
		n, err := session.Increment(ctx, "count")
		if err != nil {
			return err
		}
		return b.Reply(ev.Message).Text(ev.Command.Name).Then(func(_ any, _ error, next func()) {
			require.Equal(t, int64(1), n)
			next()
		}).Commit()
	})

	require.NoError(t, b.HandleUpdate(context.Background(), []byte(textUpdate)))
	call := caller.waitCall(t)
	require.Equal(t, "count", call.params.String("text"))

	value, ok, err := mem.Get(context.Background(), 7, "count")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)
}

func TestHandleUpdateRejectsAndReportsHandlerErrors(t *testing.T) {
	b, _, mb := newTestBot(t, Options{Strict: true})
	events, cancel := mb.SubscribeEvents(context.Background(), 4)
	defer cancel()

	err := b.HandleUpdate(context.Background(), []byte(`{"update_id":1,"message":{"message_id":1}}`))
	require.True(t, model.IsValidation(err))
	ev := <-events
	require.Equal(t, bus.EventUpdateRejected, ev.Type)
	require.NotEmpty(t, ev.Payload["category"])

	boom := errors.New("boom")
	b.Use(func(context.Context, *dispatch.Event, dispatch.Next) error { return boom })
	err = b.HandleUpdate(context.Background(), []byte(textUpdate))
	require.ErrorIs(t, err, boom)
	ev = <-events
	require.Equal(t, bus.EventHandlerFailed, ev.Type)
	require.Equal(t, int64(1), ev.UpdateID)
}

func TestCallbackAnswerIsEnqueued(t *testing.T) {
	b, caller, _ := newTestBot(t, Options{})

	b.Callback(func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		return ev.Answer(ctx, dispatch.AnswerOptions{Text: "noted", ShowAlert: true})
	})

	payload := `{"update_id":2,"callback_query":{"id":"cb1","chat_instance":"ci","data":"vote",` +
		`"from":{"id":7,"first_name":"Ann"},` +
		`"message":{"message_id":5,"date":1,"chat":{"id":7,"type":"private","first_name":"Ann"},"text":"pick"}}}`
	require.NoError(t, b.HandleUpdate(context.Background(), []byte(payload)))

	call := caller.waitCall(t)
	require.Equal(t, "answerCallbackQuery", call.method)
	require.Equal(t, "cb1", call.params.String("callback_query_id"))
	require.True(t, call.params.Bool("show_alert"))
}

func TestRunConsumesBus(t *testing.T) {
	b, caller, mb := newTestBot(t, Options{})
	b.Use(func(ctx context.Context, ev *dispatch.Event, next dispatch.Next) error {
		return b.Detached(ev.Message).Text("seen").Commit()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.True(t, mb.PublishInbound(ctx, bus.Inbound{Source: "test", Payload: []byte(textUpdate)}))
	require.Equal(t, "seen", caller.waitCall(t).params.String("text"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestResultMessageRejectsOtherTypes(t *testing.T) {
	_, err := ResultMessage(42)
	require.Equal(t, model.ErrorUsage, model.CategoryFromError(err))

	_, err = ResultMessage(json.RawMessage(`true`))
	require.Equal(t, model.ErrorShape, model.CategoryFromError(err))
}

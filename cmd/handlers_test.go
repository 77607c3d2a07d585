package cmd

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"botline/pkg/bot"
	"botline/pkg/bus"
	"botline/pkg/channel"
	"botline/pkg/store"
)

type call struct {
	method string
	params channel.Params
}

type recordingCaller struct {
	calls chan call
}

func (r *recordingCaller) Call(_ context.Context, method string, params channel.Params) (json.RawMessage, error) {
	r.calls <- call{method: method, params: params}
	return json.RawMessage(`true`), nil
}

func (r *recordingCaller) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-r.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call")
		return call{}
	}
}

func newHandlerBot(t *testing.T, conversations store.Store) (*bot.Bot, *recordingCaller) {
	t.Helper()
	caller := &recordingCaller{calls: make(chan call, 16)}
	mb := bus.NewMessageBus()
	t.Cleanup(mb.Close)

	b, err := bot.New(caller, mb, bot.Options{Username: "linebot", Store: conversations})
	require.NoError(t, err)
	registerHandlers(b, nil)
	return b, caller
}

func textUpdate(id int, text string) []byte {
	payload := map[string]any{
		"update_id": id,
		"message": map[string]any{
			"message_id": id,
			"date":       1700000000,
			"chat":       map[string]any{"id": 7, "type": "private", "first_name": "Ann"},
			"from":       map[string]any{"id": 7, "first_name": "Ann"},
			"text":       text,
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func TestPingAndEcho(t *testing.T) {
	b, caller := newHandlerBot(t, nil)
	ctx := context.Background()

	require.NoError(t, b.HandleUpdate(ctx, textUpdate(1, "/ping")))
	c := caller.next(t)
	require.Equal(t, "sendMessage", c.method)
	require.Equal(t, "pong", c.params.String("text"))

	require.NoError(t, b.HandleUpdate(ctx, textUpdate(2, "/echo@linebot  hello there")))
	require.Equal(t, "sendChatAction", caller.next(t).method)
	require.Equal(t, "hello there", caller.next(t).params.String("text"))
}

func TestCommandForOtherBotFallsThrough(t *testing.T) {
	b, caller := newHandlerBot(t, nil)

	require.NoError(t, b.HandleUpdate(context.Background(), textUpdate(1, "/ping@otherbot")))
	select {
	case c := <-caller.calls:
		t.Fatalf("unexpected call %s", c.method)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCountUsesSession(t *testing.T) {
	b, caller := newHandlerBot(t, store.NewMemory())
	ctx := context.Background()

	require.NoError(t, b.HandleUpdate(ctx, textUpdate(1, "/count")))
	require.Equal(t, "count: 1", caller.next(t).params.String("text"))
	require.NoError(t, b.HandleUpdate(ctx, textUpdate(2, "/COUNT")))
	require.Equal(t, "count: 2", caller.next(t).params.String("text"))
}

func TestCallbackIsAnswered(t *testing.T) {
	b, caller := newHandlerBot(t, nil)

	payload := `{"update_id":3,"callback_query":{"id":"q1","chat_instance":"c","data":"yes",` +
		`"from":{"id":7,"first_name":"Ann"},"inline_message_id":"im1"}}`
	require.NoError(t, b.HandleUpdate(context.Background(), []byte(payload)))

	c := caller.next(t)
	require.Equal(t, "answerCallbackQuery", c.method)
	require.Equal(t, "Got yes", c.params.String("text"))
}

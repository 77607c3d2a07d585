package botapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"botline/pkg/channel"
	"botline/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.TelegramConfig{Token: "T0KEN", BaseURL: server.URL + "/"}, nil)
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(config.TelegramConfig{}, nil)
	require.Error(t, err)
}

func TestCallPostsJSONAndReturnsResult(t *testing.T) {
	var gotPath, gotType, gotBody, gotRequestID string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-ID")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":3}}`)
	})

	result, err := client.Call(context.Background(), "sendPhoto", channel.Params{
		"chat_id": int64(9),
		"photo":   channel.InputFile{ID: "abc"},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"message_id":3}`, string(result))
	require.Equal(t, "/botT0KEN/sendPhoto", gotPath)
	require.Contains(t, gotType, "application/json")
	require.Contains(t, gotBody, `"photo":"abc"`)
	require.NotEmpty(t, gotRequestID)
}

func TestCallMapsAPIErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after":5}}`)
	})

	_, err := client.Call(context.Background(), "sendMessage", channel.Params{"chat_id": int64(1), "text": "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, 429, apiErr.Code)
	require.Equal(t, 5, apiErr.RetryAfter)
	require.Equal(t, "sendMessage", apiErr.Method)
	require.Contains(t, apiErr.Error(), "retry after 5s")
}

func TestCallRejectsNonJSONResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := client.Call(context.Background(), "getMe", nil)
	require.ErrorContains(t, err, "decode getMe response")
}

func TestCallUploadsLocalFilesAsMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	var gotCaption, gotChat, gotFile string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotCaption = r.FormValue("caption")
		gotChat = r.FormValue("chat_id")
		file, _, err := r.FormFile("document")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		gotFile = string(data)
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	})

	result, err := client.Call(context.Background(), "sendDocument", channel.Params{
		"chat_id":  int64(77),
		"caption":  "notes",
		"document": channel.InputFile{Path: path},
	})
	require.NoError(t, err)
	require.Equal(t, "true", string(result))
	require.Equal(t, "notes", gotCaption)
	require.Equal(t, "77", gotChat)
	require.Equal(t, "hello", gotFile)
}

func TestPollerForwardsUpdatesAndAdvancesOffset(t *testing.T) {
	var mu sync.Mutex
	var offsets []string
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls++
		n := calls
		offsets = append(offsets, string(body))
		mu.Unlock()

		if n == 1 {
			_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":10,"message":{}},{"update_id":11}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":[]}`)
	})

	poller, err := NewPoller(client, 0)
	require.NoError(t, err)
	require.Equal(t, "telegram.http", poller.Name())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- poller.Run(ctx, func(_ context.Context, payload []byte) error {
			received <- string(payload)
			return nil
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case payload := <-received:
			require.True(t, strings.Contains(payload, "update_id"))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for update")
		}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(offsets) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, offsets[1], `"offset":12`)
}

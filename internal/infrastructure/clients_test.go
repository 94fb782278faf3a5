package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona_relay/internal/entities"
)

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	text := strings.Repeat("ж", 25)
	chunks := splitMessage(text, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, 10, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 5, utf8.RuneCountInString(chunks[2]))
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestBuildReplyKeyboard(t *testing.T) {
	kb := buildReplyKeyboard([][]entities.Button{
		{{Text: "🔑 Set API Key", WebAppURL: "https://relay.example.com/index.html"}, {Text: "plain"}},
	})

	raw, err := json.Marshal(kb)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"keyboard": [[
			{"text": "🔑 Set API Key", "web_app": {"url": "https://relay.example.com/index.html"}},
			{"text": "plain"}
		]],
		"resize_keyboard": true
	}`, string(raw))
}

type botAPIRecorder struct {
	mu    sync.Mutex
	calls map[string][]map[string]string
}

func newBotAPIServer(t *testing.T) (*httptest.Server, *botAPIRecorder) {
	t.Helper()
	rec := &botAPIRecorder{calls: make(map[string][]map[string]string)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		fields := map[string]string{}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			_ = r.ParseMultipartForm(1 << 20)
		} else {
			_ = r.ParseForm()
		}
		for k, v := range r.Form {
			fields[k] = v[0]
		}
		rec.mu.Lock()
		rec.calls[method] = append(rec.calls[method], fields)
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "getMe":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Relay","username":"relaybot"}}`))
		case "setWebhook":
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"}}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func (r *botAPIRecorder) get(method string) []map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func TestTelegramClient(t *testing.T) {
	srv, rec := newBotAPIServer(t)

	client, err := NewTelegramClientWithEndpoint("123:abc", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "relaybot", client.Username())

	ctx := context.Background()
	require.NoError(t, client.SendMessage(ctx, 5, strings.Repeat("a", telegramMaxMessageLength+1)))
	sent := rec.get("sendMessage")
	require.Len(t, sent, 2)
	assert.Equal(t, "5", sent[0]["chat_id"])
	assert.Equal(t, "a", sent[1]["text"])

	require.NoError(t, client.SendMessageWithKeyboard(ctx, 5, "set key", [][]entities.Button{
		{{Text: "🔑 Set API Key", WebAppURL: "https://relay.example.com/index.html"}},
	}))
	sent = rec.get("sendMessage")
	require.Len(t, sent, 3)
	assert.Contains(t, sent[2]["reply_markup"], `"web_app":{"url":"https://relay.example.com/index.html"}`)

	require.NoError(t, client.SendPhoto(ctx, 5, "https://relay.example.com/index.html", []byte("\x89PNG")))
	photos := rec.get("sendPhoto")
	require.Len(t, photos, 1)
	assert.Equal(t, "https://relay.example.com/index.html", photos[0]["caption"])

	require.NoError(t, client.RegisterWebhook("https://relay.example.com/webhook"))
	hooks := rec.get("setWebhook")
	require.Len(t, hooks, 1)
	assert.Equal(t, "https://relay.example.com/webhook", hooks[0]["url"])
}

func TestTelegramClient_CancelledContext(t *testing.T) {
	srv, rec := newBotAPIServer(t)
	client, err := NewTelegramClientWithEndpoint("123:abc", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, client.SendMessage(ctx, 5, "hi"))
	assert.Empty(t, rec.get("sendMessage"))
}

func TestTelegramClient_StalledBotAPIIsBounded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42,"is_bot":true,"first_name":"Relay","username":"relaybot"}}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewTelegramClientWithEndpoint("123:abc", srv.URL+"/bot%s/%s", newBotHTTPClient(100*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	err = client.SendMessage(context.WithoutCancel(context.Background()), 5, "hi")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTelegramClient_DefaultTimeout(t *testing.T) {
	srv, _ := newBotAPIServer(t)

	client, err := NewTelegramClientWithEndpoint("123:abc", srv.URL+"/bot%s/%s", nil)
	require.NoError(t, err)
	hc, ok := client.Bot.Client.(*http.Client)
	require.True(t, ok)
	assert.Equal(t, DefaultTelegramTimeout, hc.Timeout)

	assert.Equal(t, DefaultTelegramTimeout, newBotHTTPClient(0).Timeout)
	assert.Equal(t, 3*time.Second, newBotHTTPClient(3*time.Second).Timeout)
}

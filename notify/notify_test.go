package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-automation/config"
	"checkin-automation/logger"
)

type recorder struct {
	titles []string
	bodies []string
}

func (r *recorder) Send(_ context.Context, title, body string) {
	r.titles = append(r.titles, title)
	r.bodies = append(r.bodies, body)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}

	NewMulti(a, b).Send(context.Background(), "title", "body")

	assert.Equal(t, []string{"title"}, a.titles)
	assert.Equal(t, []string{"body"}, b.bodies)
}

func TestConsolePrintsBox(t *testing.T) {
	pterm.DisableColor()
	defer pterm.EnableColor()

	var buf bytes.Buffer
	NewConsole(&buf).Send(context.Background(), "司机社签到 - 2026-10-19", "✔️ 登录成功")

	assert.Contains(t, buf.String(), "司机社签到 - 2026-10-19")
	assert.Contains(t, buf.String(), "✔️ 登录成功")
}

func TestPushPlusSend(t *testing.T) {
	var got pushPlusRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"code":200,"msg":"请求成功"}`))
	}))
	defer srv.Close()

	p := NewPushPlus("pp-token", logger.Discard())
	p.endpoint = srv.URL
	p.Send(context.Background(), "title", "line1\nline2")

	assert.Equal(t, "pp-token", got.Token)
	assert.Equal(t, "title", got.Title)
	assert.Equal(t, "line1<br>line2", got.Content)
}

func TestPushPlusFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewPushPlus("pp-token", logger.Discard())
	p.endpoint = srv.URL

	assert.NotPanics(t, func() { p.Send(context.Background(), "title", "body") })
}

func TestTelegramSend(t *testing.T) {
	var path, chatID, text string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, r.ParseForm())
		chatID = r.PostForm.Get("chat_id")
		text = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegram("123:abc", "42", logger.Discard())
	tg.apiBase = srv.URL
	tg.Send(context.Background(), "title", "body")

	assert.Equal(t, "/bot123:abc/sendMessage", path)
	assert.Equal(t, "42", chatID)
	assert.Equal(t, "title\n\nbody", text)
}

func TestFromConfig(t *testing.T) {
	m := FromConfig(config.NotifyConfig{}, logger.Discard())
	assert.Equal(t, 1, m.Len())

	m = FromConfig(config.NotifyConfig{
		Console:          true,
		PushPlusToken:    "pp",
		TelegramBotToken: "tg",
		TelegramUserID:   "1",
	}, logger.Discard())
	assert.Equal(t, 4, m.Len())

	m = FromConfig(config.NotifyConfig{TelegramBotToken: "tg"}, logger.Discard())
	require.Equal(t, 1, m.Len())
}

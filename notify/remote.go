package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"
)

const (
	pushPlusEndpoint = "https://www.pushplus.plus/send"
	telegramAPI      = "https://api.telegram.org"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// PushPlus sends reports through the pushplus.plus relay
type PushPlus struct {
	token    string
	endpoint string
	client   *http.Client
	logger   *logrus.Logger
}

type pushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type pushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func NewPushPlus(token string, logger *logrus.Logger) *PushPlus {
	return &PushPlus{token: token, endpoint: pushPlusEndpoint, client: httpClient, logger: logger}
}

func (p *PushPlus) Send(ctx context.Context, title, body string) {
	payload, err := json.Marshal(pushPlusRequest{
		Token:    p.token,
		Title:    title,
		Content:  strings.ReplaceAll(body, "\n", "<br>"),
		Template: "html",
	})
	if err != nil {
		p.logger.WithError(err).Error("Failed to encode PushPlus request")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		p.logger.WithError(err).Error("Failed to create PushPlus request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := do(p.client, req)
	if err != nil {
		p.logger.WithError(err).Error("PushPlus delivery failed")
		return
	}

	var resp pushPlusResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Code != 200 {
		p.logger.WithFields(logrus.Fields{
			"code": resp.Code,
			"msg":  resp.Msg,
		}).Error("PushPlus rejected notification")
		return
	}
	p.logger.Info("PushPlus notification sent")
}

// Telegram sends reports through a bot to a single chat
type Telegram struct {
	token   string
	chatID  string
	apiBase string
	client  *http.Client
	logger  *logrus.Logger
}

type telegramMessage struct {
	ChatID string `url:"chat_id"`
	Text   string `url:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func NewTelegram(token, chatID string, logger *logrus.Logger) *Telegram {
	return &Telegram{token: token, chatID: chatID, apiBase: telegramAPI, client: httpClient, logger: logger}
}

func (t *Telegram) Send(ctx context.Context, title, body string) {
	form, err := query.Values(telegramMessage{
		ChatID: t.chatID,
		Text:   title + "\n\n" + body,
	})
	if err != nil {
		t.logger.WithError(err).Error("Failed to encode Telegram message")
		return
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		t.logger.WithError(err).Error("Failed to create Telegram request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := do(t.client, req)
	if err != nil {
		t.logger.WithError(err).Error("Telegram delivery failed")
		return
	}

	var resp telegramResponse
	if err := json.Unmarshal(raw, &resp); err != nil || !resp.OK {
		t.logger.WithField("description", resp.Description).Error("Telegram rejected notification")
		return
	}
	t.logger.Info("Telegram notification sent")
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return raw, nil
}

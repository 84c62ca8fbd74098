package notify

import (
	"context"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/sirupsen/logrus"

	"checkin-automation/config"
)

// Notifier delivers a run report. Delivery is best effort; failures are
// logged by the implementation and never reach the caller.
type Notifier interface {
	Send(ctx context.Context, title, body string)
}

// Console prints the report in a box
type Console struct {
	out io.Writer
}

// NewConsole writes to out, or stdout when out is nil
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

func (c *Console) Send(_ context.Context, title, body string) {
	pterm.DefaultBox.
		WithTitle(title).
		WithTitleTopCenter().
		WithWriter(c.out).
		Println(body)
}

// Log writes the report to the structured log
type Log struct {
	logger *logrus.Logger
}

func NewLog(logger *logrus.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Send(_ context.Context, title, body string) {
	l.logger.WithFields(logrus.Fields{
		"title": title,
		"body":  body,
	}).Info("Notification")
}

// Multi fans a report out to every channel
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Send(ctx context.Context, title, body string) {
	for _, n := range m.notifiers {
		n.Send(ctx, title, body)
	}
}

// Len is the number of channels
func (m *Multi) Len() int {
	return len(m.notifiers)
}

// FromConfig builds the channel set. The log channel is always present.
func FromConfig(cfg config.NotifyConfig, logger *logrus.Logger) *Multi {
	notifiers := []Notifier{NewLog(logger)}

	if cfg.Console {
		notifiers = append(notifiers, NewConsole(nil))
	}
	if cfg.PushPlusToken != "" {
		notifiers = append(notifiers, NewPushPlus(cfg.PushPlusToken, logger))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramUserID != "" {
		notifiers = append(notifiers, NewTelegram(cfg.TelegramBotToken, cfg.TelegramUserID, logger))
	}

	logger.WithField("channels", len(notifiers)).Debug("Notification channels configured")
	return NewMulti(notifiers...)
}

package bridge

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"checkin-automation/browser"
)

// Bridge copies an HTTP session's cookies into a browser page so the page is
// logged in as the same user.
type Bridge struct {
	settle time.Duration
	logger *logrus.Logger
}

// New creates a bridge that waits settle after opening the origin
func New(settle time.Duration, logger *logrus.Logger) *Bridge {
	return &Bridge{settle: settle, logger: logger}
}

// Apply opens origin, drops whatever cookies the browser holds and installs
// cookies scoped to the origin host with path "/". It must run before the
// page visits any page that needs the session.
func (b *Bridge) Apply(ctx context.Context, page browser.Page, origin string, cookies map[string]string) error {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("invalid origin %q", origin)
	}

	// Copied up front; the caller's map is never retained.
	bundle := make([]browser.Cookie, 0, len(cookies))
	for name, value := range cookies {
		bundle = append(bundle, browser.Cookie{
			Name:   name,
			Value:  value,
			Domain: u.Hostname(),
			Path:   "/",
		})
	}

	if err := page.Navigate(origin); err != nil {
		return fmt.Errorf("failed to open origin: %w", err)
	}

	if err := sleep(ctx, b.settle); err != nil {
		return err
	}

	if err := page.ClearCookies(); err != nil {
		return fmt.Errorf("failed to clear browser cookies: %w", err)
	}
	if err := page.SetCookies(bundle); err != nil {
		return fmt.Errorf("failed to install cookies: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"domain":  u.Hostname(),
		"cookies": len(bundle),
	}).Info("Session cookies installed in browser")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

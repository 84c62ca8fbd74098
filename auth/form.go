package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"checkin-automation/browser"
)

const (
	refererSelector  = "[name=referer]"
	formHashSelector = "[name=formhash]"
	secCodeSelector  = "span[id^='seccode_']"
	secCodeIDPrefix  = "seccode_"
)

// LoginForm holds the dynamic tokens rendered into the login page together
// with the cookies the browser collected while rendering it.
type LoginForm struct {
	Referer     string
	FormHash    string
	SecCodeHash string
	Cookies     map[string]string
}

// FormFetcher renders the login page and reads its dynamic tokens
type FormFetcher interface {
	Fetch(ctx context.Context) (*LoginForm, error)
}

// BrowserFormFetcher renders the login flow in a short-lived browser, since
// the tokens only exist after the site's scripts have run.
type BrowserFormFetcher struct {
	launcher browser.Launcher
	baseURL  string
	wait     time.Duration
	logger   *logrus.Logger
}

// NewBrowserFormFetcher creates a fetcher that waits up to wait for each token
func NewBrowserFormFetcher(launcher browser.Launcher, baseURL string, wait time.Duration, logger *logrus.Logger) *BrowserFormFetcher {
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &BrowserFormFetcher{
		launcher: launcher,
		baseURL:  strings.TrimRight(baseURL, "/"),
		wait:     wait,
		logger:   logger,
	}
}

// Fetch launches a browser, reads the tokens and closes it again
func (f *BrowserFormFetcher) Fetch(ctx context.Context) (*LoginForm, error) {
	var form *LoginForm
	err := browser.With(ctx, f.launcher, func(page browser.Page) error {
		var err error
		form, err = f.FetchFromPage(page)
		return err
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

// FetchFromPage reads the tokens using an already open page
func (f *BrowserFormFetcher) FetchFromPage(page browser.Page) (*LoginForm, error) {
	spaceURL := f.baseURL + "/home.php?mod=space"
	if err := page.Navigate(spaceURL); err != nil {
		return nil, fmt.Errorf("failed to open space page: %w", err)
	}
	if err := page.WaitElement(refererSelector, f.wait); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoReferer, err)
	}
	referer, err := page.Attribute(refererSelector, "value")
	if err != nil || referer == "" {
		return nil, ErrNoReferer
	}

	if err := page.Navigate(referer); err != nil {
		return nil, fmt.Errorf("failed to open login page: %w", err)
	}

	if err := page.WaitElement(formHashSelector, f.wait); err != nil {
		return nil, fmt.Errorf("%w: formhash: %v", ErrMissingToken, err)
	}
	formHash, err := page.Attribute(formHashSelector, "value")
	if err != nil {
		return nil, fmt.Errorf("%w: formhash: %v", ErrMissingToken, err)
	}

	if err := page.WaitElement(secCodeSelector, f.wait); err != nil {
		return nil, fmt.Errorf("%w: seccode: %v", ErrMissingToken, err)
	}
	secCodeID, err := page.Attribute(secCodeSelector, "id")
	if err != nil {
		return nil, fmt.Errorf("%w: seccode: %v", ErrMissingToken, err)
	}

	cookies, err := page.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read login page cookies: %w", err)
	}

	form := &LoginForm{
		Referer:     referer,
		FormHash:    formHash,
		SecCodeHash: strings.TrimPrefix(secCodeID, secCodeIDPrefix),
		Cookies:     cookies,
	}

	f.logger.WithFields(logrus.Fields{
		"formhash":    form.FormHash,
		"seccodehash": form.SecCodeHash,
		"cookies":     len(cookies),
	}).Info("Fetched login form tokens")

	return form, nil
}

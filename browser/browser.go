package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/sirupsen/logrus"

	"checkin-automation/stealth"
)

// Launcher starts a browser process
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Browser hands out pages and must be closed by whoever launched it
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Options controls how Chromium is started
type Options struct {
	Headless       bool
	ExecutablePath string
	NoSandbox      bool
	Stealth        stealth.StealthConfig
}

// RodLauncher launches a local Chromium through go-rod
type RodLauncher struct {
	opts   Options
	logger *logrus.Logger
}

// NewRodLauncher creates a launcher
func NewRodLauncher(opts Options, logger *logrus.Logger) *RodLauncher {
	return &RodLauncher{opts: opts, logger: logger}
}

// Launch starts the browser and connects to it
func (l *RodLauncher) Launch(ctx context.Context) (Browser, error) {
	l.logger.WithField("headless", l.opts.Headless).Info("Launching browser")

	bin := l.opts.ExecutablePath
	if bin == "" {
		if path, found := launcher.LookPath(); found {
			bin = path
		}
	}

	ln := launcher.New().
		Context(ctx).
		Leakless(false).
		Headless(l.opts.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("no-default-browser-check")
	if bin != "" {
		ln = ln.Bin(bin)
	}
	if l.opts.NoSandbox {
		ln = ln.Set("no-sandbox")
	}

	url, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(url)
	if err := b.Connect(); err != nil {
		ln.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	l.logger.Info("Browser initialized successfully")
	return &rodBrowser{
		browser:  b,
		launcher: ln,
		stealth:  stealth.NewStealthManager(l.opts.Stealth, l.logger),
		logger:   l.logger,
	}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	stealth  *stealth.StealthManager
	logger   *logrus.Logger
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.stealth.NewPage(b.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return &rodPage{page: page.Context(ctx), logger: b.logger}, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.logger.Debug("Browser closed")
	return err
}

// With launches a browser, opens one page, runs fn and always tears the
// browser down afterwards, including when fn panics.
func With(ctx context.Context, l Launcher, fn func(Page) error) (err error) {
	b, err := l.Launch(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("browser session panicked: %v", r)
		}
		if closeErr := b.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close browser: %w", closeErr)
		}
	}()

	page, err := b.NewPage(ctx)
	if err != nil {
		return err
	}

	return fn(page)
}

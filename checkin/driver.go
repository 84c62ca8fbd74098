package checkin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"checkin-automation/browser"
)

const (
	TriggerSelector = "#JD_sign"

	beforeScreenshot = "before_sign.png"
	afterScreenshot  = "after_sign.png"
	errorScreenshot  = "error_screenshot.png"
)

// Options configures the driver
type Options struct {
	BaseURL       string
	SignPath      string
	ScreenshotDir string
	// TriggerWait bounds the wait for the check-in button
	TriggerWait time.Duration
	// Settle is the pause after clicking and after reloading
	Settle time.Duration
}

// Outcome is what a check-in attempt produced. Err is informational only.
type Outcome struct {
	Status      Status
	Screenshots []string
	Err         error
}

// Driver performs the check-in on an authenticated page
type Driver struct {
	opts       Options
	classifier *Classifier
	logger     *logrus.Logger
}

// NewDriver creates a driver; a nil classifier means DefaultClassifier
func NewDriver(opts Options, classifier *Classifier, logger *logrus.Logger) *Driver {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if opts.TriggerWait <= 0 {
		opts.TriggerWait = 15 * time.Second
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "."
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Driver{opts: opts, classifier: classifier, logger: logger}
}

// SignURL is the page carrying the check-in button
func (d *Driver) SignURL() string {
	return d.opts.BaseURL + d.opts.SignPath
}

// Run checks in once. It never returns an error; anything that goes wrong
// ends as StatusFailed with an error screenshot.
func (d *Driver) Run(ctx context.Context, page browser.Page) Outcome {
	out := Outcome{Status: StatusFailed}

	status, err := d.run(ctx, page, &out)
	if err != nil {
		d.logger.WithError(err).Error("Check-in failed")
		out.Err = err
		d.screenshot(page, errorScreenshot, &out)
		return out
	}

	out.Status = status
	d.logger.WithFields(logrus.Fields{
		"status":      status.String(),
		"screenshots": len(out.Screenshots),
	}).Info("Check-in finished")
	return out
}

func (d *Driver) run(ctx context.Context, page browser.Page, out *Outcome) (Status, error) {
	d.logger.WithField("url", d.SignURL()).Info("Opening check-in page")
	if err := page.Navigate(d.SignURL()); err != nil {
		return StatusFailed, err
	}
	if err := page.WaitElement(TriggerSelector, d.opts.TriggerWait); err != nil {
		return StatusFailed, fmt.Errorf("failed to find check-in button: %w", err)
	}

	state, err := d.read(page)
	if err != nil {
		return StatusFailed, err
	}
	if state == StateAlreadySigned {
		d.logger.Info("Already checked in today")
		return StatusAlreadyDone, nil
	}

	d.screenshot(page, beforeScreenshot, out)
	if err := page.Click(TriggerSelector); err != nil {
		return StatusFailed, fmt.Errorf("failed to click check-in button: %w", err)
	}
	d.logger.Info("Clicked check-in button")

	if err := sleep(ctx, d.opts.Settle); err != nil {
		return StatusFailed, err
	}
	d.screenshot(page, afterScreenshot, out)

	state, err = d.read(page)
	if err != nil {
		return StatusFailed, err
	}
	if state != StateActionable {
		return state.Status(), nil
	}

	d.logger.Warn("No confirmation after click, reloading to re-check")
	if err := page.Reload(); err != nil {
		return StatusFailed, fmt.Errorf("failed to reload check-in page: %w", err)
	}
	if err := sleep(ctx, d.opts.Settle); err != nil {
		return StatusFailed, err
	}

	state, err = d.read(page)
	if err != nil {
		return StatusFailed, err
	}
	if state == StateAlreadySigned {
		return StatusAlreadyDone, nil
	}
	return StatusFailed, nil
}

func (d *Driver) read(page browser.Page) (PageState, error) {
	html, err := page.HTML()
	if err != nil {
		return StateActionable, fmt.Errorf("failed to read page source: %w", err)
	}
	state := d.classifier.Classify(html)
	d.logger.WithField("state", state.String()).Debug("Classified check-in page")
	return state, nil
}

// screenshot is diagnostic only; failures are logged and skipped
func (d *Driver) screenshot(page browser.Page, name string, out *Outcome) {
	path := filepath.Join(d.opts.ScreenshotDir, name)
	if err := page.Screenshot(path); err != nil {
		d.logger.WithError(err).WithField("path", path).Warn("Failed to save screenshot")
		return
	}
	out.Screenshots = append(out.Screenshots, path)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package runner

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"checkin-automation/auth"
	"checkin-automation/browser"
	"checkin-automation/checkin"
	"checkin-automation/notify"
	"checkin-automation/profile"
)

// Authenticator logs in over HTTP and hands out the resulting cookies
type Authenticator interface {
	Login(ctx context.Context) *auth.LoginResult
	Cookies() map[string]string
	Origin() string
}

// CookieBridge installs cookies into a browser page
type CookieBridge interface {
	Apply(ctx context.Context, page browser.Page, origin string, cookies map[string]string) error
}

// CheckInDriver performs the check-in on a logged in page
type CheckInDriver interface {
	Run(ctx context.Context, page browser.Page) checkin.Outcome
}

// InfoExtractor reads the account summary after the check-in
type InfoExtractor interface {
	Extract(ctx context.Context, page browser.Page) (*profile.Info, error)
}

// Runner sequences one scheduled run and sends exactly one notification
type Runner struct {
	auth      Authenticator
	launcher  browser.Launcher
	bridge    CookieBridge
	driver    CheckInDriver
	extractor InfoExtractor
	notifier  notify.Notifier
	logger    *logrus.Logger
	now       func() time.Time
}

// New creates a runner
func New(a Authenticator, launcher browser.Launcher, bridge CookieBridge, driver CheckInDriver, extractor InfoExtractor, notifier notify.Notifier, logger *logrus.Logger) *Runner {
	return &Runner{
		auth:      a,
		launcher:  launcher,
		bridge:    bridge,
		driver:    driver,
		extractor: extractor,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Result is what a run produced
type Result struct {
	LoggedIn bool
	Status   checkin.Status
	Info     *profile.Info
	Report   *Report
}

// Run logs in, checks in, reads the account summary and notifies
func (r *Runner) Run(ctx context.Context) *Result {
	report := NewReport("司机社签到 - " + r.now().Format("2006-01-02"))
	result := &Result{Status: checkin.StatusFailed, Report: report}

	login := r.auth.Login(ctx)
	if !login.Success {
		report.Add(LineLoginFailed)
		if login.Transient {
			report.Add(LineLoginTransient)
		}
		r.logger.WithField("reason", login.ErrorMessage).Error("Login failed, stopping")
		r.notify(ctx, report)
		return result
	}

	result.LoggedIn = true
	report.Add(LineLoginOK)
	r.logger.Info("Login successful, starting browser for check-in")

	checkedIn := false
	err := browser.With(ctx, r.launcher, func(page browser.Page) error {
		if err := r.bridge.Apply(ctx, page, r.auth.Origin(), r.auth.Cookies()); err != nil {
			return err
		}

		outcome := r.driver.Run(ctx, page)
		result.Status = outcome.Status
		checkedIn = true
		if outcome.Status.Succeeded() {
			report.Add(LineCheckInOK)
		} else {
			report.Add(LineCheckInFailed)
		}

		info, err := r.extractor.Extract(ctx, page)
		if err != nil {
			report.Add(LineInfoMissing)
			return nil
		}
		if info.State != checkin.StateActionable {
			result.Status = info.State.Status()
		}
		result.Info = info
		report.Add(FormatInfo(info, result.Status))
		return nil
	})
	if err != nil {
		r.logger.WithError(err).Error("Browser session failed")
		if !checkedIn {
			report.Add(LineCheckInFailed)
		}
		if result.Info == nil {
			report.Add(LineInfoMissing)
		}
	}

	r.logger.WithField("status", result.Status.String()).Info("Run finished")
	r.notify(ctx, report)
	return result
}

func (r *Runner) notify(ctx context.Context, report *Report) {
	// A cancelled run context must not swallow the report.
	r.notifier.Send(context.WithoutCancel(ctx), report.Title, report.Body())
}

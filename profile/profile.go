package profile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"checkin-automation/browser"
	"checkin-automation/checkin"
)

const (
	// Unknown fills any field that could not be read
	Unknown = "未知"
	// UnknownName is used when no name strategy finds anything
	UnknownName = "未知用户"

	profileScreenshot = "profile_page.png"
	errorScreenshot   = "error_screenshot.png"
)

// ErrSignStats means the check-in page did not carry its counters
var ErrSignStats = errors.New("check-in statistics not found")

// SignStats are the counters the check-in plugin renders as hidden inputs
type SignStats struct {
	Rank       string
	Level      string
	StreakDays string
	TotalDays  string
	Reward     string
}

// Stats are the account credit counters from the profile page
type Stats struct {
	Points       string
	Prestige     string
	Tickets      string
	Contribution string
}

// Info is everything read after the check-in
type Info struct {
	Name  string
	Sign  SignStats
	Stats Stats
	// State is the check-in page re-classified while reading the counters
	State checkin.PageState
}

// Options configures the extractor
type Options struct {
	BaseURL       string
	SignPath      string
	ScreenshotDir string
	Wait          time.Duration
}

// Extractor reads the post check-in counters and the profile summary
type Extractor struct {
	opts       Options
	classifier *checkin.Classifier
	names      []NameStrategy
	logger     *logrus.Logger
}

// NewExtractor creates an extractor; a nil classifier means the default one
func NewExtractor(opts Options, classifier *checkin.Classifier, logger *logrus.Logger) *Extractor {
	if classifier == nil {
		classifier = checkin.DefaultClassifier()
	}
	if opts.Wait <= 0 {
		opts.Wait = 20 * time.Second
	}
	if opts.ScreenshotDir == "" {
		opts.ScreenshotDir = "."
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Extractor{
		opts:       opts,
		classifier: classifier,
		names:      DefaultNameStrategies(),
		logger:     logger,
	}
}

// Extract reads the check-in counters and then the profile page. Missing
// counters fail the call; missing profile fields fall back to sentinels.
func (e *Extractor) Extract(ctx context.Context, page browser.Page) (*Info, error) {
	info, err := e.extract(ctx, page)
	if err != nil {
		e.logger.WithError(err).Error("Failed to read account information")
		if shotErr := page.Screenshot(filepath.Join(e.opts.ScreenshotDir, errorScreenshot)); shotErr != nil {
			e.logger.WithError(shotErr).Debug("Failed to save error screenshot")
		}
		return nil, err
	}
	return info, nil
}

func (e *Extractor) extract(ctx context.Context, page browser.Page) (*Info, error) {
	signURL := e.opts.BaseURL + e.opts.SignPath
	e.logger.WithField("url", signURL).Info("Reading check-in counters")

	if err := page.Navigate(signURL); err != nil {
		return nil, err
	}
	if err := page.WaitElement("#qiandaobtnnum", e.opts.Wait); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignStats, err)
	}

	signHTML, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read check-in page: %w", err)
	}
	sign, err := ParseSignStats(signHTML)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Sign:  *sign,
		State: e.classifier.Classify(signHTML),
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profileURL := e.opts.BaseURL + "/home.php?mod=space"
	e.logger.WithField("url", profileURL).Info("Reading profile page")
	if err := page.Navigate(profileURL); err != nil {
		return nil, err
	}
	if err := page.WaitElement("#ct", e.opts.Wait); err != nil {
		return nil, fmt.Errorf("failed to load profile page: %w", err)
	}
	if err := page.Screenshot(filepath.Join(e.opts.ScreenshotDir, profileScreenshot)); err != nil {
		e.logger.WithError(err).Warn("Failed to save profile screenshot")
	}

	profileHTML, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read profile page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(profileHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile page: %w", err)
	}

	info.Name = FindName(doc, e.names)
	if info.Name == UnknownName {
		e.logger.Warn("Could not find the account name")
	}
	info.Stats = ParseStats(doc)

	e.logger.WithFields(logrus.Fields{
		"rank":  info.Sign.Rank,
		"level": info.Sign.Level,
		"state": info.State.String(),
	}).Info("Account information collected")

	return info, nil
}

// ParseSignStats reads the hidden counter inputs of the check-in page
func ParseSignStats(html string) (*SignStats, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse check-in page: %w", err)
	}

	read := func(id string) (string, error) {
		value, ok := doc.Find("#" + id).First().Attr("value")
		if !ok {
			return "", fmt.Errorf("%w: #%s", ErrSignStats, id)
		}
		return strings.TrimSpace(value), nil
	}

	var stats SignStats
	fields := []struct {
		id  string
		dst *string
	}{
		{"qiandaobtnnum", &stats.Rank},
		{"lxdays", &stats.StreakDays},
		{"lxtdays", &stats.TotalDays},
		{"lxlevel", &stats.Level},
		{"lxreward", &stats.Reward},
	}
	for _, f := range fields {
		v, err := read(f.id)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	return &stats, nil
}

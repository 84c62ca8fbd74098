package stealth

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	rodstealth "github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"
)

// StealthManager opens pages that look less like an automated browser
type StealthManager struct {
	config StealthConfig
	logger *logrus.Logger
	rng    *rand.Rand
}

// StealthConfig contains stealth configuration
type StealthConfig struct {
	Enabled        bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	// ViewportJitter widens or narrows the viewport by up to this many pixels
	ViewportJitter int
}

// NewStealthManager creates a new stealth manager
func NewStealthManager(config StealthConfig, logger *logrus.Logger) *StealthManager {
	return &StealthManager{
		config: config,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewPage opens a page on b. With stealth enabled the page is created
// through go-rod/stealth and gets the fingerprint overrides applied.
func (s *StealthManager) NewPage(b *rod.Browser) (*rod.Page, error) {
	if !s.config.Enabled {
		page, err := b.Page(proto.TargetCreateTarget{})
		if err != nil {
			return nil, err
		}
		return page, nil
	}

	page, err := rodstealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	if err := s.ApplyStealth(page); err != nil {
		return nil, err
	}
	return page, nil
}

// ApplyStealth applies the fingerprint overrides. Individual failures are
// logged and skipped.
func (s *StealthManager) ApplyStealth(page *rod.Page) error {
	s.logger.Debug("Applying stealth techniques")

	var stealthErrors []string

	if err := s.applyFingerprintMasking(page); err != nil {
		s.logger.WithError(err).Warn("Failed to apply fingerprint masking")
		stealthErrors = append(stealthErrors, "fingerprint masking")
	}

	if err := s.disableAutomationIndicators(page); err != nil {
		s.logger.WithError(err).Warn("Failed to disable automation indicators")
		stealthErrors = append(stealthErrors, "automation indicators")
	}

	if err := s.setViewport(page); err != nil {
		s.logger.WithError(err).Warn("Failed to set viewport")
		stealthErrors = append(stealthErrors, "viewport")
	}

	if len(stealthErrors) > 0 {
		s.logger.WithField("failed_features", stealthErrors).Warn("Proceeding without some stealth features")
	}
	return nil
}

// Viewport returns the window size to emulate, jittered when configured
func (s *StealthManager) Viewport() (int, int) {
	width, height := s.config.ViewportWidth, s.config.ViewportHeight
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if j := s.config.ViewportJitter; j > 0 {
		width += s.rng.Intn(2*j+1) - j
		height += s.rng.Intn(2*j+1) - j
	}
	return width, height
}

func (s *StealthManager) applyFingerprintMasking(page *rod.Page) error {
	if s.config.UserAgent == "" {
		return nil
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.config.UserAgent,
		AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8",
	}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}
	s.logger.WithField("user_agent", s.config.UserAgent).Debug("Set user agent")
	return nil
}

func (s *StealthManager) disableAutomationIndicators(page *rod.Page) error {
	script := `
		Object.defineProperty(navigator, 'webdriver', {
			get: () => undefined,
		});
		Object.defineProperty(navigator, 'languages', {
			get: () => ['zh-CN', 'zh', 'en'],
		});
		window.chrome = window.chrome || { runtime: {} };
	`

	if _, err := page.EvalOnNewDocument(script); err != nil {
		return fmt.Errorf("failed to disable automation indicators: %w", err)
	}

	s.logger.Debug("Disabled automation indicators")
	return nil
}

func (s *StealthManager) setViewport(page *rod.Page) error {
	width, height := s.Viewport()
	if width == 0 {
		return nil
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"width":  width,
		"height": height,
	}).Debug("Set viewport")

	return nil
}

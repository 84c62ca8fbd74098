package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Policy is a fixed-delay bounded retry. It has no backoff and no memory
// across calls.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep is swapped out by tests; nil means a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration)

	logger *logrus.Logger
}

// Attempt is the outcome of a single try. Accepted ends the loop.
type Attempt struct {
	Accepted bool
	Reason   string
}

// DefaultPolicy matches the captcha loop: five tries, one second apart.
func DefaultPolicy(logger *logrus.Logger) *Policy {
	return &Policy{
		MaxAttempts: 5,
		Delay:       time.Second,
		logger:      logger,
	}
}

// NewPolicy creates a policy with explicit limits
func NewPolicy(maxAttempts int, delay time.Duration, logger *logrus.Logger) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
		logger:      logger,
	}
}

// Run calls fn until it reports Accepted or the attempts are used up. It
// returns the number of attempts made and whether one was accepted. The
// delay is applied after every rejected attempt except the last.
func (p *Policy) Run(ctx context.Context, fn func(attempt int) Attempt) (int, bool) {
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return attempt - 1, false
		}

		result := fn(attempt)
		if result.Accepted {
			return attempt, true
		}

		if p.logger != nil {
			p.logger.WithFields(logrus.Fields{
				"attempt":      attempt,
				"max_attempts": p.MaxAttempts,
				"reason":       result.Reason,
			}).Debug("Attempt rejected")
		}

		if attempt < p.MaxAttempts {
			p.sleep(ctx, p.Delay)
		}
	}

	return p.MaxAttempts, false
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if p.Sleep != nil {
		p.Sleep(ctx, d)
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func noSleep(p *Policy) *Policy {
	p.Sleep = func(context.Context, time.Duration) {}
	return p
}

func TestRunStopsOnFirstAccepted(t *testing.T) {
	p := noSleep(DefaultPolicy(nil))
	calls := 0

	attempts, ok := p.Run(context.Background(), func(attempt int) Attempt {
		calls++
		return Attempt{Accepted: attempt == 3}
	})

	assert.True(t, ok)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRunIsBoundedAndDoesNotPanic(t *testing.T) {
	p := noSleep(DefaultPolicy(nil))
	calls := 0

	attempts, ok := p.Run(context.Background(), func(int) Attempt {
		calls++
		return Attempt{Reason: "never"}
	})

	assert.False(t, ok)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, calls)
}

func TestRunSleepsBetweenRejectedAttemptsOnly(t *testing.T) {
	var slept []time.Duration
	p := NewPolicy(3, 250*time.Millisecond, nil)
	p.Sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	p.Run(context.Background(), func(int) Attempt { return Attempt{} })

	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, slept)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	attempts, ok := noSleep(DefaultPolicy(nil)).Run(ctx, func(int) Attempt {
		calls++
		return Attempt{}
	})

	assert.False(t, ok)
	assert.Zero(t, attempts)
	assert.Zero(t, calls)
}

func TestNewPolicyClampsAttempts(t *testing.T) {
	assert.Equal(t, 1, NewPolicy(0, 0, nil).MaxAttempts)
}

// Package retry runs an operation with exponential backoff. It is used for
// start-up connections, never for user-facing API calls, which are single attempt.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"
)

// Config defines retry behavior with exponential backoff
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0; spreads concurrent retries apart
}

// DefaultConfig returns 5 retries starting at 200ms, capped at 5s, doubling each time, with 10% jitter.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:   5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// applyJitter returns delay +/- (delay * jitterFactor * random(-1 to +1)).
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn until it succeeds or retries are exhausted.
// Returns the last error, or ctx.Err() if the context ends while waiting.
func Do(ctx context.Context, cfg *Config, fn func() error) error {
	return run(ctx, cfg, fn, func(error) bool { return true })
}

// DoIfRetryable is Do for operations whose permanent failures (bad password,
// unknown database) should be returned immediately. See IsRetryable.
func DoIfRetryable(ctx context.Context, cfg *Config, fn func() error) error {
	return run(ctx, cfg, fn, IsRetryable)
}

func run(ctx context.Context, cfg *Config, fn func() error, retryable func(error) bool) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries || !retryable(err) {
			return err
		}

		timer := time.NewTimer(applyJitter(delay, cfg.JitterFactor))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// IsRetryable reports whether err looks like a transient connection problem.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"timed out",
		"network is unreachable",
		"loading", // redis is still loading its dataset
		"too many connections",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

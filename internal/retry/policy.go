package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"vcard-wallet-go/internal/models"

	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffExponential BackoffKind = "exponential"
)

// Policy describes how a transient failure is retried. MaxAttempts counts the
// first call, so MaxAttempts=1 disables retries.
type Policy struct {
	MaxAttempts int
	Backoff     BackoffKind
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// DefaultPolicy makes three attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     BackoffConstant,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// FromConfig builds a validated policy from raw configuration.
func FromConfig(cfg models.RetryConfig) (Policy, error) {
	p := Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     BackoffKind(cfg.Backoff),
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Jitter:      cfg.Jitter,
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive, got %d", p.MaxAttempts)
	}
	if p.Backoff != BackoffConstant && p.Backoff != BackoffExponential {
		return fmt.Errorf("unknown retry backoff %q", p.Backoff)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive, got %v", p.BaseDelay)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("retry max delay %v is below base delay %v", p.MaxDelay, p.BaseDelay)
	}
	if p.Jitter < 0 {
		return fmt.Errorf("retry jitter cannot be negative, got %v", p.Jitter)
	}
	return nil
}

func (p Policy) backoff() goretry.Backoff {
	var b goretry.Backoff
	if p.Backoff == BackoffExponential {
		b = goretry.NewExponential(p.BaseDelay)
	} else {
		b = goretry.NewConstant(p.BaseDelay)
	}
	if p.Jitter > 0 {
		b = goretry.WithJitter(p.Jitter, b)
	}
	b = goretry.WithCappedDuration(p.MaxDelay, b)
	return goretry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Do runs fn until it succeeds, returns a non-transient error, or the policy
// is exhausted. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	if err := p.Validate(); err != nil {
		return err
	}

	attempt := 0
	return goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return err
		}
		zap.L().Warn("Transient failure, will retry",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Error(err))
		return goretry.RetryableError(err)
	})
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as safe to retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying: explicitly marked
// errors, errors reporting Transient() true, and network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}

	var classified interface{ Transient() bool }
	if errors.As(err, &classified) {
		return classified.Transient()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

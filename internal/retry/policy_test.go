package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"vcard-wallet-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		Backoff:     BackoffConstant,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestDo_RetriesTransientUntilExhausted(t *testing.T) {
	calls := 0
	cause := errors.New("connection reset")

	err := Do(context.Background(), fastPolicy(3), "session", func(context.Context) error {
		calls++
		return Transient(cause)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	cause := errors.New("invalid credentials")

	err := Do(context.Background(), fastPolicy(5), "signin", func(context.Context) error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0

	err := Do(context.Background(), fastPolicy(3), "profile", func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("timeout"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_SingleAttemptDisablesRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(1), "once", func(context.Context) error {
		calls++
		return Transient(errors.New("boom"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "status" }
func (e statusErr) Transient() bool { return e.code >= 500 || e.code == 429 }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"marked", Transient(errors.New("x")), true},
		{"server error", statusErr{503}, true},
		{"rate limited", statusErr{429}, true},
		{"client error", statusErr{400}, false},
		{"cancelled", Transient(context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestFromConfig_Validation(t *testing.T) {
	_, err := FromConfig(models.RetryConfig{MaxAttempts: 0, Backoff: "constant", BaseDelay: time.Second, MaxDelay: time.Second})
	assert.Error(t, err)

	_, err = FromConfig(models.RetryConfig{MaxAttempts: 3, Backoff: "linear", BaseDelay: time.Second, MaxDelay: time.Second})
	assert.Error(t, err)

	p, err := FromConfig(models.RetryConfig{MaxAttempts: 4, Backoff: "exponential", BaseDelay: time.Millisecond, MaxDelay: time.Second, Jitter: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, BackoffExponential, p.Backoff)
	assert.Equal(t, 4, p.MaxAttempts)
}

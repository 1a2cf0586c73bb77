package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bayanihan/pkg/cache"
)

const (
	otpCooldownBase    = time.Minute
	otpCooldownRaised  = 3 * time.Minute
	otpCooldownRaiseAt = 3
)

// limitDecision is the outcome of an OTP send attempt check.
type limitDecision struct {
	Allowed     bool
	WaitSeconds int
	WaitMinutes int
	Attempt     int
}

// otpLimiter throttles OTP issuance per email. The cooldown between sends
// starts at one minute and rises to three once an address has asked three or
// more times inside the 24h window.
type otpLimiter struct {
	cache cache.Store
	now   func() time.Time
}

func otpAttemptsKey(email string) string { return "otp_attempts_" + email }
func otpLastSentKey(email string) string { return "otp_last_sent_" + email }

// Check decides whether a new code may be sent to the email and, when it may,
// records the attempt. The first request for an address is always allowed.
func (l *otpLimiter) Check(ctx context.Context, email string) (limitDecision, error) {
	now := l.now().UTC()

	attempts, err := l.readAttempts(ctx, email)
	if err != nil {
		return limitDecision{}, err
	}

	lastSent, found, err := l.readLastSent(ctx, email)
	if err != nil {
		return limitDecision{}, err
	}
	if found {
		cooldown := otpCooldownBase
		if attempts >= otpCooldownRaiseAt {
			cooldown = otpCooldownRaised
		}
		if wait := cooldown - now.Sub(lastSent); wait > 0 {
			seconds := int(wait.Seconds())
			if wait > time.Duration(seconds)*time.Second {
				seconds++
			}
			return limitDecision{
				WaitSeconds: seconds,
				WaitMinutes: (seconds + 59) / 60,
				Attempt:     attempts,
			}, nil
		}
	}

	attempts++
	if err := l.cache.Put(ctx, otpAttemptsKey(email), strconv.Itoa(attempts), otpRateWindow); err != nil {
		return limitDecision{}, err
	}
	if err := l.cache.Put(ctx, otpLastSentKey(email), now.Format(time.RFC3339Nano), otpRateWindow); err != nil {
		return limitDecision{}, err
	}
	return limitDecision{Allowed: true, Attempt: attempts}, nil
}

// Reset clears the attempt history, called once registration completes.
func (l *otpLimiter) Reset(ctx context.Context, email string) error {
	return l.cache.Forget(ctx, otpAttemptsKey(email), otpLastSentKey(email))
}

func (l *otpLimiter) readAttempts(ctx context.Context, email string) (int, error) {
	raw, err := l.cache.Get(ctx, otpAttemptsKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	attempts, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return attempts, nil
}

func (l *otpLimiter) readLastSent(ctx context.Context, email string) (time.Time, bool, error) {
	raw, err := l.cache.Get(ctx, otpLastSentKey(email))
	if errors.Is(err, cache.ErrMiss) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

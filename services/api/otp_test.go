package api

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLedger(t *testing.T) (*otpLedger, *memOTPStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	store := &memOTPStore{}
	ledger := &otpLedger{store: store, cache: testCache(t), now: clock.Now}
	return ledger, store, clock
}

func TestOTPIssueAndVerify(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	code, err := ledger.Issue(ctx, "a@example.com", "Ana", "hashed-password")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code %q is not 6 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q contains non-digit %q", code, r)
		}
	}

	pending, err := ledger.Verify(ctx, "a@example.com", code)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if pending.Name != "Ana" || pending.Password != "hashed-password" {
		t.Fatalf("pending = %+v, want cached registration payload", pending)
	}
}

func TestOTPVerifyWrongCode(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.Issue(ctx, "a@example.com", "Ana", "hash"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ledger.Verify(ctx, "a@example.com", "000000"); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("err = %v, want ErrOTPNotFound", err)
	}
}

func TestOTPVerifyExpired(t *testing.T) {
	ledger, store, clock := newTestLedger(t)
	ctx := context.Background()

	code, err := ledger.Issue(ctx, "a@example.com", "Ana", "hash")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.Advance(6 * time.Minute)
	if _, err := ledger.Verify(ctx, "a@example.com", code); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("err = %v, want ErrOTPExpired", err)
	}
	if store.count("a@example.com") != 0 {
		t.Fatal("expired code should be deleted on verification")
	}
}

func TestOTPVerifyMissingRegistrationData(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	code, err := ledger.Issue(ctx, "a@example.com", "Ana", "hash")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := ledger.cache.Forget(ctx, otpDataKey("a@example.com")); err != nil {
		t.Fatalf("forget: %v", err)
	}

	if _, err := ledger.Verify(ctx, "a@example.com", code); !errors.Is(err, ErrRegistrationDataMissing) {
		t.Fatalf("err = %v, want ErrRegistrationDataMissing", err)
	}
}

func TestOTPReissueReplacesCode(t *testing.T) {
	ledger, store, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := ledger.Issue(ctx, "a@example.com", "Ana", "hash")
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := ledger.Issue(ctx, "a@example.com", "Ana", "hash")
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if store.count("a@example.com") != 1 {
		t.Fatalf("live codes = %d, want 1", store.count("a@example.com"))
	}
	if first != second {
		if _, err := ledger.Verify(ctx, "a@example.com", first); !errors.Is(err, ErrOTPNotFound) {
			t.Fatalf("old code err = %v, want ErrOTPNotFound", err)
		}
	}
	if _, err := ledger.Verify(ctx, "a@example.com", second); err != nil {
		t.Fatalf("new code should verify: %v", err)
	}
}

func TestOTPVerifyConsumesCode(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	code, err := ledger.Issue(ctx, "a@example.com", "Ana", "hash")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := ledger.Verify(ctx, "a@example.com", code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if _, err := ledger.Verify(ctx, "a@example.com", code); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("second verify err = %v, want ErrOTPNotFound", err)
	}
}

package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayGrowsAndCaps(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 10, BaseDelay: 100 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 500 * time.Millisecond},
		{9, 500 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d): got %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDoStopsOnSuccess(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) bool { return true })

	if err != nil {
		t.Fatalf("Do: unexpected error %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestDoReturnsDefinitiveErrorImmediately(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	definitive := errors.New("definitive")
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return definitive
	}, func(error) bool { return false })

	if !errors.Is(err, definitive) {
		t.Fatalf("Do: got %v, want %v", err, definitive)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (definitive errors are never retried)", calls)
	}
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	transient := errors.New("transient")
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return transient
	}, func(error) bool { return true })

	if !errors.Is(err, transient) {
		t.Fatalf("Do: got %v, want %v", err, transient)
	}
	if calls != 4 {
		t.Errorf("calls: got %d, want 4", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	t.Parallel()
	p := Policy{MaxAttempts: 100, BaseDelay: time.Hour, MaxDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		return errors.New("transient")
	}, func(error) bool { return true })

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do: got %v, want context.Canceled", err)
	}
}

package resilience

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func newStringGroup(maxFailures int) *FallbackGroup[string] {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: maxFailures, ResetTimeout: time.Hour},
	})
	fg.AddFallback("secondary", "secondary")
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := newStringGroup(3)

	var called []string
	err := fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(called, []string{"primary"}) {
		t.Fatalf("called = %v, want [primary]", called)
	}
}

func TestFallbackGroup_Failover(t *testing.T) {
	fg := newStringGroup(3)

	got, err := ExecuteWithResult(context.Background(), fg, func(v string) (string, error) {
		if v == "primary" {
			return "", errTest
		}
		return "served by " + v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "served by secondary" {
		t.Fatalf("got = %q", got)
	}
}

func TestFallbackGroup_AllFailWrapsCause(t *testing.T) {
	fg := newStringGroup(3)

	err := fg.Execute(context.Background(), func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want last cause wrapped", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	fg := newStringGroup(1)

	// Trip the primary.
	_ = fg.Execute(context.Background(), func(v string) error {
		if v == "primary" {
			return errTest
		}
		return nil
	})
	if fg.States()["primary"] != StateOpen {
		t.Fatalf("primary state = %v, want open", fg.States()["primary"])
	}

	var called []string
	_ = fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if !slices.Equal(called, []string{"secondary"}) {
		t.Fatalf("called = %v, want only secondary", called)
	}
}

func TestFallbackGroup_StopsOnCancelledContext(t *testing.T) {
	fg := newStringGroup(3)
	ctx, cancel := context.WithCancel(context.Background())

	var called []string
	err := fg.Execute(ctx, func(v string) error {
		called = append(called, v)
		cancel()
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !slices.Equal(called, []string{"primary"}) {
		t.Fatalf("called = %v, want no failover after cancellation", called)
	}
	if fg.States()["primary"] != StateClosed {
		t.Error("cancellation tripped the breaker")
	}
}

func TestFallbackGroup_OnErrorAndNames(t *testing.T) {
	var failed []string
	fg := NewFallbackGroup("a", "a", FallbackConfig{
		OnError: func(name string, _ error) { failed = append(failed, name) },
	})
	fg.AddFallback("b", "b")
	fg.AddFallback("c", "c")

	_ = fg.Execute(context.Background(), func(v string) error {
		if v == "c" {
			return nil
		}
		return errTest
	})
	if !slices.Equal(failed, []string{"a", "b"}) {
		t.Errorf("OnError calls = %v", failed)
	}
	if !slices.Equal(fg.Names(), []string{"a", "b", "c"}) {
		t.Errorf("Names() = %v", fg.Names())
	}
}

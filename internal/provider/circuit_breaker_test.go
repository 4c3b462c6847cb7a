package provider

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})
	ctx := context.Background()
	failing := func() (interface{}, error) {
		return nil, fmt.Errorf("%w: provider down", ErrTransient)
	}

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(ctx, failing); err == nil {
			t.Fatalf("call %d succeeded, want failure", i)
		}
	}

	// The circuit is now open: calls are rejected without running fn.
	ran := false
	_, err := cb.Execute(ctx, func() (interface{}, error) {
		ran = true
		return nil, nil
	})
	if err != ErrCircuitOpen {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if ran {
		t.Error("function ran while the circuit was open")
	}
}

func TestCircuitBreakerIgnoresDeterministicErrors(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          2,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})
	ctx := context.Background()

	// Config and input errors never trip the breaker no matter how many
	// occur in a row.
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(ctx, func() (interface{}, error) {
			return nil, fmt.Errorf("%w: bad key", ErrConfig)
		})
		_, _ = cb.Execute(ctx, func() (interface{}, error) {
			return nil, fmt.Errorf("%w: empty", ErrInvalidInput)
		})
	}

	result, err := cb.Execute(ctx, func() (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v (circuit tripped on deterministic errors)", err)
	}
	if result != "ok" {
		t.Errorf("result = %v, want ok", result)
	}
}

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	cb := NewCircuitBreaker()

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != 42 {
		t.Errorf("result = %v, want 42", result)
	}
}

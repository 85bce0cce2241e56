package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoVal_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), FixedRetryConfig(3, 0), func(_ context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected %q, got %q", "ok", val)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoVal_SuccessOnThirdAttempt(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), FixedRetryConfig(3, time.Millisecond), func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("temporary")
		}
		return 7, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 7 {
		t.Errorf("expected 7, got %d", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	var calls int
	cause := errors.New("always fails")
	val, err := DoVal(context.Background(), FixedRetryConfig(3, 0), func(_ context.Context) (int, error) {
		calls++
		return 42, cause
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if val != 0 {
		t.Errorf("expected zero value on failure, got %d", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	var ee *ExhaustedError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if ee.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", ee.Attempts)
	}
	if !errors.Is(err, cause) {
		t.Error("expected exhausted error to wrap the last cause")
	}
	if !IsExhausted(err) {
		t.Error("IsExhausted should report true")
	}
}

func TestDoVal_PermanentError_NoRetry(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), FixedRetryConfig(3, time.Hour), func(_ context.Context) (struct{}, error) {
		calls++
		return struct{}{}, Permanent(errors.New("bad request"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for permanent), got %d", calls)
	}
	if IsExhausted(err) {
		t.Error("permanent failure should not be reported as exhausted")
	}
	if !IsPermanent(err) {
		t.Error("expected permanent error to pass through")
	}
}

func TestDoVal_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	_, err := DoVal(ctx, FixedRetryConfig(5, 50*time.Millisecond), func(_ context.Context) (int, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, errors.New("fail")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before cancel took effect, got %d", calls)
	}
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	var retryAttempts []int
	cfg := FixedRetryConfig(3, 0)
	cfg.OnRetry = func(attempt int, _ error) {
		retryAttempts = append(retryAttempts, attempt)
	}

	_, _ = DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		return 0, errors.New("fail")
	})

	if len(retryAttempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(retryAttempts))
	}
	if retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", retryAttempts)
	}
}

func TestDoVal_DefaultConfig(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), RetryConfig{}, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if !IsExhausted(err) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected default of 3 attempts, got %d", calls)
	}
}

func TestApplyDefaults_NegativeBackoff(t *testing.T) {
	cfg := applyDefaults(RetryConfig{MaxAttempts: 2, Backoff: -time.Second})
	if cfg.Backoff != 0 {
		t.Errorf("expected negative backoff clamped to 0, got %v", cfg.Backoff)
	}
	if cfg.MaxAttempts != 2 {
		t.Errorf("expected MaxAttempts kept at 2, got %d", cfg.MaxAttempts)
	}
}

func TestSleep_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSleep_ZeroDuration(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRetryLogger(t *testing.T) {
	t.Parallel()
	// Just verify it doesn't panic.
	logger := RetryLogger("places", "nearby_search")
	logger(1, errors.New("test error"))
}

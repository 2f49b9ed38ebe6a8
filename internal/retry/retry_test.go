package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vikify/resolver/internal/shared"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func equalDurations(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDo(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("always failing op is invoked retries+1 times", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := Default()
		p.Sleep = rec.sleep

		calls := 0
		_, err := Do(context.Background(), p, "fetch", func(context.Context) (string, error) {
			calls++
			return "", errBoom
		})

		if !errors.Is(err, errBoom) {
			t.Fatalf("expected last error to be wrapped, got %v", err)
		}
		if calls != 4 {
			t.Errorf("expected 4 calls, got %d", calls)
		}
		want := []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 1000 * time.Millisecond}
		if !equalDurations(rec.delays, want) {
			t.Errorf("delays = %v, want %v", rec.delays, want)
		}
	})

	t.Run("returns first success", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := Default()
		p.Sleep = rec.sleep

		calls := 0
		got, err := Do(context.Background(), p, "fetch", func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errBoom
			}
			return 42, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 42 || calls != 3 {
			t.Errorf("got %d after %d calls", got, calls)
		}
		if len(rec.delays) != 2 {
			t.Errorf("expected 2 sleeps, got %d", len(rec.delays))
		}
	})

	t.Run("offline consumes attempts without invoking op", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := Default()
		p.Sleep = rec.sleep
		p.IsOnline = func() bool { return false }

		calls := 0
		_, err := Do(context.Background(), p, "fetch", func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
		if !errors.Is(err, shared.ErrOffline) {
			t.Fatalf("expected ErrOffline, got %v", err)
		}
		if calls != 0 {
			t.Errorf("op should not run while offline, ran %d times", calls)
		}
		if len(rec.delays) != 3 {
			t.Errorf("expected 3 sleeps, got %d", len(rec.delays))
		}
	})

	t.Run("back online on a later attempt", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := Default()
		p.Sleep = rec.sleep
		checks := 0
		p.IsOnline = func() bool {
			checks++
			return checks > 1
		}

		got, err := Do(context.Background(), p, "fetch", func(context.Context) (string, error) {
			return "ok", nil
		})
		if err != nil || got != "ok" {
			t.Fatalf("got %q, %v", got, err)
		}
	})

	t.Run("fixed schedule", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := Fixed(time.Second, 2*time.Second, 3*time.Second)
		p.Sleep = rec.sleep

		calls := 0
		_, err := Do(context.Background(), p, "stream", func(context.Context) (int, error) {
			calls++
			return 0, errBoom
		})
		if err == nil {
			t.Fatal("expected error")
		}
		if calls != 4 {
			t.Errorf("expected 4 calls, got %d", calls)
		}
		want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
		if !equalDurations(rec.delays, want) {
			t.Errorf("delays = %v, want %v", rec.delays, want)
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		rec := &sleepRecorder{}
		p := Default()
		p.Sleep = rec.sleep
		p.Permanent = func(err error) bool { return errors.Is(err, shared.ErrLyricsUnavailable) }

		calls := 0
		_, err := Do(context.Background(), p, "lyrics", func(context.Context) (string, error) {
			calls++
			return "", shared.ErrLyricsUnavailable
		})
		if !errors.Is(err, shared.ErrLyricsUnavailable) {
			t.Fatalf("expected ErrLyricsUnavailable, got %v", err)
		}
		if calls != 1 || len(rec.delays) != 0 {
			t.Errorf("expected a single call without sleeps, got %d calls and %v", calls, rec.delays)
		}
	})

	t.Run("cancelled while sleeping", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := Default()
		p.Sleep = func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}

		calls := 0
		_, err := Do(ctx, p, "fetch", func(context.Context) (int, error) {
			calls++
			return 0, errBoom
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"first", Default(), 1, 250 * time.Millisecond},
		{"second", Default(), 2, 500 * time.Millisecond},
		{"third", Default(), 3, time.Second},
		{"fourth", Default(), 4, 2 * time.Second},
		{"capped", Default(), 5, 2500 * time.Millisecond},
		{"far past cap", Default(), 40, 2500 * time.Millisecond},
		{"fixed position", Fixed(time.Second, 2*time.Second, 3*time.Second), 2, 2 * time.Second},
		{"fixed repeats last", Fixed(time.Second, 2*time.Second), 5, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Backoff(tt.attempt); got != tt.want {
				t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

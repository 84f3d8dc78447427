package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/spotcall/internal/timeutil"
)

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked (5) (SQLITE_BUSY)")

	t.Run("success after retry", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		calls := 0
		err := retryOnBusy(clock, func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Errorf("got err=%v after %d calls, want nil after 3", err, calls)
		}
		want := []time.Duration{busyBaseDelay, 2 * busyBaseDelay}
		if diff := cmp.Diff(want, clock.Sleeps()); diff != "" {
			t.Errorf("backoff mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		calls := 0
		other := errors.New("constraint failed")
		err := retryOnBusy(timeutil.NewMockClock(time.Unix(0, 0)), func() error {
			calls++
			return other
		})
		if err != other || calls != 1 {
			t.Errorf("got err=%v after %d calls, want %v after 1", err, calls, other)
		}
	})

	t.Run("max attempts exceeded", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		calls := 0
		err := retryOnBusy(clock, func() error {
			calls++
			return busy
		})
		if err == nil || calls != busyMaxAttempts {
			t.Errorf("got err=%v after %d calls, want busy error after %d", err, calls, busyMaxAttempts)
		}
		if got := len(clock.Sleeps()); got != busyMaxAttempts-1 {
			t.Errorf("slept %d times, want %d", got, busyMaxAttempts-1)
		}
	})
}

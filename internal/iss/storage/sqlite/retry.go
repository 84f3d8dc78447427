package sqlite

import (
	"strings"
	"time"

	"github.com/banshee-data/spotcall/internal/timeutil"
)

const (
	busyMaxAttempts = 5
	busyBaseDelay   = 10 * time.Millisecond
)

// isSQLiteBusy reports whether err is a transient lock error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryOnBusy runs fn, retrying with exponential backoff while it fails with
// a busy error. Other errors are returned immediately.
func retryOnBusy(clock timeutil.Clock, fn func() error) error {
	var err error
	delay := busyBaseDelay
	for attempt := 0; attempt < busyMaxAttempts; attempt++ {
		if err = fn(); !isSQLiteBusy(err) {
			return err
		}
		if attempt < busyMaxAttempts-1 {
			clock.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Timeout values for AdvisoryLock.Acquire, in seconds.
const (
	TimeoutImmediate = 0
	TimeoutShort     = 1
	TimeoutMedium    = 10
	TimeoutLong      = 60
)

// AdvisoryLock is a MySQL named lock (GET_LOCK/RELEASE_LOCK) that prevents
// two driver instances from extracting the same target concurrently. It is
// automatically released when the connection closes, but explicit release
// is still the normal path.
type AdvisoryLock struct {
	db       *sql.DB
	lockName string
	held     bool
}

// NewAdvisoryLock creates an advisory lock scoped to one checkpoint prefix.
// Lock names are namespaced under "snowdoc:" to avoid colliding with other
// applications sharing the same MySQL instance.
func NewAdvisoryLock(db *sql.DB, prefix string) *AdvisoryLock {
	return &AdvisoryLock{db: db, lockName: "snowdoc:" + sanitizeLockName(prefix)}
}

func sanitizeLockName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.' {
			return r
		}
		return '_'
	}, name)
}

// Acquire attempts to acquire the lock within timeoutSeconds. A negative
// timeout waits indefinitely; MySQL treats it as infinite wait.
func (a *AdvisoryLock) Acquire(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}

	var result sql.NullInt64
	err := a.db.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}
	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.held = true
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// Release releases the lock. It is a no-op if the lock is not held.
func (a *AdvisoryLock) Release(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var result sql.NullInt64
	err := a.db.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}
	a.held = false
	if !result.Valid {
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q", a.lockName)
	}
	return result.Int64 == 1, nil
}

// IsHeld reports whether this instance currently holds the lock.
func (a *AdvisoryLock) IsHeld() bool { return a.held }

// WithLock runs fn while holding the lock, guaranteeing release afterward
// even if fn panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.Acquire(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.Release(releaseCtx)
	}()

	return fn()
}

package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestAdvisoryLock_AcquireSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("snowdoc:job.orders", TimeoutShort).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(1))

	lock := NewAdvisoryLock(db, "job.orders")
	acquired, err := lock.Acquire(context.Background(), TimeoutShort)
	require.NoError(t, err)
	require.True(t, acquired)
	require.True(t, lock.IsHeld())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLock_AcquireTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(0))

	lock := NewAdvisoryLock(db, "job.orders")
	acquired, err := lock.Acquire(context.Background(), TimeoutShort)
	require.NoError(t, err)
	require.False(t, acquired)
	require.False(t, lock.IsHeld())
}

func TestAdvisoryLock_AcquireAlreadyHeldIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(1))

	lock := NewAdvisoryLock(db, "job.orders")
	_, err = lock.Acquire(context.Background(), TimeoutShort)
	require.NoError(t, err)

	// Second call must not issue another GET_LOCK query.
	acquired, err := lock.Acquire(context.Background(), TimeoutShort)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryLock_ReleaseNotHeldIsNoop(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lock := NewAdvisoryLock(db, "job.orders")
	released, err := lock.Release(context.Background())
	require.NoError(t, err)
	require.False(t, released)
}

func TestAdvisoryLock_WithLock_RunsFnAndReleases(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(1))
	mock.ExpectQuery("SELECT RELEASE_LOCK").WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(1))

	lock := NewAdvisoryLock(db, "job.orders")
	ran := false
	err = lock.WithLock(context.Background(), TimeoutShort, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	require.True(t, ran)
	require.False(t, lock.IsHeld())
}

func TestAdvisoryLock_WithLock_TimeoutReturnsErrLockTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(0))

	lock := NewAdvisoryLock(db, "job.orders")
	err = lock.WithLock(context.Background(), TimeoutShort, func() error {
		t.Fatal("fn must not run when the lock isn't acquired")
		return nil
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLockTimeout))
}

func TestSanitizeLockName_ReplacesUnsafeCharacters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT GET_LOCK").WithArgs("snowdoc:job_orders_v2", TimeoutImmediate).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(1))

	lock := NewAdvisoryLock(db, "job orders/v2")
	_, err = lock.Acquire(context.Background(), TimeoutImmediate)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

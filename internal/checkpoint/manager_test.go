package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string]string{}} }

func (f *fakeStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeStore) Set(_ context.Context, key, value string) error {
	f.data[key] = value
	return nil
}

func TestManager_LoadDefaultsToZero(t *testing.T) {
	m := NewManager(newFakeStore(), "job.orders", nil)
	st, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Zero, st)
}

func TestManager_SaveThenLoadRoundTrips(t *testing.T) {
	m := NewManager(newFakeStore(), "job.orders", nil)
	want := State{LastModified: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), LastID: 42}

	require.NoError(t, m.Save(context.Background(), want))
	got, err := m.Load(context.Background())
	require.NoError(t, err)
	require.True(t, want.LastModified.Equal(got.LastModified))
	require.Equal(t, want.LastID, got.LastID)
}

func TestManager_ResetClearsCheckpoint(t *testing.T) {
	m := NewManager(newFakeStore(), "job.orders", nil)
	require.NoError(t, m.Save(context.Background(), State{LastModified: time.Now().UTC(), LastID: 9}))
	require.NoError(t, m.Reset(context.Background()))

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Zero, got)
}

func TestManager_CheckDrift_AdoptsFirstFingerprint(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, "job.orders", nil)

	require.NoError(t, m.CheckDrift(context.Background(), "fp1", false))
	require.Equal(t, "fp1", store.data["job.orders.sql"])
}

func TestManager_CheckDrift_HaltsOnMismatchWithoutOverride(t *testing.T) {
	store := newFakeStore()
	store.data["job.orders.sql"] = "fp1"
	m := NewManager(store, "job.orders", nil)

	err := m.CheckDrift(context.Background(), "fp2", false)
	require.Error(t, err)
	require.Equal(t, "fp1", store.data["job.orders.sql"], "fingerprint must not move without an override")
}

func TestManager_CheckDrift_OverridePromotesFingerprint(t *testing.T) {
	store := newFakeStore()
	store.data["job.orders.sql"] = "fp1"
	m := NewManager(store, "job.orders", nil)

	require.NoError(t, m.CheckDrift(context.Background(), "fp2", true))
	require.Equal(t, "fp2", store.data["job.orders.sql"])
}

func TestManager_CheckDrift_MatchingFingerprintIsNoop(t *testing.T) {
	store := newFakeStore()
	store.data["job.orders.sql"] = "fp1"
	m := NewManager(store, "job.orders", nil)

	require.NoError(t, m.CheckDrift(context.Background(), "fp1", false))
}

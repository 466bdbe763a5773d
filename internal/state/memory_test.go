package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphive/crm-handoff/internal/config"
)

func TestMemoryStore_Credentials(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	// Missing credential is not an error, just the zero value.
	cred, err := store.LoadCredential(ctx, "crm-a")
	require.NoError(t, err)
	assert.False(t, cred.Valid(time.Now()))

	want := Credential{
		AccessToken:  "tok",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, store.SaveCredential(ctx, "crm-a", want))

	got, err := store.LoadCredential(ctx, "crm-a")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.Valid(time.Now()))

	// Credentials are scoped per integration.
	other, err := store.LoadCredential(ctx, "crm-b")
	require.NoError(t, err)
	assert.Empty(t, other.AccessToken)
}

func TestCredential_Valid(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{name: "valid", cred: Credential{AccessToken: "tok", ExpiresAt: now.Add(time.Minute)}, want: true},
		{name: "expired", cred: Credential{AccessToken: "tok", ExpiresAt: now.Add(-time.Minute)}, want: false},
		{name: "expires exactly now", cred: Credential{AccessToken: "tok", ExpiresAt: now}, want: false},
		{name: "empty token", cred: Credential{ExpiresAt: now.Add(time.Minute)}, want: false},
		{name: "zero value", cred: Credential{}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cred.Valid(now))
		})
	}
}

func TestMemoryStore_SyncState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.RemoteID(ctx, "crm-a", "local-1")
	require.ErrorIs(t, err, ErrNotSynced)

	require.NoError(t, store.SetSynced(ctx, SyncState{
		Integration:       "crm-a",
		LocalCandidateID:  "local-1",
		RemoteCandidateID: "remote-1",
	}))

	remoteID, err := store.RemoteID(ctx, "crm-a", "local-1")
	require.NoError(t, err)
	assert.Equal(t, "remote-1", remoteID)

	// Same local id under a different integration is unsynced.
	_, err = store.RemoteID(ctx, "crm-b", "local-1")
	require.ErrorIs(t, err, ErrNotSynced)

	// Re-sync overwrites the mapping.
	require.NoError(t, store.SetSynced(ctx, SyncState{
		Integration:       "crm-a",
		LocalCandidateID:  "local-1",
		RemoteCandidateID: "remote-2",
	}))
	remoteID, err = store.RemoteID(ctx, "crm-a", "local-1")
	require.NoError(t, err)
	assert.Equal(t, "remote-2", remoteID)
}

func TestMemoryStore_RetryQueue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Enqueue(ctx, RetryJob{Kind: RetryJobKindFile, CandidateID: "c1", FileID: "f1"}))
	require.NoError(t, store.Enqueue(ctx, RetryJob{Kind: RetryJobKindFile, CandidateID: "c2", FileID: "f2"}))

	// FIFO order, ids and timestamps assigned on enqueue.
	first, ok, err := store.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f1", first.FileID)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.EnqueuedAt.IsZero())

	second, ok, err := store.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f2", second.FileID)

	_, ok, err = store.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewStore(t *testing.T) {
	t.Parallel()

	t.Run("memory by default", func(t *testing.T) {
		t.Parallel()
		store, err := NewStore(&config.Config{}, nil)
		require.NoError(t, err)
		assert.IsType(t, &memoryStore{}, store)
	})

	t.Run("database requires pool", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Database: &config.DatabaseConfig{Host: "db", Port: 5432}}
		_, err := NewStore(cfg, nil)
		require.Error(t, err)
	})
}

// Package state contains the durable state the handoff worker keeps between
// export runs: OAuth credentials, the local-to-remote candidate id mapping
// used for idempotent re-export, and the queue of deferred file uploads.
package state

import (
	"context"
	"errors"
	"time"
)

// ErrNotSynced is returned when no sync mapping exists for a candidate.
var ErrNotSynced = errors.New("candidate not synced")

// Credential holds the bearer credential for one CRM integration.
// A credential is valid when the access token is non-empty and the
// expiry is in the future.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the credential can still be used at time now.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// SyncState maps a local candidate to its remote CRM counterpart.
type SyncState struct {
	Integration       string
	LocalCandidateID  string
	RemoteCandidateID string
	LinkedJobID       string
	SyncedAt          time.Time
}

// RetryJob is a deferred unit of work, currently only file uploads that
// failed during an export and should be retried out of band.
type RetryJob struct {
	ID          string
	Kind        string
	Integration string
	CandidateID string
	FileID      string
	Attempts    int
	EnqueuedAt  time.Time
}

// RetryJobKindFile marks a deferred file upload.
const RetryJobKindFile = "file"

// CredentialStore persists bearer credentials per integration.
//
//go:generate mockgen -destination=mocks/mock_credential_store.go -package=mocks github.com/apphive/crm-handoff/internal/state CredentialStore
type CredentialStore interface {
	// LoadCredential returns the stored credential for the integration.
	// A missing credential is not an error; the zero value is returned.
	LoadCredential(ctx context.Context, integration string) (Credential, error)
	// SaveCredential overwrites the stored credential for the integration.
	SaveCredential(ctx context.Context, integration string, cred Credential) error
}

// SyncStateStore persists the local-to-remote candidate mapping.
//
//go:generate mockgen -destination=mocks/mock_sync_state_store.go -package=mocks github.com/apphive/crm-handoff/internal/state SyncStateStore
type SyncStateStore interface {
	// RemoteID returns the remote candidate id for a local candidate,
	// or ErrNotSynced when no mapping exists.
	RemoteID(ctx context.Context, integration, localCandidateID string) (string, error)
	// SetSynced records (or refreshes) the mapping for a local candidate.
	SetSynced(ctx context.Context, st SyncState) error
}

// RetryQueue holds deferred jobs for the out-of-band retry worker.
//
//go:generate mockgen -destination=mocks/mock_retry_queue.go -package=mocks github.com/apphive/crm-handoff/internal/state RetryQueue
type RetryQueue interface {
	// Enqueue appends a job to the queue.
	Enqueue(ctx context.Context, job RetryJob) error
	// Dequeue removes and returns the oldest job. When the queue is
	// empty it returns ok=false and no error.
	Dequeue(ctx context.Context) (job RetryJob, ok bool, err error)
}

// Store bundles the three persistence concerns behind one handle so the
// serve command can build them from a single backend.
type Store interface {
	CredentialStore
	SyncStateStore
	RetryQueue
}

package state

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu          sync.Mutex
	credentials map[string]Credential
	synced      map[string]SyncState
	queue       []RetryJob
}

// NewMemoryStore creates an in-memory Store. It is the default backend for
// development and tests; nothing survives a process restart.
func NewMemoryStore() Store {
	return &memoryStore{
		credentials: make(map[string]Credential),
		synced:      make(map[string]SyncState),
	}
}

func (m *memoryStore) LoadCredential(_ context.Context, integration string) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credentials[integration], nil
}

func (m *memoryStore) SaveCredential(_ context.Context, integration string, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[integration] = cred
	return nil
}

func syncKey(integration, localCandidateID string) string {
	return integration + "/" + localCandidateID
}

func (m *memoryStore) RemoteID(_ context.Context, integration, localCandidateID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.synced[syncKey(integration, localCandidateID)]
	if !ok {
		return "", ErrNotSynced
	}
	return st.RemoteCandidateID, nil
}

func (m *memoryStore) SetSynced(_ context.Context, st SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.SyncedAt.IsZero() {
		st.SyncedAt = time.Now()
	}
	m.synced[syncKey(st.Integration, st.LocalCandidateID)] = st
	return nil
}

func (m *memoryStore) Enqueue(_ context.Context, job RetryJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	m.queue = append(m.queue, job)
	return nil
}

func (m *memoryStore) Dequeue(_ context.Context) (RetryJob, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return RetryJob{}, false, nil
	}
	job := m.queue[0]
	m.queue = m.queue[1:]
	return job, true, nil
}

package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed Store on top of an existing
// connection pool. Schema is managed by the database package migrations.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (p *postgresStore) LoadCredential(ctx context.Context, integration string) (Credential, error) {
	var cred Credential
	var expiresAt *time.Time
	err := p.pool.QueryRow(ctx,
		`SELECT access_token, refresh_token, expires_at
		   FROM credentials WHERE integration = $1`,
		integration,
	).Scan(&cred.AccessToken, &cred.RefreshToken, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, nil
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}
	if expiresAt != nil {
		cred.ExpiresAt = *expiresAt
	}
	return cred, nil
}

func (p *postgresStore) SaveCredential(ctx context.Context, integration string, cred Credential) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO credentials (integration, access_token, refresh_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (integration) DO UPDATE
		   SET access_token = EXCLUDED.access_token,
		       refresh_token = EXCLUDED.refresh_token,
		       expires_at = EXCLUDED.expires_at,
		       updated_at = now()`,
		integration, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (p *postgresStore) RemoteID(ctx context.Context, integration, localCandidateID string) (string, error) {
	var remoteID string
	err := p.pool.QueryRow(ctx,
		`SELECT remote_candidate_id FROM candidate_sync
		  WHERE integration = $1 AND local_candidate_id = $2`,
		integration, localCandidateID,
	).Scan(&remoteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotSynced
	}
	if err != nil {
		return "", fmt.Errorf("failed to query sync state: %w", err)
	}
	return remoteID, nil
}

func (p *postgresStore) SetSynced(ctx context.Context, st SyncState) error {
	syncedAt := st.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO candidate_sync (integration, local_candidate_id, remote_candidate_id, linked_job_id, synced_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (integration, local_candidate_id) DO UPDATE
		   SET remote_candidate_id = EXCLUDED.remote_candidate_id,
		       linked_job_id = EXCLUDED.linked_job_id,
		       synced_at = EXCLUDED.synced_at`,
		st.Integration, st.LocalCandidateID, st.RemoteCandidateID, st.LinkedJobID, syncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync state: %w", err)
	}
	return nil
}

func (p *postgresStore) Enqueue(ctx context.Context, job RetryJob) error {
	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO retry_queue (id, kind, integration, candidate_id, file_id, attempts, enqueued_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		id, job.Kind, job.Integration, job.CandidateID, job.FileID, job.Attempts,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue retry job: %w", err)
	}
	return nil
}

func (p *postgresStore) Dequeue(ctx context.Context) (RetryJob, bool, error) {
	// Single-row claim; SKIP LOCKED lets multiple workers drain concurrently.
	var job RetryJob
	err := p.pool.QueryRow(ctx,
		`DELETE FROM retry_queue
		  WHERE id = (
		        SELECT id FROM retry_queue
		         ORDER BY enqueued_at
		         FOR UPDATE SKIP LOCKED
		         LIMIT 1)
		  RETURNING id, kind, integration, candidate_id, file_id, attempts, enqueued_at`,
	).Scan(&job.ID, &job.Kind, &job.Integration, &job.CandidateID, &job.FileID, &job.Attempts, &job.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return RetryJob{}, false, nil
	}
	if err != nil {
		return RetryJob{}, false, fmt.Errorf("failed to dequeue retry job: %w", err)
	}
	return job, true, nil
}

package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/apphive/crm-handoff/internal/state"
)

// ExportFiles re-runs the file import for an already-synced candidate. It
// is the entry point used by the retry worker and by operator requests.
func (o *Orchestrator) ExportFiles(ctx context.Context, localCandidateID string) error {
	remoteID, err := o.store.RemoteID(ctx, o.integration, localCandidateID)
	if err != nil {
		return fmt.Errorf("candidate has no remote id: %w", err)
	}

	report := &Report{}
	o.importFiles(ctx, localCandidateID, remoteID, report, o.logger.With(
		"candidate", localCandidateID, "integration", o.integration))

	for _, s := range report.Steps {
		if !s.OK {
			return s.Err
		}
	}
	return nil
}

// ImportFile uploads a single locally stored file into a synced candidate.
// Used by the retry worker to drain deferred uploads.
func (o *Orchestrator) ImportFile(ctx context.Context, localCandidateID, fileID string) error {
	remoteID, err := o.store.RemoteID(ctx, o.integration, localCandidateID)
	if err != nil {
		return fmt.Errorf("candidate has no remote id: %w", err)
	}

	doc, err := o.docs.GetDocument(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to load document %s: %w", fileID, err)
	}
	return o.importOne(ctx, remoteID, doc)
}

// importFiles pushes every locally stored document into the remote
// candidate. Uploads run through a bounded pool; a failed upload is handed
// to the retry queue exactly once and never stops the other files.
func (o *Orchestrator) importFiles(ctx context.Context, localCandidateID, remoteID string, report *Report, logger *slog.Logger) {
	docs, err := o.docs.ListDocuments(ctx, localCandidateID)
	if err != nil {
		report.step("files", err, "")
		logger.Warn("failed to list local documents", "error", err)
		return
	}
	if len(docs) == 0 {
		report.step("files", nil, "no documents")
		return
	}

	var deferred atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.GetMaxWorkers())

	for _, doc := range docs {
		g.Go(func() error {
			if err := o.importOne(gctx, remoteID, doc); err != nil {
				deferred.Add(1)
				logger.Warn("file upload failed, deferring to retry queue",
					"file", doc.Filename, "error", err)
				if qerr := o.store.Enqueue(gctx, state.RetryJob{
					Kind:        state.RetryJobKindFile,
					Integration: o.integration,
					CandidateID: localCandidateID,
					FileID:      doc.ID,
				}); qerr != nil {
					logger.Error("failed to enqueue retry job", "file", doc.Filename, "error", qerr)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	detail := fmt.Sprintf("%d/%d files imported", len(docs)-int(deferred.Load()), len(docs))
	report.step("files", nil, detail)
	logger.Info("file import finished", "total", len(docs), "deferred", deferred.Load())
}

// importOne uploads a document unless the remote candidate already carries
// an attachment with the same name, then marks the fresh upload as the
// default CV. The re-list after upload is how the remote id of the new
// document is discovered; the upload response does not carry it.
func (o *Orchestrator) importOne(ctx context.Context, remoteID string, doc Document) error {
	existing, err := o.gateway.ListDocuments(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("failed to list remote documents: %w", err)
	}
	for _, d := range existing {
		if d.AttachmentName == doc.Filename {
			o.logger.Debug("file already present remotely, skipping upload", "file", doc.Filename)
			return nil
		}
	}

	if err := o.gateway.UploadDocument(ctx, remoteID, doc.Filename, doc.Content); err != nil {
		return fmt.Errorf("failed to upload %s: %w", doc.Filename, err)
	}

	uploaded, err := o.gateway.ListDocuments(ctx, remoteID)
	if err != nil {
		return fmt.Errorf("failed to re-list remote documents: %w", err)
	}
	for _, d := range uploaded {
		if d.AttachmentName == doc.Filename {
			if err := o.gateway.SetDefaultCV(ctx, remoteID, d.ItemID); err != nil {
				// The file is safely uploaded at this point. Losing the
				// default-CV marker is not worth a retry of the upload.
				o.logger.Warn("failed to mark default cv", "file", doc.Filename, "error", err)
			}
			return nil
		}
	}

	o.logger.Warn("uploaded document not found in re-listing", "file", doc.Filename)
	return nil
}

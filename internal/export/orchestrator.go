package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/apphive/crm-handoff/internal/config"
	"github.com/apphive/crm-handoff/internal/crm"
	"github.com/apphive/crm-handoff/internal/state"
)

// Orchestrator runs candidate exports against one CRM integration.
type Orchestrator struct {
	gateway  Gateway
	resolver EntityResolver
	parser   Parser
	docs     DocumentStore
	store    state.Store

	integration string
	cfg         config.ExportConfig
	logger      *slog.Logger
	now         func() time.Time
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator wires an export pipeline for the named integration.
func NewOrchestrator(
	integration string,
	cfg config.ExportConfig,
	gateway Gateway,
	resolver EntityResolver,
	parser Parser,
	docs DocumentStore,
	store state.Store,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		gateway:     gateway,
		resolver:    resolver,
		parser:      parser,
		docs:        docs,
		store:       store,
		integration: integration,
		cfg:         cfg,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExportCandidate runs the full pipeline for one local candidate. The
// returned report always describes every step attempted; err is non-nil
// only for the two aborting conditions, a failed parse and a failed remote
// create.
func (o *Orchestrator) ExportCandidate(ctx context.Context, localCandidateID string, opts Options) (*Report, error) {
	report := &Report{Status: StatusFailed}
	logger := o.logger.With("candidate", localCandidateID, "integration", o.integration)
	logger.Info("starting candidate export", "link_to_job", opts.LinkToJob)

	parsed, err := o.parse(ctx, localCandidateID)
	report.step("parse", err, "")
	if err != nil {
		logger.Error("cv parsing failed, aborting export", "error", err)
		return report, err
	}

	o.resolveEntities(ctx, parsed, report, logger)

	record := buildCandidate(parsed, o.cfg)

	match := o.checkDuplicate(ctx, record, report, logger)
	if match != nil {
		return o.adoptDuplicate(ctx, localCandidateID, match, report, opts, logger)
	}

	if remoteID, err := o.store.RemoteID(ctx, o.integration, localCandidateID); err == nil {
		logger.Info("candidate already exported, reusing remote id", "remote_id", remoteID)
		report.Status = StatusReused
		report.RemoteCandidateID = remoteID
		linked := o.link(ctx, remoteID, opts, report, logger)
		o.finalize(ctx, localCandidateID, remoteID, linked, report, logger)
		return report, nil
	} else if !errors.Is(err, state.ErrNotSynced) {
		report.step("sync_lookup", err, "")
		logger.Warn("sync state lookup failed, proceeding as unsynced", "error", err)
	}

	remoteID, err := o.gateway.CreateCandidate(ctx, record)
	report.step("create", err, remoteID)
	if err != nil {
		logger.Error("remote candidate creation failed, aborting export", "error", err)
		return report, fmt.Errorf("failed to create candidate: %w", err)
	}
	logger.Info("candidate created remotely", "remote_id", remoteID)
	report.Status = StatusNew
	report.RemoteCandidateID = remoteID

	o.propagateHistory(ctx, remoteID, parsed, report, logger)
	linked := o.link(ctx, remoteID, opts, report, logger)
	o.importFiles(ctx, localCandidateID, remoteID, report, logger)
	o.finalize(ctx, localCandidateID, remoteID, linked, report, logger)

	return report, nil
}

// parse obtains the structured CV. This is the pipeline's only hard-stop
// precondition short of the remote create.
func (o *Orchestrator) parse(ctx context.Context, localCandidateID string) (*ParsedCandidate, error) {
	cv, err := o.docs.GetCV(ctx, localCandidateID)
	if err != nil {
		return nil, &ParseError{Reason: "no cv on file", Cause: err}
	}

	documentID, err := o.parser.UploadAndParseCV(ctx, cv)
	if err != nil {
		return nil, &ParseError{Reason: "upload failed", Cause: err}
	}

	parsed, err := o.parser.GetParsedCVDetails(ctx, documentID)
	if err != nil {
		return nil, &ParseError{Reason: "failed to fetch parsed details", Cause: err}
	}
	if !parsed.Usable() {
		return nil, &ParseError{Reason: "no usable person data"}
	}
	return parsed, nil
}

// resolveEntities attaches a company id to every position and an
// institution id to every education entry, in place. Resolution failures
// demote to the configured defaults; the pass itself never fails.
func (o *Orchestrator) resolveEntities(ctx context.Context, parsed *ParsedCandidate, report *Report, logger *slog.Logger) {
	var failed int

	for i := range parsed.Positions {
		pos := &parsed.Positions[i]
		if crm.IsGUID(pos.CompanyID) {
			continue
		}
		if id := firstGUID(pos.SuggestedCompanyIDs); id != "" {
			pos.CompanyID = id
			continue
		}
		if pos.CompanyName == "" {
			pos.CompanyName = FallbackCompanyName
		}
		id, err := o.resolver.Resolve(ctx, pos.CompanyName, false)
		if err != nil || !crm.IsGUID(id) {
			logger.Warn("company resolution failed, using default",
				"company", pos.CompanyName, "error", err)
			id = o.cfg.DefaultCompanyID
			failed++
		}
		pos.CompanyID = id
	}

	for i := range parsed.Education {
		edu := &parsed.Education[i]
		if crm.IsGUID(edu.InstitutionID) {
			continue
		}
		if edu.InstitutionName == "" {
			edu.InstitutionName = FallbackInstitutionName
		}
		id, err := o.resolver.Resolve(ctx, edu.InstitutionName, true)
		if err != nil || !crm.IsGUID(id) {
			logger.Warn("institution resolution failed, using default",
				"institution", edu.InstitutionName, "error", err)
			id = o.cfg.DefaultInstitutionID
			failed++
		}
		edu.InstitutionID = id
	}

	detail := ""
	if failed > 0 {
		detail = fmt.Sprintf("%d entries fell back to defaults", failed)
	}
	report.step("resolve", nil, detail)
}

func firstGUID(ids []string) string {
	for _, id := range ids {
		if crm.IsGUID(id) {
			return id
		}
	}
	return ""
}

// checkDuplicate queries the remote system by full name and primary email.
// A failed lookup is recorded and treated as no match; only the create path
// decides the export's fate.
func (o *Orchestrator) checkDuplicate(ctx context.Context, record crm.Candidate, report *Report, logger *slog.Logger) *crm.DuplicateMatch {
	name := record.NameComponents.FullName
	email := record.EmailAddresses[0].ItemValue
	if name == "" || email == "" {
		report.step("duplicate_check", nil, "skipped: name or email missing")
		return nil
	}

	match, err := o.gateway.FindDuplicatePerson(ctx, name, email)
	report.step("duplicate_check", err, "")
	if err != nil {
		logger.Warn("duplicate check failed, assuming no duplicate", "error", err)
		return nil
	}
	return match
}

// adoptDuplicate treats a matched remote person as the canonical candidate.
// Files and job linkage run only on first contact; a candidate that was
// already exported just gets its sync state refreshed.
func (o *Orchestrator) adoptDuplicate(ctx context.Context, localCandidateID string, match *crm.DuplicateMatch, report *Report, opts Options, logger *slog.Logger) (*Report, error) {
	logger.Info("duplicate candidate detected", "remote_id", match.ItemID, "summary", match.DisplaySummary)
	report.Status = StatusDuplicate
	report.RemoteCandidateID = match.ItemID

	_, err := o.store.RemoteID(ctx, o.integration, localCandidateID)
	firstContact := errors.Is(err, state.ErrNotSynced)
	if err != nil && !firstContact {
		logger.Warn("sync state lookup failed, treating duplicate as first contact", "error", err)
		firstContact = true
	}

	var linked bool
	if firstContact {
		o.importFiles(ctx, localCandidateID, match.ItemID, report, logger)
		linked = o.link(ctx, match.ItemID, opts, report, logger)
	} else {
		report.Status = StatusReused
	}

	o.finalize(ctx, localCandidateID, match.ItemID, linked, report, logger)
	return report, nil
}

// link attaches the candidate to the configured assignment, skipping when
// linkage is not requested, not configured, or already in place. Link
// failures degrade the report, never the export. It reports whether the
// candidate ended up attached to the job.
func (o *Orchestrator) link(ctx context.Context, remoteID string, opts Options, report *Report, logger *slog.Logger) bool {
	if !opts.LinkToJob {
		report.step("link", nil, "skipped: not requested")
		return false
	}
	if o.cfg.JobID == "" {
		report.step("link", nil, "skipped: no job configured")
		return false
	}

	linked, err := o.gateway.IsCandidateLinked(ctx, o.cfg.JobID, remoteID)
	if err != nil {
		report.step("link", err, "")
		logger.Warn("link check failed", "job", o.cfg.JobID, "error", err)
		return false
	}
	if linked {
		report.step("link", nil, "already linked")
		logger.Info("candidate already linked to job", "job", o.cfg.JobID)
		return true
	}

	statusID, err := o.validLinkStatus(ctx)
	if err != nil {
		report.step("link", err, "")
		logger.Warn("link aborted", "job", o.cfg.JobID, "error", err)
		return false
	}

	_, err = o.gateway.LinkCandidate(ctx, o.cfg.JobID, crm.AssignmentCandidate{
		Candidate:    crm.Ref{ID: remoteID},
		RecordStatus: crm.Ref{ID: statusID},
	})
	report.step("link", err, "")
	if err != nil {
		logger.Warn("link failed", "job", o.cfg.JobID, "error", err)
		return false
	}
	logger.Info("candidate linked to job", "job", o.cfg.JobID)
	return true
}

// validLinkStatus checks the configured record status against the tenant's
// accepted set. An unknown status fails the link step, not the export.
func (o *Orchestrator) validLinkStatus(ctx context.Context) (string, error) {
	statuses, err := o.gateway.AssignmentCandidateStatuses(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch assignment candidate statuses: %w", err)
	}
	for _, s := range statuses {
		if s.ID == o.cfg.LinkStatusID {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("record status %q is not accepted by the tenant", o.cfg.LinkStatusID)
}

// finalize persists the local to remote mapping. It runs on every branch
// that ends with a confirmed remote candidate. The job id is recorded only
// when the link step actually attached the candidate.
func (o *Orchestrator) finalize(ctx context.Context, localCandidateID, remoteID string, linked bool, report *Report, logger *slog.Logger) {
	if !crm.IsGUID(remoteID) {
		report.step("finalize", fmt.Errorf("refusing to persist malformed remote id %q", remoteID), "")
		return
	}

	st := state.SyncState{
		Integration:       o.integration,
		LocalCandidateID:  localCandidateID,
		RemoteCandidateID: remoteID,
		SyncedAt:          o.now(),
	}
	if linked {
		st.LinkedJobID = o.cfg.JobID
	}

	err := o.store.SetSynced(ctx, st)
	report.step("finalize", err, "")
	if err != nil {
		logger.Error("failed to persist sync state", "remote_id", remoteID, "error", err)
		return
	}
	logger.Info("sync state recorded", "remote_id", remoteID, "status", report.Status)
}

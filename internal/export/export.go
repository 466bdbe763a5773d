// Package export orchestrates the handoff of one local candidate to the
// CRM: CV parsing, company and institution resolution, duplicate detection,
// remote creation, history propagation, job linkage and file import.
//
// An export is sequential: each step feeds the next. Failures in
// the middle of the pipeline degrade the result instead of rolling it back;
// there is no compensating transaction. Only a failed parse or a failed
// remote create abort the whole export.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/apphive/crm-handoff/internal/crm"
)

// Sentinel names substituted when a parsed CV omits the employer or
// institution name. They become real company entities remotely, which keeps
// the position payloads valid without inventing identities.
const (
	FallbackCompanyName     = "Company_Name_Not_Provided"
	FallbackInstitutionName = "Institution_Name_Not_Provided"
)

// Document is a locally stored candidate file.
type Document struct {
	ID       string
	Filename string
	Content  []byte
}

// Parser is the external CV parsing service.
type Parser interface {
	UploadAndParseCV(ctx context.Context, doc Document) (string, error)
	GetParsedCVDetails(ctx context.Context, documentID string) (*ParsedCandidate, error)
}

// DocumentStore is the local store holding a candidate's CV and attachments.
type DocumentStore interface {
	GetCV(ctx context.Context, candidateID string) (Document, error)
	ListDocuments(ctx context.Context, candidateID string) ([]Document, error)
	GetDocument(ctx context.Context, id string) (Document, error)
}

// EntityResolver maps a company or institution name to a CRM entity id.
type EntityResolver interface {
	Resolve(ctx context.Context, name string, isPlaceOfStudy bool) (string, error)
}

// Gateway is the slice of the CRM client the orchestrator drives.
type Gateway interface {
	CreateCandidate(ctx context.Context, cand crm.Candidate) (string, error)
	FindDuplicatePerson(ctx context.Context, name, email string) (*crm.DuplicateMatch, error)
	AddPosition(ctx context.Context, candidateID string, pos crm.Position) error
	AddEducation(ctx context.Context, candidateID string, edu crm.Education) error
	AssignmentCandidateStatuses(ctx context.Context) ([]crm.StatusRef, error)
	LinkCandidate(ctx context.Context, assignmentID string, link crm.AssignmentCandidate) (bool, error)
	IsCandidateLinked(ctx context.Context, assignmentID, candidateID string) (bool, error)
	ListDocuments(ctx context.Context, candidateID string) ([]crm.DocumentItem, error)
	UploadDocument(ctx context.Context, candidateID, filename string, content []byte) error
	SetDefaultCV(ctx context.Context, candidateID, documentID string) error
}

//go:generate mockgen -destination=mocks/mock_collaborators.go -package=mocks -source=export.go Parser,DocumentStore,EntityResolver,Gateway

// Options are per-export flags.
type Options struct {
	// LinkToJob attaches the candidate to the configured assignment.
	LinkToJob bool
}

// Status is the overall outcome of one export.
type Status string

const (
	// StatusNew means the candidate was created remotely.
	StatusNew Status = "new"

	// StatusDuplicate means an existing remote person matched by name and
	// email was adopted as the canonical candidate.
	StatusDuplicate Status = "duplicate"

	// StatusReused means the candidate had already been exported and the
	// recorded remote id was reused.
	StatusReused Status = "reused"

	// StatusFailed means the export aborted before a remote candidate
	// existed.
	StatusFailed Status = "failed"
)

// StepResult is the outcome of one pipeline step. Failed steps carry the
// error, and Error mirrors its message for serialized reports; the export
// as a whole may still succeed in degraded form.
type StepResult struct {
	Step   string `json:"step"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
	Err    error  `json:"-"`
}

// Report is the aggregated outcome of one export.
type Report struct {
	Status            Status       `json:"status"`
	RemoteCandidateID string       `json:"remoteCandidateId,omitempty"`
	Steps             []StepResult `json:"steps"`
}

func (r *Report) step(name string, err error, detail string) {
	res := StepResult{Step: name, OK: err == nil, Detail: detail, Err: err}
	if err != nil {
		res.Error = err.Error()
	}
	r.Steps = append(r.Steps, res)
}

// ParseError means the CV parser produced no usable person data. It aborts
// the export before anything is sent to the CRM.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cv parsing failed: %s: %v", e.Reason, e.Cause)
	}
	return "cv parsing failed: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// normalizeWindow forces endDate after startDate. The CRM rejects inverted
// ranges, and parsed CVs produce them routinely.
func normalizeWindow(start, end time.Time, now time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = now
	}
	if !start.IsZero() && !start.Before(end) {
		end = now
	}
	return start, end
}

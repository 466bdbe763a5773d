package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/apphive/crm-handoff/internal/crm"
)

// propagateHistory submits standalone work and education history items. The
// first entry of each list is skipped: it is already folded into the
// candidate's default position (and the education list mirrors that rule).
// Items are independent, submitted through a bounded pool, and a failed
// item never stops the rest.
func (o *Orchestrator) propagateHistory(ctx context.Context, remoteID string, parsed *ParsedCandidate, report *Report, logger *slog.Logger) {
	positions := skipFirst(parsed.Positions)
	education := skipFirst(parsed.Education)

	if len(positions) == 0 && len(education) == 0 {
		report.step("history", nil, "nothing to submit")
		return
	}

	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.GetMaxWorkers())

	for _, pos := range positions {
		g.Go(func() error {
			if err := o.submitPosition(gctx, remoteID, pos); err != nil {
				failed.Add(1)
				logger.Warn("work history item failed", "job_title", pos.JobTitle, "error", err)
			}
			return nil
		})
	}
	for _, edu := range education {
		g.Go(func() error {
			if err := o.submitEducation(gctx, remoteID, edu); err != nil {
				failed.Add(1)
				logger.Warn("education history item failed", "subject", edu.Subject, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	total := len(positions) + len(education)
	detail := fmt.Sprintf("%d/%d items submitted", total-int(failed.Load()), total)
	report.step("history", nil, detail)
	logger.Info("history propagated", "submitted", total-int(failed.Load()), "failed", failed.Load())
}

func (o *Orchestrator) submitPosition(ctx context.Context, remoteID string, entry PositionEntry) error {
	if !crm.IsGUID(entry.CompanyID) {
		return fmt.Errorf("missing or invalid company id for %q", entry.CompanyName)
	}

	start, end := normalizeWindow(entry.StartDate, entry.EndDate, o.now())

	pos := crm.Position{
		JobTitle:    entry.JobTitle,
		Description: entry.Description,
		EndDate:     crm.FormatTime(end),
		Company:     crm.Ref{ID: entry.CompanyID},
	}
	if pos.JobTitle == "" {
		pos.JobTitle = "Unknown Job Title"
	}
	if !start.IsZero() {
		pos.StartDate = crm.FormatTime(start)
	}
	return o.gateway.AddPosition(ctx, remoteID, pos)
}

func (o *Orchestrator) submitEducation(ctx context.Context, remoteID string, entry EducationEntry) error {
	if !crm.IsGUID(entry.InstitutionID) {
		return fmt.Errorf("missing or invalid institution id for %q", entry.InstitutionName)
	}

	start, end := normalizeWindow(entry.StartDate, entry.EndDate, o.now())

	edu := crm.Education{
		Company:       crm.Ref{ID: entry.InstitutionID},
		Subject:       entry.Subject,
		Qualification: entry.Qualification,
		EndDate:       crm.FormatTime(end),
	}
	if edu.Subject == "" {
		edu.Subject = "Unknown Degree"
	}
	if !start.IsZero() {
		edu.StartDate = crm.FormatTime(start)
	}
	return o.gateway.AddEducation(ctx, remoteID, edu)
}

// skipFirst drops the first element when there is more than one. A single
// entry lives entirely in the default position and must not be submitted
// again.
func skipFirst[T any](items []T) []T {
	if len(items) <= 1 {
		return nil
	}
	return items[1:]
}

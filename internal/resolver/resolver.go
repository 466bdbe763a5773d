// Package resolver maps company and institution names from parsed CVs to
// CRM entity ids, creating entities that do not exist yet.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apphive/crm-handoff/internal/crm"
)

// Directory is the slice of the CRM gateway the resolver needs.
type Directory interface {
	SearchCompany(ctx context.Context, name string) (*crm.SearchItem, error)
	SearchInstitution(ctx context.Context, name string) (*crm.SearchItem, error)
	CreateCompany(ctx context.Context, company crm.CompanyCreate) (string, error)
	MarkCompanyAsPlaceOfStudy(ctx context.Context, companyID string) error
}

//go:generate mockgen -destination=mocks/mock_directory.go -package=mocks -source=resolver.go Directory

// Resolver finds or creates companies and educational institutions.
// Resolution always re-queries the remote system; there is no local cache.
type Resolver struct {
	dir    Directory
	logger *slog.Logger
}

// New creates a Resolver backed by dir.
func New(dir Directory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, logger: logger}
}

// Resolve returns the entity id for name, creating the entity when no match
// exists. An empty name resolves to an empty id without touching the remote
// system; the caller substitutes its configured default. Any id returned is
// guaranteed to match the CRM guid shape.
func (r *Resolver) Resolve(ctx context.Context, name string, isPlaceOfStudy bool) (string, error) {
	if name == "" {
		return "", nil
	}

	item, err := r.search(ctx, name, isPlaceOfStudy)
	if err != nil {
		return "", err
	}

	if item != nil {
		if !crm.IsGUID(item.ItemID) {
			return "", fmt.Errorf("search for %q returned malformed id %q", name, item.ItemID)
		}
		if isPlaceOfStudy && !item.IsPlaceOfStudy {
			// The flag only affects future institution searches. A
			// failure here must not block resolution.
			if err := r.dir.MarkCompanyAsPlaceOfStudy(ctx, item.ItemID); err != nil {
				r.logger.Warn("failed to flag company as place of study",
					"company", name, "id", item.ItemID, "error", err)
			}
		}
		r.logger.Debug("entity resolved", "name", name, "id", item.ItemID)
		return item.ItemID, nil
	}

	id, err := r.dir.CreateCompany(ctx, crm.CompanyCreate{
		CompanyName:    name,
		IsPlaceOfStudy: isPlaceOfStudy,
		IsClient:       !isPlaceOfStudy,
		IsSupplier:     false,
		IsPartner:      false,
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("entity created", "name", name, "id", id, "place_of_study", isPlaceOfStudy)
	return id, nil
}

// search queries the institution index first for places of study and falls
// back to the company index, which also returns companies not yet flagged.
func (r *Resolver) search(ctx context.Context, name string, isPlaceOfStudy bool) (*crm.SearchItem, error) {
	if isPlaceOfStudy {
		item, err := r.dir.SearchInstitution(ctx, name)
		if err != nil {
			return nil, err
		}
		if item != nil {
			// The institution index only lists flagged entities, so no
			// upgrade patch is needed for hits from it.
			item.IsPlaceOfStudy = true
			return item, nil
		}
	}
	return r.dir.SearchCompany(ctx, name)
}

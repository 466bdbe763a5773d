package crm

import (
	"context"
	"fmt"
	"net/url"
)

// SearchCompany runs a quicksearch for a company by name and returns the
// first result of type Companies, or nil when nothing matches. The endpoint
// returns mixed entity types, so results are filtered here.
func (c *Client) SearchCompany(ctx context.Context, name string) (*SearchItem, error) {
	return c.quicksearch(ctx, "/api/v1/quicksearch/companies", name)
}

// SearchInstitution runs a quicksearch for an educational institution.
// Institutions are company records flagged as places of study and come back
// with ItemType Companies like everything else.
func (c *Client) SearchInstitution(ctx context.Context, name string) (*SearchItem, error) {
	return c.quicksearch(ctx, "/api/v1/quicksearch/educationalorganisations", name)
}

func (c *Client) quicksearch(ctx context.Context, path, term string) (*SearchItem, error) {
	query := url.Values{"request.searchTerm": {term}}

	var items []SearchItem
	if err := c.getJSON(ctx, path, query, &items); err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ItemType == ItemTypeCompanies {
			return &items[i], nil
		}
	}
	return nil, nil
}

// CreateCompany creates a company entity and returns its id.
func (c *Client) CreateCompany(ctx context.Context, company CompanyCreate) (string, error) {
	var resp struct {
		ItemID string `json:"ItemId"`
	}
	if err := c.postJSON(ctx, "/api/v1/companies", company, &resp); err != nil {
		return "", err
	}
	if !IsGUID(resp.ItemID) {
		return "", fmt.Errorf("create company returned malformed id %q", resp.ItemID)
	}
	return resp.ItemID, nil
}

// MarkCompanyAsPlaceOfStudy flags an existing company as an educational
// institution so later institution searches can find it.
func (c *Client) MarkCompanyAsPlaceOfStudy(ctx context.Context, companyID string) error {
	payload := map[string]map[string]bool{
		"Fields": {"IsPlaceOfStudy": true},
	}
	return c.patchJSON(ctx, "/api/v1/companies/"+companyID, payload)
}

// Package parser adapts the CRM's CV parsing service to the export
// pipeline's domain model.
package parser

import (
	"context"
	"time"

	"github.com/apphive/crm-handoff/internal/crm"
	"github.com/apphive/crm-handoff/internal/export"
)

// CRMParser parses CVs through the CRM's own parsing endpoints. It
// satisfies export.Parser.
type CRMParser struct {
	client *crm.Client
}

// New creates a parser backed by the CRM gateway.
func New(client *crm.Client) *CRMParser {
	return &CRMParser{client: client}
}

// UploadAndParseCV submits the CV and returns the parse document id.
func (p *CRMParser) UploadAndParseCV(ctx context.Context, doc export.Document) (string, error) {
	return p.client.UploadCVForParsing(ctx, doc.Filename, doc.Content)
}

// GetParsedCVDetails fetches and maps the parsing result.
func (p *CRMParser) GetParsedCVDetails(ctx context.Context, documentID string) (*export.ParsedCandidate, error) {
	raw, err := p.client.ParsedCVDetails(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return mapParsed(raw), nil
}

func mapParsed(raw *crm.ParsedCV) *export.ParsedCandidate {
	parsed := &export.ParsedCandidate{
		Person: export.Person{
			FullName:   raw.Person.NameComponents.FullName,
			FirstName:  raw.Person.NameComponents.FirstName,
			FamilyName: raw.Person.NameComponents.FamilyName,
			Address: export.Address{
				FullAddress: raw.Person.Location.AddressComponents.FullAddress,
				Street:      raw.Person.Location.AddressComponents.Street,
				TownCity:    raw.Person.Location.AddressComponents.TownCity,
				Postcode:    raw.Person.Location.AddressComponents.Postcode,
				Country:     raw.Person.Location.AddressComponents.Country,
			},
		},
	}

	for _, email := range raw.Person.EmailAddresses {
		if email.ItemValue != "" {
			parsed.Person.Emails = append(parsed.Person.Emails, email.ItemValue)
		}
	}
	for _, phone := range raw.Person.PhoneNumbers {
		value := phone.ItemValue
		if value == "" {
			value = phone.FormattedValue
		}
		if value != "" {
			parsed.Person.Phones = append(parsed.Person.Phones, value)
		}
	}

	for _, pos := range raw.Positions {
		var suggested []string
		for _, sc := range pos.SuggestedCompanies {
			if sc.ID != "" {
				suggested = append(suggested, sc.ID)
			}
		}
		parsed.Positions = append(parsed.Positions, export.PositionEntry{
			JobTitle:            pos.JobTitle,
			Description:         pos.Description,
			StartDate:           parseTime(pos.StartDate),
			EndDate:             parseTime(pos.EndDate),
			CompanyName:         pos.Company.CompanyName,
			CompanyID:           pos.Company.ID,
			SuggestedCompanyIDs: suggested,
		})
	}
	for _, edu := range raw.Education {
		subject := edu.Subject
		if subject == "" {
			subject = edu.Qualification.DisplayTitle
		}
		parsed.Education = append(parsed.Education, export.EducationEntry{
			Subject:         subject,
			Qualification:   edu.Qualification.DisplayTitle,
			StartDate:       parseTime(edu.StartDate),
			EndDate:         parseTime(edu.EndDate),
			InstitutionName: edu.Company.CompanyName,
			InstitutionID:   edu.Company.ID,
		})
	}
	return parsed
}

// parseTime reads a CRM timestamp; malformed or absent values become the
// zero time, which downstream code treats as missing.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(crm.TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

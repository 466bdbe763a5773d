package export

import (
	"github.com/apphive/crm-handoff/internal/config"
	"github.com/apphive/crm-handoff/internal/crm"
)

// missingData marks contact fields the CV parser could not supply. The CRM
// rejects absent required fields, so every field gets a value.
const missingData = "missing data"

// buildCandidate assembles the remote creation payload from a resolved
// parse. The first position is folded into DefaultPosition; history
// propagation skips it to avoid a double submission. The record is built
// once per export attempt and not mutated afterwards.
func buildCandidate(parsed *ParsedCandidate, cfg config.ExportConfig) crm.Candidate {
	cand := crm.Candidate{
		NameComponents: crm.NameComponents{
			FullName:   parsed.Person.FullName,
			FirstName:  parsed.Person.FirstName,
			FamilyName: parsed.Person.FamilyName,
		},
		Owner:                crm.Ref{ID: cfg.OwnerID},
		CandidateStatus:      crm.Ref{ID: cfg.CandidateStatusID},
		IsCandidate:          true,
		IsPermanentCandidate: true,
		IsDoNotMailshot:      true,
		HomeAddress: crm.Address{
			FullAddress: orMissing(parsed.Person.Address.FullAddress),
			Street:      orMissing(parsed.Person.Address.Street),
			TownCity:    orMissing(parsed.Person.Address.TownCity),
			Postcode:    orMissing(parsed.Person.Address.Postcode),
			Country:     orMissing(parsed.Person.Address.Country),
		},
		EmailAddresses: []crm.EmailAddress{
			{
				IsPersonal:         true,
				IsVisibleAsDefault: true,
				FieldName:          "Email1Address",
				ItemValue:          parsed.Person.PrimaryEmail(),
			},
		},
		PhoneNumbers: []crm.PhoneNumber{
			{
				IsPrimary:          true,
				IsVisibleAsDefault: true,
				FieldName:          "MobilePhone",
				ItemValue:          parsed.Person.PrimaryPhone(),
				FormattedValue:     parsed.Person.PrimaryPhone(),
			},
		},
	}

	cand.DefaultPosition = defaultPosition(parsed.Positions, cfg)
	return cand
}

// defaultPosition synthesizes the CRM's required default position from the
// first parsed position. With no positions at all, a bare current position
// against the default company keeps the payload valid.
func defaultPosition(positions []PositionEntry, cfg config.ExportConfig) *crm.Position {
	pos := crm.Position{
		PositionStatus: "Current",
		PositionType:   &crm.PositionType{Value: 0},
		IsDefault:      true,
		Company:        crm.Ref{ID: cfg.DefaultCompanyID},
	}

	if len(positions) > 0 {
		first := positions[0]
		pos.JobTitle = first.JobTitle
		pos.Description = first.Description
		if !first.StartDate.IsZero() {
			pos.StartDate = crm.FormatTime(first.StartDate)
		}
		if crm.IsGUID(first.CompanyID) {
			pos.Company.ID = first.CompanyID
		}
	}
	return &pos
}

func orMissing(s string) string {
	if s == "" {
		return missingData
	}
	return s
}

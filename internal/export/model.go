package export

import "time"

// ParsedCandidate is the structured output of the CV parser. The
// orchestrator works on a mutable copy, attaching resolved entity ids to
// every position and education entry before assembly.
type ParsedCandidate struct {
	Person    Person
	Positions []PositionEntry
	Education []EducationEntry
}

// Person holds the parsed identity and contact data.
type Person struct {
	FullName   string
	FirstName  string
	FamilyName string
	Emails     []string
	Phones     []string
	Address    Address
}

// Address is the parsed postal address. Empty components are replaced with
// placeholders during assembly; the CRM rejects absent required fields.
type Address struct {
	FullAddress string
	Street      string
	TownCity    string
	Postcode    string
	Country     string
}

// PositionEntry is one work history item. CompanyID may arrive from the
// parser when the remote system already knows the employer; otherwise the
// entity resolution pass fills it in, preferring SuggestedCompanyIDs (the
// parser's own match guesses) over a fresh search by name.
type PositionEntry struct {
	JobTitle            string
	Description         string
	StartDate           time.Time
	EndDate             time.Time
	CompanyName         string
	CompanyID           string
	SuggestedCompanyIDs []string
}

// EducationEntry is one education history item. InstitutionID may arrive
// from the parser; otherwise the entity resolution pass fills it in.
type EducationEntry struct {
	Subject         string
	Qualification   string
	StartDate       time.Time
	EndDate         time.Time
	InstitutionName string
	InstitutionID   string
}

// PrimaryEmail returns the first parsed email, or empty.
func (p Person) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}

// PrimaryPhone returns the first parsed phone number, or empty.
func (p Person) PrimaryPhone() string {
	if len(p.Phones) == 0 {
		return ""
	}
	return p.Phones[0]
}

// Usable reports whether the parse produced enough person data to export.
func (c *ParsedCandidate) Usable() bool {
	return c != nil && (c.Person.FullName != "" || c.Person.PrimaryEmail() != "")
}

package crm

import "time"

// TimeLayout is the date-time format the CRM expects in payloads.
const TimeLayout = "2006-01-02T15:04:05"

// FormatTime renders t in the CRM wire format.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// Ref is the {"Id": ...} sub-object the CRM uses to reference entities.
type Ref struct {
	ID string `json:"Id"`
}

// SearchItem is one result of a quicksearch query. The endpoint returns
// mixed entity types; callers filter on ItemType.
type SearchItem struct {
	ItemID         string `json:"ItemId"`
	ItemType       string `json:"ItemType"`
	DisplayName    string `json:"DisplayName"`
	IsPlaceOfStudy bool   `json:"IsPlaceOfStudy,omitempty"`
}

// ItemTypeCompanies is the ItemType of company entities in search results.
// Educational institutions share it; they are companies flagged as places
// of study.
const ItemTypeCompanies = "Companies"

// CompanyCreate is the payload for creating a company entity.
type CompanyCreate struct {
	CompanyName    string `json:"CompanyName"`
	IsPlaceOfStudy bool   `json:"IsPlaceOfStudy"`
	IsClient       bool   `json:"IsClient"`
	IsSupplier     bool   `json:"IsSupplier"`
	IsPartner      bool   `json:"IsPartner"`
}

// NameComponents is the structured person name.
type NameComponents struct {
	FullName   string `json:"FullName"`
	FirstName  string `json:"FirstName,omitempty"`
	FamilyName string `json:"FamilyName,omitempty"`
	Title      string `json:"Title,omitempty"`
}

// EmailAddress is one entry of a person's email list.
type EmailAddress struct {
	IsPersonal                 bool   `json:"IsPersonal"`
	IsBusiness                 bool   `json:"IsBusiness"`
	PreferredDisplayOrderIndex int    `json:"PreferredDisplayOrderIndex"`
	IsVisibleAsDefault         bool   `json:"IsVisibleAsDefault"`
	FieldName                  string `json:"FieldName,omitempty"`
	ItemValue                  string `json:"ItemValue"`
}

// PhoneNumber is one entry of a person's phone list.
type PhoneNumber struct {
	IsPrimary                  bool   `json:"IsPrimary"`
	PreferredDisplayOrderIndex int    `json:"PreferredDisplayOrderIndex"`
	IsVisibleAsDefault         bool   `json:"IsVisibleAsDefault"`
	FieldName                  string `json:"FieldName,omitempty"`
	ItemValue                  string `json:"ItemValue"`
	FormattedValue             string `json:"FormattedValue,omitempty"`
}

// Address is the structured postal address.
type Address struct {
	FullAddress string `json:"FullAddress"`
	Street      string `json:"Street"`
	TownCity    string `json:"TownCity"`
	Postcode    string `json:"Postcode"`
	Country     string `json:"Country"`
}

// PositionType wraps the numeric position type enum.
type PositionType struct {
	Value int `json:"Value"`
}

// Position is a work history entry. DefaultPosition reuses the same shape
// with IsDefault set.
type Position struct {
	OptionalID       string        `json:"OptionalId,omitempty"`
	JobTitle         string        `json:"JobTitle"`
	Description      string        `json:"Description,omitempty"`
	StartDate        string        `json:"StartDate,omitempty"`
	EndDate          string        `json:"EndDate,omitempty"`
	PositionStatus   string        `json:"PositionStatus,omitempty"`
	PositionType     *PositionType `json:"PositionType,omitempty"`
	IsDefault        bool          `json:"IsDefault,omitempty"`
	Company          Ref           `json:"Company"`
	InternalComments string        `json:"InternalComments,omitempty"`
}

// Education is an education history entry.
type Education struct {
	Company       Ref    `json:"Company"`
	Subject       string `json:"Subject"`
	Qualification string `json:"Qualification,omitempty"`
	StartDate     string `json:"StartDate,omitempty"`
	EndDate       string `json:"EndDate,omitempty"`
}

// Candidate is the full person payload sent on creation.
type Candidate struct {
	OptionalID           string         `json:"OptionalId,omitempty"`
	NameComponents       NameComponents `json:"NameComponents"`
	DefaultPosition      *Position      `json:"DefaultPosition,omitempty"`
	Owner                Ref            `json:"Owner"`
	CandidateStatus      Ref            `json:"CandidateStatus"`
	IsCandidate          bool           `json:"IsCandidate"`
	IsPermanentCandidate bool           `json:"IsPermanentCandidate"`
	IsInterimCandidate   bool           `json:"IsInterimCandidate"`
	IsNonExecCandidate   bool           `json:"IsNonExecCandidate"`
	IsDoNotMailshot      bool           `json:"IsDoNotMailshot"`
	IsDoNotContact       bool           `json:"IsDoNotContact"`
	HomeAddress          Address        `json:"HomeAddress"`
	EmailAddresses       []EmailAddress `json:"EmailAddresses"`
	PhoneNumbers         []PhoneNumber  `json:"PhoneNumbers"`
}

// DuplicateMatch is one result of a duplicate-person query.
type DuplicateMatch struct {
	ItemID         string `json:"ItemId"`
	DisplaySummary string `json:"DisplaySummary"`
}

// StatusRef is one valid assignment-candidate status.
type StatusRef struct {
	ID          string `json:"Id"`
	DisplayText string `json:"DisplayText,omitempty"`
}

// AssignmentCandidate is the payload linking a candidate to an assignment.
type AssignmentCandidate struct {
	Candidate        Ref    `json:"Candidate"`
	RecordStatus     Ref    `json:"RecordStatus"`
	FitToProfile     string `json:"FitToProfile,omitempty"`
	InternalComments string `json:"InternalComments,omitempty"`
	ProgressNotes    string `json:"ProgressNotes,omitempty"`
}

// DocumentItem is one entry of a person's remote document list.
type DocumentItem struct {
	ItemID         string `json:"ItemId"`
	AttachmentName string `json:"AttachmentName"`
	DocumentType   string `json:"DocumentTypeDisplayText,omitempty"`
	CreatedBy      string `json:"CreatedBy,omitempty"`
}

// listQuery selects the columns of a list endpoint response.
type listQuery struct {
	Select []string `json:"Select"`
}

// itemList is the {"Items": [...]} envelope list endpoints return.
type itemList[T any] struct {
	Items []T `json:"Items"`
}

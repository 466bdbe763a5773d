package crm

import (
	"context"
	"fmt"
)

// ParsedCV is the wire shape of the CRM's CV parsing result.
type ParsedCV struct {
	Person    ParsedPerson      `json:"Person"`
	Positions []ParsedPosition  `json:"Positions"`
	Education []ParsedEducation `json:"Education"`
}

// ParsedPerson carries the identity and contact data extracted from a CV.
type ParsedPerson struct {
	NameComponents NameComponents `json:"NameComponents"`
	EmailAddresses []EmailAddress `json:"EmailAddresses"`
	PhoneNumbers   []PhoneNumber  `json:"PhoneNumbers"`
	Location       struct {
		AddressComponents Address `json:"AddressComponents"`
	} `json:"Location"`
}

// ParsedCompany is the employer or institution reference inside a parsed
// history entry. SuggestedCompanies carries the parser's own match guesses.
type ParsedCompany struct {
	ID          string `json:"Id,omitempty"`
	CompanyName string `json:"CompanyName"`
}

// ParsedPosition is one extracted work history entry.
type ParsedPosition struct {
	JobTitle           string          `json:"JobTitle"`
	Description        string          `json:"Description"`
	StartDate          string          `json:"StartDate"`
	EndDate            string          `json:"EndDate"`
	Company            ParsedCompany   `json:"Company"`
	SuggestedCompanies []ParsedCompany `json:"SuggestedCompanies,omitempty"`
}

// ParsedEducation is one extracted education history entry.
type ParsedEducation struct {
	Subject       string `json:"Subject"`
	Qualification struct {
		DisplayTitle string `json:"DisplayTitle"`
	} `json:"Qualification"`
	StartDate string        `json:"StartDate"`
	EndDate   string        `json:"EndDate"`
	Company   ParsedCompany `json:"Company"`
}

// UploadCVForParsing submits a CV document and returns the id under which
// the parsed result can be fetched.
func (c *Client) UploadCVForParsing(ctx context.Context, filename string, content []byte) (string, error) {
	if filename == "" || len(content) == 0 {
		return "", fmt.Errorf("cv upload requires a file name and non-empty content")
	}

	var resp struct {
		ItemID string `json:"ItemId"`
	}
	if err := c.postMultipart(ctx, "/api/v1/documents/parse", filename, content, &resp); err != nil {
		return "", err
	}
	if resp.ItemID == "" {
		return "", fmt.Errorf("cv parse upload returned no document id")
	}
	return resp.ItemID, nil
}

// ParsedCVDetails fetches the parsing result for a previously uploaded CV.
func (c *Client) ParsedCVDetails(ctx context.Context, documentID string) (*ParsedCV, error) {
	var resp ParsedCV
	if err := c.getJSON(ctx, "/api/v1/documents/"+documentID+"/parsed", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

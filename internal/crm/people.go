package crm

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

// CreateCandidate creates a person record and returns its id.
func (c *Client) CreateCandidate(ctx context.Context, cand Candidate) (string, error) {
	var resp struct {
		ID string `json:"Id"`
	}
	if err := c.postJSON(ctx, "/api/v1/people", cand, &resp); err != nil {
		return "", err
	}
	if !IsGUID(resp.ID) {
		return "", fmt.Errorf("create candidate returned malformed id %q", resp.ID)
	}
	return resp.ID, nil
}

// GetCandidate fetches the raw person record.
func (c *Client) GetCandidate(ctx context.Context, id string) (map[string]any, error) {
	var resp map[string]any
	if err := c.getJSON(ctx, "/api/v1/people/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// UpdateCandidateField patches a single field on a person record. HTML tags
// are stripped from the value before it is sent.
func (c *Client) UpdateCandidateField(ctx context.Context, id, field, value string) error {
	payload := map[string]map[string]string{
		"Fields": {field: htmlTagPattern.ReplaceAllString(value, "")},
	}
	return c.patchJSON(ctx, "/api/v1/people/"+id, payload)
}

// AddPosition appends a work history entry to a person record.
func (c *Client) AddPosition(ctx context.Context, candidateID string, pos Position) error {
	return c.postJSON(ctx, "/api/v1/people/"+candidateID+"/positions", pos, nil)
}

// AddEducation appends an education history entry to a person record.
func (c *Client) AddEducation(ctx context.Context, candidateID string, edu Education) error {
	return c.postJSON(ctx, "/api/v1/people/"+candidateID+"/education", edu, nil)
}

// FindDuplicatePerson searches for an existing person by name and email.
// Returns nil when no match is found. An empty email never matches anything
// remotely, so the call is rejected up front.
func (c *Client) FindDuplicatePerson(ctx context.Context, name, email string) (*DuplicateMatch, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required for duplicate search")
	}

	query := url.Values{
		"request.personName":   {name},
		"request.emailAddress": {email},
		"request.pageIndex":    {strconv.Itoa(0)},
		"request.pageSize":     {strconv.Itoa(10)},
	}

	var matches []DuplicateMatch
	if err := c.getJSON(ctx, "/api/v1/duplicates/people", query, &matches); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

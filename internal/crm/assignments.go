package crm

import (
	"context"
	"net/url"
)

// AssignmentCandidateStatuses fetches the set of record statuses a tenant
// accepts when linking a candidate to an assignment.
func (c *Client) AssignmentCandidateStatuses(ctx context.Context) ([]StatusRef, error) {
	var resp struct {
		Settings struct {
			ItemReferences []StatusRef `json:"ItemReferences"`
		} `json:"Settings"`
	}
	if err := c.getJSON(ctx, "/api/v1/settings/AssignmentCandidateStatus", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Settings.ItemReferences, nil
}

// LinkCandidate attaches a candidate to an assignment. The endpoint rejects
// JSON bodies, so the nested payload goes out form-encoded with bracketed
// keys. Returns true when the response echoes the candidate reference.
func (c *Client) LinkCandidate(ctx context.Context, assignmentID string, link AssignmentCandidate) (bool, error) {
	form := url.Values{
		"Candidate[Id]":    {link.Candidate.ID},
		"RecordStatus[Id]": {link.RecordStatus.ID},
	}
	if link.FitToProfile != "" {
		form.Set("FitToProfile", link.FitToProfile)
	}
	if link.InternalComments != "" {
		form.Set("InternalComments", link.InternalComments)
	}
	if link.ProgressNotes != "" {
		form.Set("ProgressNotes", link.ProgressNotes)
	}

	var resp struct {
		Candidate Ref `json:"Candidate"`
	}
	if err := c.postForm(ctx, "/api/v1/assignments/"+assignmentID+"/candidates", form, &resp); err != nil {
		return false, err
	}
	return resp.Candidate.ID != "", nil
}

// IsCandidateLinked reports whether a candidate already appears on an
// assignment's candidate list.
func (c *Client) IsCandidateLinked(ctx context.Context, assignmentID, candidateID string) (bool, error) {
	var resp itemList[SearchItem]
	body := listQuery{Select: []string{"ItemId"}}
	if err := c.postJSON(ctx, "/api/v1/assignments/"+assignmentID+"/candidates/list", body, &resp); err != nil {
		return false, err
	}
	for _, item := range resp.Items {
		if item.ItemID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

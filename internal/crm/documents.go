package crm

import (
	"context"
	"fmt"
	"net/http"
)

// ListDocuments fetches the documents attached to a person record.
func (c *Client) ListDocuments(ctx context.Context, candidateID string) ([]DocumentItem, error) {
	body := listQuery{Select: []string{
		"AttachmentName",
		"DocumentTypeDisplayText",
		"ExpirationDate",
		"CreatedBy",
	}}

	var resp itemList[DocumentItem]
	if err := c.postJSON(ctx, "/api/v1/people/"+candidateID+"/documents/list", body, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// UploadDocument attaches a file to a person record.
func (c *Client) UploadDocument(ctx context.Context, candidateID, filename string, content []byte) error {
	if filename == "" || len(content) == 0 {
		return fmt.Errorf("document upload requires a file name and non-empty content")
	}
	return c.postMultipart(ctx, "/api/v1/people/"+candidateID+"/document", filename, content, nil)
}

// SetDefaultCV marks an uploaded document as the person's default CV.
func (c *Client) SetDefaultCV(ctx context.Context, candidateID, documentID string) error {
	path := "/api/v1/people/" + candidateID + "/documents/" + documentID + "/defaultCv"
	return c.do(ctx, http.MethodPost, path, nil, "", nil, nil)
}

// Package docstore serves candidate files from a directory tree. Each
// candidate owns one subdirectory named after its id; every regular file in
// it is an exportable document.
package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apphive/crm-handoff/internal/export"
)

// ErrNotFound is returned when a candidate directory or document is absent.
var ErrNotFound = fmt.Errorf("document not found")

// FS reads candidate documents from the local filesystem. Document ids are
// "<candidateID>/<filename>" so a retry job can address a single file later.
type FS struct {
	root string
}

// New creates a store rooted at dir. The directory must already exist.
func New(dir string) (*FS, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", dir)
	}
	return &FS{root: dir}, nil
}

// GetCV returns the candidate's CV: the file whose name (without extension)
// is "cv", or the alphabetically first document when none is marked.
func (s *FS) GetCV(ctx context.Context, candidateID string) (export.Document, error) {
	docs, err := s.ListDocuments(ctx, candidateID)
	if err != nil {
		return export.Document{}, err
	}
	if len(docs) == 0 {
		return export.Document{}, fmt.Errorf("candidate %s has no documents: %w", candidateID, ErrNotFound)
	}
	for _, doc := range docs {
		base := strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename))
		if strings.EqualFold(base, "cv") {
			return doc, nil
		}
	}
	return docs[0], nil
}

// ListDocuments returns every document of a candidate, loaded into memory
// and sorted by filename.
func (s *FS) ListDocuments(ctx context.Context, candidateID string) ([]export.Document, error) {
	dir, err := s.candidateDir(candidateID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("candidate %s: %w", candidateID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list documents for %s: %w", candidateID, err)
	}

	var docs []export.Document
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		docs = append(docs, export.Document{
			ID:       candidateID + "/" + entry.Name(),
			Filename: entry.Name(),
			Content:  content,
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

// GetDocument loads one document by its "<candidateID>/<filename>" id.
func (s *FS) GetDocument(_ context.Context, id string) (export.Document, error) {
	candidateID, filename, ok := strings.Cut(id, "/")
	if !ok || candidateID == "" || filename == "" {
		return export.Document{}, fmt.Errorf("malformed document id %q", id)
	}

	dir, err := s.candidateDir(candidateID)
	if err != nil {
		return export.Document{}, err
	}
	path := filepath.Join(dir, filepath.Base(filename))

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return export.Document{}, fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return export.Document{}, fmt.Errorf("failed to read document %s: %w", id, err)
	}
	return export.Document{ID: id, Filename: filepath.Base(filename), Content: content}, nil
}

// candidateDir validates the candidate id and resolves its directory. Ids
// containing path separators are rejected to keep lookups inside the root.
func (s *FS) candidateDir(candidateID string) (string, error) {
	if candidateID == "" || candidateID == "." || candidateID == ".." ||
		strings.ContainsAny(candidateID, `/\`) || candidateID != filepath.Base(candidateID) {
		return "", fmt.Errorf("invalid candidate id %q", candidateID)
	}
	return filepath.Join(s.root, candidateID), nil
}

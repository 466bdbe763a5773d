package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphive/crm-handoff/internal/export"
	"github.com/apphive/crm-handoff/internal/state"
)

type fakeExporter struct {
	report    *export.Report
	exportErr error
	filesErr  error

	lastCandidate string
	lastOpts      export.Options
}

func (f *fakeExporter) ExportCandidate(_ context.Context, candidateID string, opts export.Options) (*export.Report, error) {
	f.lastCandidate = candidateID
	f.lastOpts = opts
	return f.report, f.exportErr
}

func (f *fakeExporter) ExportFiles(_ context.Context, candidateID string) error {
	f.lastCandidate = candidateID
	return f.filesErr
}

type fakeTokens struct {
	err error
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token", nil
}

func newTestServer(exp *fakeExporter, tokens *fakeTokens) *httptest.Server {
	return httptest.NewServer(NewServer(exp, tokens))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeExporter{}, &fakeTokens{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestExportCandidate(t *testing.T) {
	t.Parallel()

	t.Run("success returns report", func(t *testing.T) {
		t.Parallel()
		exp := &fakeExporter{report: &export.Report{
			Status:            export.StatusNew,
			RemoteCandidateID: "0e7f3f3a-1111-2222-3333-444455556666",
		}}
		server := newTestServer(exp, &fakeTokens{})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/v1/exports/local-1?linkToJob=true", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "local-1", exp.lastCandidate)
		assert.True(t, exp.lastOpts.LinkToJob)

		var report export.Report
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
		assert.Equal(t, export.StatusNew, report.Status)
	})

	t.Run("parse failure maps to 422", func(t *testing.T) {
		t.Parallel()
		exp := &fakeExporter{
			report:    &export.Report{Status: export.StatusFailed},
			exportErr: &export.ParseError{Reason: "no usable person data"},
		}
		server := newTestServer(exp, &fakeTokens{})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/v1/exports/local-1", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("remote failure maps to 502", func(t *testing.T) {
		t.Parallel()
		exp := &fakeExporter{
			report:    &export.Report{Status: export.StatusFailed},
			exportErr: errors.New("create failed"),
		}
		server := newTestServer(exp, &fakeTokens{})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/v1/exports/local-1", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestExportFiles(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		server := newTestServer(&fakeExporter{}, &fakeTokens{})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/v1/exports/local-1/files", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("unsynced candidate maps to 404", func(t *testing.T) {
		t.Parallel()
		exp := &fakeExporter{filesErr: state.ErrNotSynced}
		server := newTestServer(exp, &fakeTokens{})
		defer server.Close()

		resp, err := http.Post(server.URL+"/api/v1/exports/local-1/files", "", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCheckConnect(t *testing.T) {
	t.Parallel()

	t.Run("connected", func(t *testing.T) {
		t.Parallel()
		server := newTestServer(&fakeExporter{}, &fakeTokens{})
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/v1/connect/check")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, true, body["status"])
	})

	t.Run("auth failure", func(t *testing.T) {
		t.Parallel()
		server := newTestServer(&fakeExporter{}, &fakeTokens{err: errors.New("invalid_grant")})
		defer server.Close()

		resp, err := http.Get(server.URL + "/api/v1/connect/check")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, false, body["status"])
	})
}

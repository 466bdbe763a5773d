package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apphive/crm-handoff/internal/crm"
	"github.com/apphive/crm-handoff/internal/export"
)

type staticTokens string

func (s staticTokens) Token(_ context.Context) (string, error) {
	return string(s), nil
}

func TestUploadAndParseCV(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/documents/parse", r.URL.Path)

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "cv.pdf", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"ItemId": "parse-doc-1"})
	}))
	defer server.Close()

	p := New(crm.NewClient(server.URL, staticTokens("tok")))

	id, err := p.UploadAndParseCV(context.Background(), export.Document{
		Filename: "cv.pdf",
		Content:  []byte("%PDF-1.4 cv body"),
	})
	require.NoError(t, err)
	assert.Equal(t, "parse-doc-1", id)
}

func TestGetParsedCVDetails(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/documents/parse-doc-1/parsed", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Person": {
				"NameComponents": {"FullName": "Jane Porter", "FirstName": "Jane", "FamilyName": "Porter"},
				"EmailAddresses": [{"ItemValue": "jane@example.com"}, {"ItemValue": ""}],
				"PhoneNumbers": [{"ItemValue": "07700 900123"}, {"FormattedValue": "+44 20 7946 0958"}],
				"Location": {"AddressComponents": {"FullAddress": "1 Main St, Leeds", "TownCity": "Leeds", "Country": "UK"}}
			},
			"Positions": [{
				"JobTitle": "Engineer",
				"Description": "Built things",
				"StartDate": "2019-02-01T00:00:00",
				"EndDate": "not-a-date",
				"Company": {"Id": "aaaaaaaa-1111-2222-3333-444444444444", "CompanyName": "Acme Ltd"},
				"SuggestedCompanies": [
					{"CompanyName": "Acme Holdings"},
					{"Id": "bbbbbbbb-1111-2222-3333-444444444444", "CompanyName": "Acme Group"}
				]
			}],
			"Education": [{
				"Subject": "",
				"Qualification": {"DisplayTitle": "BSc Physics"},
				"StartDate": "2014-09-01T00:00:00",
				"EndDate": "2017-06-30T00:00:00",
				"Company": {"Id": "cccccccc-1111-2222-3333-444444444444", "CompanyName": "Leeds University"}
			}]
		}`))
	}))
	defer server.Close()

	p := New(crm.NewClient(server.URL, staticTokens("tok")))

	parsed, err := p.GetParsedCVDetails(context.Background(), "parse-doc-1")
	require.NoError(t, err)

	assert.Equal(t, "Jane Porter", parsed.Person.FullName)
	assert.Equal(t, []string{"jane@example.com"}, parsed.Person.Emails)
	assert.Equal(t, []string{"07700 900123", "+44 20 7946 0958"}, parsed.Person.Phones)
	assert.Equal(t, "Leeds", parsed.Person.Address.TownCity)

	require.Len(t, parsed.Positions, 1)
	pos := parsed.Positions[0]
	assert.Equal(t, "Engineer", pos.JobTitle)
	assert.Equal(t, "Acme Ltd", pos.CompanyName)
	assert.Equal(t, "aaaaaaaa-1111-2222-3333-444444444444", pos.CompanyID)
	assert.Equal(t, []string{"bbbbbbbb-1111-2222-3333-444444444444"}, pos.SuggestedCompanyIDs,
		"suggestions without an id are dropped")
	assert.Equal(t, time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC), pos.StartDate)
	assert.True(t, pos.EndDate.IsZero(), "unparseable end date should map to zero time")

	require.Len(t, parsed.Education, 1)
	edu := parsed.Education[0]
	assert.Equal(t, "BSc Physics", edu.Subject, "subject falls back to qualification title")
	assert.Equal(t, "BSc Physics", edu.Qualification)
	assert.Equal(t, "Leeds University", edu.InstitutionName)
	assert.Equal(t, "cccccccc-1111-2222-3333-444444444444", edu.InstitutionID)
}

func TestGetParsedCVDetails_Error(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "parse pending", http.StatusConflict)
	}))
	defer server.Close()

	p := New(crm.NewClient(server.URL, staticTokens("tok")))

	_, err := p.GetParsedCVDetails(context.Background(), "parse-doc-1")
	require.Error(t, err)
}

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

func testClient() *Client {
	return New(config.Scraper{
		UserAgent:    "medwatch-test/1.0",
		Timeout:      "5s",
		RequestDelay: "1ms",
	})
}

const guidelinePage = `<html>
<head><title>STI Treatment Guidelines</title></head>
<body>
<script>var tracking = 1;</script>
<div class="syndicate">
  <p>Recommended Regimens for Neurosyphilis.</p>
  <p>Last Updated: July 12, 2026</p>
</div>
<div class="sidebar">Navigation junk</div>
<table>
  <tr><th>Regimen</th><th>Dose</th></tr>
  <tr><td>Aqueous penicillin G</td><td>18-24 MU daily</td></tr>
</table>
</body></html>`

func TestGuidelineFetchExtractsContentTablesDate(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, guidelinePage)
	}))
	defer srv.Close()

	c := testClient()
	src := &config.Source{
		Name: "CDC STI Guidelines",
		Type: "cdc_guidelines",
		URL:  srv.URL,
		Selectors: map[string]string{
			"content": ".syndicate",
		},
	}

	payload, err := c.Fetch(context.Background(), "cdc_sti", src)
	require.NoError(t, err)
	assert.Equal(t, "medwatch-test/1.0", gotUA)
	assert.Equal(t, "cdc", payload.Source)
	assert.Equal(t, "STI Treatment Guidelines", payload.Title)
	assert.Contains(t, payload.Content, "Recommended Regimens for Neurosyphilis.")
	assert.NotContains(t, payload.Content, "Navigation junk")
	assert.NotContains(t, payload.Content, "tracking")
	assert.Equal(t, "July 12, 2026", payload.LastUpdated)

	require.Len(t, payload.Tables, 1)
	require.Len(t, payload.Tables[0], 2)
	assert.Equal(t, []string{"Regimen", "Dose"}, payload.Tables[0][0])
	assert.Equal(t, []string{"Aqueous penicillin G", "18-24 MU daily"}, payload.Tables[0][1])
	assert.False(t, payload.FetchedAt.IsZero())
}

func TestGuidelineFetchFallsBackToFullPageText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Whole page text.</p></body></html>`)
	}))
	defer srv.Close()

	c := testClient()
	payload, err := c.Fetch(context.Background(), "cdc_plain", &config.Source{Type: "cdc", URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, payload.Content, "Whole page text.")
}

const alertPage = `<html><body>
<div class="views-row">
  <a href="/alert/1">FDA warns about penicillin shortage affecting treatment</a>
</div>
<div class="views-row">
  <a href="/alert/2">Unrelated device recall notice</a>
</div>
</body></html>`

func TestAlertFetchFiltersByDrugKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, alertPage)
	}))
	defer srv.Close()

	c := testClient()
	src := &config.Source{
		Type:         "fda_alerts",
		URL:          srv.URL,
		DrugKeywords: []string{"Penicillin", "doxycycline"},
	}

	payload, err := c.Fetch(context.Background(), "fda_safety", src)
	require.NoError(t, err)
	assert.Equal(t, "fda", payload.Source)
	assert.Equal(t, []string{"Penicillin", "doxycycline"}, payload.DrugsMonitored)

	require.Len(t, payload.Alerts, 1)
	alert := payload.Alerts[0]
	assert.Contains(t, alert.Title, "penicillin shortage")
	assert.Equal(t, []string{"Penicillin"}, alert.MentionedDrugs)
	assert.Equal(t, srv.URL+"/alert/1", alert.URL)
}

func TestAlertFetchNoMatchesYieldsEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, alertPage)
	}))
	defer srv.Close()

	c := testClient()
	src := &config.Source{Type: "fda", URL: srv.URL, DrugKeywords: []string{"ceftriaxone"}}

	payload, err := c.Fetch(context.Background(), "fda_safety", src)
	require.NoError(t, err)
	assert.Empty(t, payload.Alerts)
	assert.True(t, payload.Empty())
}

func TestLiteratureFetchSearchAndSummaries(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		assert.Equal(t, "neurosyphilis treatment", r.URL.Query().Get("term"))
		assert.Equal(t, "2", r.URL.Query().Get("retmax"))
		fmt.Fprint(w, `{"esearchresult":{"idlist":["111","222"]}}`)
	})
	mux.HandleFunc("/esummary.fcgi", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "111,222", r.URL.Query().Get("id"))
		fmt.Fprint(w, `{"result":{
			"uids":["111","222"],
			"111":{"uid":"111","title":"Ceftriaxone for neurosyphilis","pubdate":"2026 Jun",
				"authors":[{"name":"Smith J"},{"name":"Lee K"},{"name":"Park M"},{"name":"Cho R"}]},
			"222":{"uid":"222","title":"Penicillin desensitization","pubdate":"2026 May","authors":[]}
		}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient()
	c.literature = &literatureFetcher{client: c, baseURL: srv.URL}

	src := &config.Source{
		Type:        "pubmed_search",
		URL:         "https://pubmed.ncbi.nlm.nih.gov/",
		SearchQuery: "neurosyphilis treatment",
		MaxResults:  2,
	}

	payload, err := c.Fetch(context.Background(), "pubmed_neuro", src)
	require.NoError(t, err)
	assert.Equal(t, "pubmed", payload.Source)
	assert.Equal(t, "neurosyphilis treatment", payload.Query)

	require.Len(t, payload.Articles, 2)
	first := payload.Articles[0]
	assert.Equal(t, "111", first.PMID)
	assert.Equal(t, "Ceftriaxone for neurosyphilis", first.Title)
	assert.Equal(t, []string{"Smith J", "Lee K", "Park M"}, first.Authors)
	assert.Equal(t, "2026 Jun", first.PublishedDate)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/111/", first.URL)
}

func TestLiteratureFetchEmptyResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/esearch.fcgi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"esearchresult":{"idlist":[]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient()
	c.literature = &literatureFetcher{client: c, baseURL: srv.URL}

	payload, err := c.Fetch(context.Background(), "pubmed_neuro", &config.Source{
		Type: "pubmed", URL: srv.URL, SearchQuery: "nothing",
	})
	require.NoError(t, err)
	assert.Empty(t, payload.Articles)
	assert.True(t, payload.Empty())
}

func TestUnknownSourceTypeIsConfigError(t *testing.T) {
	c := testClient()
	_, err := c.Fetch(context.Background(), "mystery", &config.Source{Type: "gopher", URL: "http://x"})
	require.Error(t, err)

	var cfgErr *types.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "gopher", cfgErr.ID)
}

func TestHTTPErrorWrappedAsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient()
	_, err := c.Fetch(context.Background(), "cdc_sti", &config.Source{Type: "cdc", URL: srv.URL})
	require.Error(t, err)

	var fetchErr *types.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "cdc_sti", fetchErr.SourceID)
}

func TestRequestDelaySpacesFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>ok</body></html>`)
	}))
	defer srv.Close()

	c := New(config.Scraper{RequestDelay: "50ms", Timeout: "5s"})
	src := &config.Source{Type: "cdc", URL: srv.URL}

	start := time.Now()
	_, err := c.Fetch(context.Background(), "a", src)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "b", src)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

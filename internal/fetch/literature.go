package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

const eutilsBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

const defaultMaxResults = 10

// literatureFetcher searches an eutils-style literature API. A search call
// returns ids; a summary call resolves them into article records.
type literatureFetcher struct {
	client  *Client
	baseURL string
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type esummaryDoc struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	PubDate string `json:"pubdate"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

func (f *literatureFetcher) Fetch(ctx context.Context, sourceID string, src *config.Source) (*types.Payload, error) {
	maxResults := src.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	ids, err := f.search(ctx, src.SearchQuery, maxResults)
	if err != nil {
		return nil, err
	}

	payload := &types.Payload{
		Source:    "pubmed",
		URL:       src.URL,
		Query:     src.SearchQuery,
		FetchedAt: f.client.now(),
	}
	if len(ids) == 0 {
		return payload, nil
	}

	articles, err := f.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	payload.Articles = articles
	return payload, nil
}

func (f *literatureFetcher) search(ctx context.Context, query string, maxResults int) ([]string, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("term", query)
	q.Set("retmax", strconv.Itoa(maxResults))
	q.Set("sort", "date")
	q.Set("retmode", "json")

	body, err := f.client.get(ctx, f.baseURL+"/esearch.fcgi?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return resp.Result.IDList, nil
}

func (f *literatureFetcher) summaries(ctx context.Context, ids []string) ([]types.Article, error) {
	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(ids, ","))
	q.Set("retmode", "json")

	body, err := f.client.get(ctx, f.baseURL+"/esummary.fcgi?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp esummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing summary response: %w", err)
	}

	var articles []types.Article
	for _, id := range ids {
		raw, ok := resp.Result[id]
		if !ok {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			// Malformed entries are skipped, not fatal.
			continue
		}

		var authors []string
		for i, a := range doc.Authors {
			if i == 3 {
				break
			}
			authors = append(authors, a.Name)
		}

		articles = append(articles, types.Article{
			PMID:          id,
			Title:         doc.Title,
			Authors:       authors,
			PublishedDate: doc.PubDate,
			URL:           fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", id),
		})
	}
	return articles, nil
}

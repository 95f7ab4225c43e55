package fetch

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

// defaultAlertSelector matches the listing markup used by the safety-alert
// feeds this was built against.
const defaultAlertSelector = ".views-row"

// alertFetcher handles alert-feed sources. Only entries mentioning at least
// one configured drug keyword are kept.
type alertFetcher struct {
	client *Client
}

func (f *alertFetcher) Fetch(ctx context.Context, sourceID string, src *config.Source) (*types.Payload, error) {
	body, err := f.client.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	hint := src.Selectors["alerts"]
	if hint == "" {
		hint = defaultAlertSelector
	}

	base, err := url.Parse(src.URL)
	if err != nil {
		return nil, err
	}

	var alerts []types.Alert
	for _, node := range nodesWithClass(root, selectorClasses(hint)) {
		text := nodeText(node)
		lower := strings.ToLower(text)

		var mentioned []string
		for _, kw := range src.DrugKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				mentioned = append(mentioned, kw)
			}
		}
		if len(mentioned) == 0 {
			continue
		}

		alertURL := src.URL
		if href, ok := firstLink(node); ok {
			if ref, err := url.Parse(href); err == nil {
				alertURL = base.ResolveReference(ref).String()
			}
		}

		alerts = append(alerts, types.Alert{
			Title:          truncateRunes(text, 200),
			URL:            alertURL,
			MentionedDrugs: mentioned,
			FullText:       text,
		})
	}

	return &types.Payload{
		Source:         "fda",
		URL:            src.URL,
		Alerts:         alerts,
		DrugsMonitored: src.DrugKeywords,
		FetchedAt:      f.client.now(),
	}, nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

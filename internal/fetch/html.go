package fetch

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/medkitt/medwatch/internal/config"
	"github.com/medkitt/medwatch/internal/types"
)

// lastUpdatedRe scans flattened page text for a revision date when no
// dedicated selector yields one.
var lastUpdatedRe = regexp.MustCompile(`(?i)last\s+(?:updated|reviewed)[:\s]+([A-Za-z]+ \d{1,2},? \d{4})`)

// guidelineFetcher handles guideline-page sources: full text, tables, title,
// and a best-effort last-updated date.
type guidelineFetcher struct {
	client *Client
}

func (f *guidelineFetcher) Fetch(ctx context.Context, sourceID string, src *config.Source) (*types.Payload, error) {
	body, err := f.client.get(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	content := ""
	if classes := selectorClasses(src.Selectors["content"]); len(classes) > 0 {
		var parts []string
		for _, node := range nodesWithClass(root, classes) {
			if t := nodeText(node); t != "" {
				parts = append(parts, t)
			}
		}
		content = strings.Join(parts, " ")
	}
	if content == "" {
		content = nodeText(root)
	}

	var tables [][][]string
	for _, tbl := range nodesNamed(root, "table") {
		if rows := parseTable(tbl); len(rows) > 0 {
			tables = append(tables, rows)
		}
	}

	lastUpdated := ""
	if classes := selectorClasses(src.Selectors["updates"]); len(classes) > 0 {
		if nodes := nodesWithClass(root, classes); len(nodes) > 0 {
			lastUpdated = nodeText(nodes[0])
		}
	}
	if lastUpdated == "" {
		if m := lastUpdatedRe.FindStringSubmatch(content); m != nil {
			lastUpdated = m[1]
		}
	}

	return &types.Payload{
		Source:      "cdc",
		URL:         src.URL,
		Title:       pageTitle(root),
		Content:     content,
		Tables:      tables,
		LastUpdated: lastUpdated,
		FetchedAt:   f.client.now(),
	}, nil
}

// parseTable flattens a table node into rows of cell text. Rows without
// cells are dropped.
func parseTable(table *html.Node) [][]string {
	var rows [][]string
	for _, tr := range nodesNamed(table, "tr") {
		var cells []string
		for _, cell := range nodesNamedAny(tr, "td", "th") {
			cells = append(cells, nodeText(cell))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

// nodeText flattens all text under a node, skipping script and style
// subtrees, with single-space separators.
func nodeText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		if node.Type == html.TextNode {
			if t := strings.TrimSpace(node.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func pageTitle(root *html.Node) string {
	titles := nodesNamed(root, "title")
	if len(titles) == 0 {
		return ""
	}
	return nodeText(titles[0])
}

// nodesNamed collects element nodes with the given tag name, in document
// order.
func nodesNamed(root *html.Node, name string) []*html.Node {
	return nodesNamedAny(root, name)
}

func nodesNamedAny(root *html.Node, names ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, name := range names {
				if n.Data == name {
					out = append(out, n)
					break
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// nodesWithClass collects element nodes whose class attribute contains any of
// the given class names.
func nodesWithClass(root *html.Node, classes []string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasAnyClass(n, classes) {
			out = append(out, n)
			// Nested matches would duplicate text.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasAnyClass(n *html.Node, classes []string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, have := range strings.Fields(attr.Val) {
			for _, want := range classes {
				if have == want {
					return true
				}
			}
		}
	}
	return false
}

// firstLink returns the href of the first anchor under the node, resolved by
// the caller.
func firstLink(n *html.Node) (string, bool) {
	for _, a := range nodesNamed(n, "a") {
		for _, attr := range a.Attr {
			if attr.Key == "href" && attr.Val != "" {
				return attr.Val, true
			}
		}
	}
	return "", false
}

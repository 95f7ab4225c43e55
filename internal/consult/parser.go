package consult

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/medkitt/medwatch/internal/types"
)

// The consult artifact format is a legacy semi-structured text format owned
// by the front-end. This parser is a tolerant adapter over it: nodes are
// recovered by scanning for id anchors followed by optional fields, and
// anything malformed or partially matching is silently omitted rather than
// rejected. The structured Consult, not the text, is the in-memory model.

var (
	nodeAnchorRe = regexp.MustCompile(`\{\s*id:\s*['"]([^'"]+)['"]`)
	nodeTypeRe   = regexp.MustCompile(`type:\s*['"](\w+)['"]`)
	nodeTitleRe  = regexp.MustCompile(`title:\s*['"]([^'"]+)['"]`)
	nodeBodyRe   = regexp.MustCompile(`body:\s*['"]([^'"]+)['"]`)
	citationRe   = regexp.MustCompile(`citation:\s*\[([^\]]+)\]`)
	versionRe    = regexp.MustCompile(`version:\s*['"]([\d.]+)['"]`)
)

// ParseNodes extracts decision-tree nodes from artifact text by anchor
// scanning.
func ParseNodes(content string) []types.ConsultNode {
	var nodes []types.ConsultNode

	for _, m := range nodeAnchorRe.FindAllStringSubmatchIndex(content, -1) {
		id := content[m[2]:m[3]]

		nodeStart := m[0]
		nodeEnd := strings.Index(content[nodeStart:], "},")
		if nodeEnd == -1 {
			nodeEnd = strings.Index(content[nodeStart:], "}\n")
		}
		if nodeEnd == -1 {
			continue
		}
		nodeContent := content[nodeStart : nodeStart+nodeEnd+1]

		node := types.ConsultNode{ID: id}
		if tm := nodeTypeRe.FindStringSubmatch(nodeContent); tm != nil {
			node.Type = tm[1]
		}
		if tm := nodeTitleRe.FindStringSubmatch(nodeContent); tm != nil {
			node.Title = tm[1]
		}
		if bm := nodeBodyRe.FindStringSubmatch(nodeContent); bm != nil {
			node.Body = bm[1]
		}
		if cm := citationRe.FindStringSubmatch(nodeContent); cm != nil {
			node.Citations = parseCitations(cm[1])
		}

		nodes = append(nodes, node)
	}

	return nodes
}

// ParseVersion extracts the artifact's version string. The version is
// operator-controlled and treated as opaque; missing versions default to
// "1.0".
func ParseVersion(content string) string {
	if m := versionRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return "1.0"
}

// IsNovelBlock reports whether a structural block's text is absent from every
// existing node body. The comparison is a leading-fragment substring check:
// cheap, order-insensitive, and prone to false negatives, but stable.
func IsNovelBlock(nodes []types.ConsultNode, blockText string) bool {
	fragment := strings.ToLower(blockText)
	if r := []rune(fragment); len(r) > 100 {
		fragment = string(r[:100])
	}
	for _, node := range nodes {
		if strings.Contains(strings.ToLower(node.Body), fragment) {
			return false
		}
	}
	return true
}

func parseCitations(list string) []int {
	var citations []int
	for _, part := range strings.Split(list, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		citations = append(citations, n)
	}
	return citations
}

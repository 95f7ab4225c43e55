package classify

import (
	"regexp"
	"strings"

	"github.com/medkitt/medwatch/internal/consult"
	"github.com/medkitt/medwatch/internal/types"
)

// Signal types recognized by update rules.
const (
	SignalTreatmentTable  = "treatment_table"
	SignalGuidelineUpdate = "guideline_update"
	SignalKeyword         = "keyword"
)

// treatmentHeaderKeywords mark a table as treatment-related when any appears
// in its header row.
var treatmentHeaderKeywords = []string{
	"treatment", "regimen", "therapy", "drug", "dose", "duration",
}

var revisionDateRes = []*regexp.Regexp{
	regexp.MustCompile(`[Ll]ast [Uu]pdated?[:\s]+([A-Za-z]+ \d{1,2},? \d{4})`),
	regexp.MustCompile(`[Rr]evised?[:\s]+([A-Za-z]+ \d{1,2},? \d{4})`),
	regexp.MustCompile(`[Uu]pdated?[:\s]+([A-Za-z]+ \d{4})`),
}

// changeKeywords flag likely guideline revisions. Order is fixed so the
// resulting marker list is reproducible run to run.
var changeKeywords = []string{
	"recommendation", "guideline", "updated", "revised", "changed",
	"new recommendation", "key changes", "what's new",
}

// TreatmentTables extracts the treatment-related structural blocks from a
// payload's raw tables.
func TreatmentTables(payload *types.Payload) []types.Table {
	var tables []types.Table
	for _, raw := range payload.Tables {
		if len(raw) == 0 {
			continue
		}
		header := strings.ToLower(strings.Join(raw[0], " "))
		matched := false
		for _, kw := range treatmentHeaderKeywords {
			if strings.Contains(header, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		table := types.Table{Headers: raw[0]}
		if len(raw) > 1 {
			table.Rows = raw[1:]
		}
		tables = append(tables, table)
	}
	return tables
}

// UpdateMarkers scans text for revision dates and guideline-change keywords,
// each with a slice of surrounding context.
func UpdateMarkers(text string) []types.UpdateMarker {
	var markers []types.UpdateMarker
	runes := []rune(text)
	lower := strings.ToLower(text)

	for _, re := range revisionDateRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			date := m[1]
			idx := runeIndex(text, date)
			markers = append(markers, types.UpdateMarker{
				Type:    "revision_date",
				Value:   date,
				Context: runeSlice(runes, idx-50, idx+len([]rune(date))+50),
			})
		}
	}

	for _, kw := range changeKeywords {
		idx := strings.Index(lower, kw)
		if idx < 0 {
			continue
		}
		ridx := len([]rune(lower[:idx]))
		markers = append(markers, types.UpdateMarker{
			Type:    "guideline_change",
			Value:   kw,
			Context: runeSlice(runes, ridx-100, ridx+200),
		})
	}

	return markers
}

// Diff compares a fetched payload against a consult's current state and
// returns the structured differences: structural blocks absent from the
// consult, keyword matches, and revision markers.
func Diff(c *types.Consult, payload *types.Payload) types.ProposedChanges {
	var diff types.ProposedChanges

	for _, table := range TreatmentTables(payload) {
		var rowText []string
		for _, row := range table.Rows {
			rowText = append(rowText, strings.Join(row, " "))
		}
		if consult.IsNovelBlock(c.Nodes, strings.Join(rowText, " ")) {
			diff.NewTables = append(diff.NewTables, table)
		}
	}

	text := strings.ToLower(payload.Text())
	for _, kw := range c.Keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			diff.KeywordMatches = append(diff.KeywordMatches, kw)
		}
	}

	diff.Markers = UpdateMarkers(payload.Text())

	return diff
}

func runeIndex(s, substr string) int {
	idx := strings.Index(s, substr)
	if idx < 0 {
		return 0
	}
	return len([]rune(s[:idx]))
}

func runeSlice(runes []rune, lo, hi int) string {
	if lo < 0 {
		lo = 0
	}
	if hi > len(runes) {
		hi = len(runes)
	}
	if lo >= hi {
		return ""
	}
	return string(runes[lo:hi])
}

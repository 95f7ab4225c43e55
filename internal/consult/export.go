package consult

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/medkitt/medwatch/internal/types"
)

//go:embed export_schema.json
var exportSchema string

// exportDoc is the canonical export form consumed by the PWA. The field set
// is fixed; node_count appears only in standalone exports.
type exportDoc struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	LastUpdated string              `json:"last_updated"`
	NodeCount   *int                `json:"node_count,omitempty"`
	Nodes       []types.ConsultNode `json:"nodes"`
	Keywords    []string            `json:"keywords"`
}

func buildExportDoc(consult *types.Consult, now time.Time, withNodeCount bool) exportDoc {
	nodes := consult.Nodes
	if nodes == nil {
		nodes = []types.ConsultNode{}
	}
	keywords := consult.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	doc := exportDoc{
		ID:          consult.ID,
		Name:        consult.Name,
		Version:     consult.Version,
		LastUpdated: now.Format(time.RFC3339),
		Nodes:       nodes,
		Keywords:    keywords,
	}
	if withNodeCount {
		count := len(nodes)
		doc.NodeCount = &count
	}
	return doc
}

// validateExport checks an export document against the embedded schema.
// Schema violations are returned as messages; a non-nil error means the
// validation itself could not run.
func validateExport(doc exportDoc) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(exportSchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}

package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
)

//go:embed index.html.tmpl
var indexSource string

var indexTemplate = template.Must(template.New("index").Parse(indexSource))

// Index renders layout as a standalone HTML page. Image sources stay
// relative, so the page must be served from the results root.
func Index(layout Layout) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, layout); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	return buf.Bytes(), nil
}

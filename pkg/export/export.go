// Package export renders session documents in several formats.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/bl791/chat-logger/pkg/session"
)

// Exporter writes one session document to w
type Exporter interface {
	Export(doc *session.Document, w io.Writer) error
	Extension() string
}

var exporters = map[string]func() Exporter{
	"json":     func() Exporter { return &JSONExporter{} },
	"jsonl":    func() Exporter { return &JSONLExporter{} },
	"yaml":     func() Exporter { return &YAMLExporter{} },
	"md":       func() Exporter { return &MarkdownExporter{} },
	"markdown": func() Exporter { return &MarkdownExporter{} },
	"text":     func() Exporter { return &TextExporter{} },
}

// NewExporter returns the exporter for format
func NewExporter(format string) (Exporter, error) {
	ctor, ok := exporters[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(Formats(), ", "))
	}
	return ctor(), nil
}

// Formats lists the accepted format names
func Formats() []string {
	names := make([]string, 0, len(exporters))
	for name := range exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package export

import (
	"io"

	"github.com/bl791/chat-logger/pkg/session"
	"gopkg.in/yaml.v3"
)

// YAMLExporter exports documents in YAML format
type YAMLExporter struct{}

func (e *YAMLExporter) Export(doc *session.Document, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(doc)
}

func (e *YAMLExporter) Extension() string {
	return "yaml"
}

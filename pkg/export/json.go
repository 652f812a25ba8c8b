package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bl791/chat-logger/pkg/session"
)

// JSONExporter writes the document as indented JSON, the same shape as the
// file on disk.
type JSONExporter struct{}

func (e *JSONExporter) Export(doc *session.Document, w io.Writer) error {
	data, err := session.EncodeDocument(doc, true)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func (e *JSONExporter) Extension() string {
	return "json"
}

// JSONLExporter writes one message per line
type JSONLExporter struct{}

func (e *JSONLExporter) Export(doc *session.Document, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, msg := range doc.Messages {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
	}

	return nil
}

func (e *JSONLExporter) Extension() string {
	return "jsonl"
}

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidDocument is returned when a session file does not match DocumentSchema.
var ErrInvalidDocument = errors.New("invalid session document")

// Document is the persisted form of a session.
type Document struct {
	Server       string      `json:"server" yaml:"server"`
	SessionID    string      `json:"sessionId" yaml:"sessionId"`
	SessionStart string      `json:"sessionStart" yaml:"sessionStart"`
	LastUpdated  string      `json:"lastUpdated" yaml:"lastUpdated"`
	MessageCount int         `json:"messageCount" yaml:"messageCount"`
	Messages     []ChatEntry `json:"messages" yaml:"messages"`
}

// DocumentSchema is the JSON schema every session file satisfies.
const DocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["server", "sessionId", "sessionStart", "lastUpdated", "messageCount", "messages"],
  "properties": {
    "server": {"type": "string", "minLength": 1},
    "sessionId": {"type": "string", "minLength": 1},
    "sessionStart": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2} \\d{2}:\\d{2}:\\d{2}$"},
    "lastUpdated": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2} \\d{2}:\\d{2}:\\d{2}$"},
    "messageCount": {"type": "integer", "minimum": 0},
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["timestamp", "epochMillis", "senderUuid", "senderName", "message"],
        "properties": {
          "timestamp": {"type": "string"},
          "epochMillis": {"type": "integer"},
          "senderUuid": {"type": "string"},
          "senderName": {"type": "string"},
          "message": {"type": "string"}
        }
      }
    }
  }
}`

var documentSchemaLoader = gojsonschema.NewStringLoader(DocumentSchema)

// EncodeDocument serializes a document, indented with two spaces when pretty is set.
func EncodeDocument(doc *Document, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// ValidateDocument checks raw JSON against DocumentSchema.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(documentSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			msgs = append(msgs, resultErr.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	return nil
}

// ParseDocument validates and decodes a session document.
func ParseDocument(data []byte) (*Document, error) {
	if err := ValidateDocument(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse session document: %w", err)
	}

	if doc.MessageCount != len(doc.Messages) {
		return nil, fmt.Errorf("%w: messageCount %d does not match %d messages",
			ErrInvalidDocument, doc.MessageCount, len(doc.Messages))
	}

	return &doc, nil
}

// LoadDocument reads and parses the session file at path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return doc, nil
}

package export

import (
	"fmt"
	"io"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/charmbracelet/lipgloss"
)

// TextExporter prints a human readable transcript. Colors are only emitted
// when w is a terminal that supports them.
type TextExporter struct{}

func (e *TextExporter) Export(doc *session.Document, w io.Writer) error {
	r := lipgloss.NewRenderer(w)

	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	metaStyle := r.NewStyle().Foreground(lipgloss.Color("243"))
	timestampStyle := r.NewStyle().Foreground(lipgloss.Color("240"))
	senderStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))

	_, _ = fmt.Fprintln(w, headerStyle.Render(doc.Server))
	_, _ = fmt.Fprintln(w, metaStyle.Render(fmt.Sprintf("session %s, started %s, updated %s, %d messages",
		doc.SessionID, doc.SessionStart, doc.LastUpdated, doc.MessageCount)))

	if len(doc.Messages) > 0 {
		_, _ = fmt.Fprintln(w)
	}

	for _, msg := range doc.Messages {
		_, err := fmt.Fprintf(w, "%s %s %s\n",
			timestampStyle.Render("["+msg.Timestamp+"]"),
			senderStyle.Render(msg.SenderName+":"),
			msg.Text,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *TextExporter) Extension() string {
	return "txt"
}

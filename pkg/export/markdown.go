package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/bl791/chat-logger/pkg/session"
)

// MarkdownExporter exports documents as a Markdown transcript
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(doc *session.Document, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", escapeMarkdown(doc.Server))
	_, _ = fmt.Fprintf(w, "**Session:** %s  \n", doc.SessionID)
	_, _ = fmt.Fprintf(w, "**Started:** %s  \n", doc.SessionStart)
	_, _ = fmt.Fprintf(w, "**Last updated:** %s  \n", doc.LastUpdated)
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", doc.MessageCount)

	if len(doc.Messages) == 0 {
		return nil
	}

	_, _ = fmt.Fprintf(w, "---\n\n")

	for _, msg := range doc.Messages {
		_, err := fmt.Fprintf(w, "- `%s` **%s:** %s\n",
			msg.Timestamp, escapeMarkdown(msg.SenderName), escapeMarkdown(msg.Text))
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"\n", " ",
)

// Chat text is a single line; emphasis characters are escaped so player
// text renders verbatim.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

package cli

import (
	"github.com/bl791/chat-logger/pkg/export"
	"github.com/bl791/chat-logger/pkg/session"
	"github.com/spf13/cobra"
)

var (
	showFormat string
)

var showCmd = &cobra.Command{
	Use:   "show <session-file>",
	Short: "Print a session transcript",
	Long:  `Validate a session document and print its messages.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", "text", "output format (text, json, jsonl, yaml, md)")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	exporter, err := export.NewExporter(showFormat)
	if err != nil {
		return err
	}

	doc, err := session.LoadDocument(args[0])
	if err != nil {
		return err
	}

	return exporter.Export(doc, cmd.OutOrStdout())
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bl791/chat-logger/pkg/export"
	"github.com/bl791/chat-logger/pkg/session"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export [destination]",
	Short: "Export sessions to another format",
	Long: `Export every session (or one destination's sessions) to an output
directory, one file per session, mirroring the destination layout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "export format (json, jsonl, yaml, md, text)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "export", "output directory")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	exporter, err := export.NewExporter(exportFormat)
	if err != nil {
		return err
	}

	destination := ""
	if len(args) == 1 {
		destination = args[0]
	}

	files, err := session.ListSessions(cfg.Chatlog.RootDir, destination)
	if err != nil {
		return err
	}

	written := 0
	for _, f := range files {
		doc, err := session.LoadDocument(f.Path)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", f.Path, err)
			continue
		}

		dir := filepath.Join(exportOut, f.Destination)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}

		name := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path)) + "." + exporter.Extension()
		if err := writeExport(filepath.Join(dir, name), exporter, doc); err != nil {
			return err
		}
		written++
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sessions to %s\n", written, exportOut)
	return nil
}

func writeExport(path string, exporter export.Exporter, doc *session.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := exporter.Export(doc, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to export %s: %w", path, err)
	}
	return f.Close()
}

package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bl791/chat-logger/pkg/session"
	"github.com/spf13/cobra"
)

var (
	verifyQuiet bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify [path...]",
	Short: "Validate session documents",
	Long: `Check session documents against the session schema. Paths may be files
or directories; directories are searched for session files. With no paths
the whole chat log directory is checked.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVarP(&verifyQuiet, "quiet", "q", false, "only report invalid documents")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		paths = []string{cfg.Chatlog.RootDir}
	}

	files, err := collectSessionFiles(paths)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	invalid := 0
	for _, path := range files {
		doc, err := session.LoadDocument(path)
		if err != nil {
			invalid++
			fmt.Fprintf(out, "FAIL %v\n", err)
			continue
		}
		if !verifyQuiet {
			fmt.Fprintf(out, "OK   %s (%d messages)\n", path, doc.MessageCount)
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d session documents are invalid", invalid, len(files))
	}
	fmt.Fprintf(out, "%d session documents verified\n", len(files))
	return nil
}

// collectSessionFiles expands directories into the session files below them.
// Files named explicitly are checked whatever their name.
func collectSessionFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && session.IsSessionFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	return files, nil
}

package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

var sessionFilePattern = regexp.MustCompile(`^session_(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})_([A-Za-z0-9]+)\.json$`)

// SessionFile describes a session document found on disk.
type SessionFile struct {
	Path        string
	Destination string
	SessionID   string
	StartedAt   time.Time
	Size        int64
	ModTime     time.Time
}

// ParseSessionFileName extracts the start time and session id from a file
// name produced by SessionFileName.
func ParseSessionFileName(name string) (time.Time, string, bool) {
	m := sessionFilePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, "", false
	}

	startedAt, err := time.ParseInLocation(fileTimeFormat, m[1], time.Local)
	if err != nil {
		return time.Time{}, "", false
	}

	return startedAt, m[2], true
}

// IsSessionFile reports whether path names a session document.
func IsSessionFile(path string) bool {
	_, _, ok := ParseSessionFileName(filepath.Base(path))
	return ok
}

// ListSessions returns the session files under rootDir, newest first. When
// destination is non-empty only that destination is listed. A missing root
// yields an empty list.
func ListSessions(rootDir, destination string) ([]SessionFile, error) {
	var destinations []string
	if destination != "" {
		destinations = []string{Sanitize(destination)}
	} else {
		entries, err := os.ReadDir(rootDir)
		if err != nil {
			if os.IsNotExist(err) {
				return []SessionFile{}, nil
			}
			return nil, fmt.Errorf("failed to read chat log directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				destinations = append(destinations, entry.Name())
			}
		}
	}

	files := []SessionFile{}
	for _, dest := range destinations {
		dir := filepath.Join(rootDir, dest)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read destination directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}

			startedAt, id, ok := ParseSessionFileName(entry.Name())
			if !ok {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				continue
			}

			files = append(files, SessionFile{
				Path:        filepath.Join(dir, entry.Name()),
				Destination: dest,
				SessionID:   id,
				StartedAt:   startedAt,
				Size:        info.Size(),
				ModTime:     info.ModTime(),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].StartedAt.Equal(files[j].StartedAt) {
			return files[i].StartedAt.After(files[j].StartedAt)
		}
		return files[i].Path < files[j].Path
	})

	return files, nil
}

package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirLoader handles an unzipped export: a directory of per-channel
// subdirectories holding JSON files.
type DirLoader struct{}

// CanHandle returns true for directories.
func (d *DirLoader) CanHandle(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Load walks the tree. The immediate parent directory of each JSON
// file names the channel; files that are not message lists are
// skipped.
func (d *DirLoader) Load(root string) ([]rawMessage, error) {
	var all []rawMessage

	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(p), ".json") {
			return nil
		}

		channel := filepath.Base(filepath.Dir(p))
		if filepath.Dir(p) == filepath.Clean(root) {
			channel = ""
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		msgs, err := parseMessageList(data, channel)
		if err != nil {
			return nil
		}
		all = append(all, msgs...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking export directory: %w", err)
	}
	return all, nil
}

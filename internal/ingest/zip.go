package ingest

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ZipLoader handles a Slack export ZIP: per-channel directories, each
// holding one JSON file per day.
type ZipLoader struct{}

// CanHandle returns true for .zip paths.
func (z *ZipLoader) CanHandle(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".zip")
}

// Load walks every channel/day JSON inside the archive. A file that
// fails to parse is skipped rather than failing the whole export;
// Slack exports routinely contain metadata JSON (users.json,
// channels.json) that is not a message list.
func (z *ZipLoader) Load(p string) ([]rawMessage, error) {
	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("opening export zip: %w", err)
	}
	defer r.Close()

	var all []rawMessage
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".json") {
			continue
		}
		// Channel name is the top-level directory; top-level JSON files
		// are workspace metadata, not messages.
		dir := path.Dir(f.Name)
		if dir == "." || dir == "/" {
			continue
		}
		channel := strings.SplitN(f.Name, "/", 2)[0]

		msgs, err := readZipMessages(f, channel)
		if err != nil {
			continue
		}
		all = append(all, msgs...)
	}
	return all, nil
}

func readZipMessages(f *zip.File, channel string) ([]rawMessage, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return parseMessageList(data, channel)
}

package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JSONLoader handles a single .json export file.
type JSONLoader struct{}

// CanHandle returns true for .json paths.
func (j *JSONLoader) CanHandle(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Load parses the file. Messages without an embedded channel stay
// unset; the triage engine defaults them later.
func (j *JSONLoader) Load(path string) ([]rawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	msgs, err := parseMessageList(data, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return msgs, nil
}

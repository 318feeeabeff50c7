package ingest

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteSampleExport writes a small export fixture to path, useful for
// trying the pipeline without a real workspace export.
func WriteSampleExport(path string) error {
	sample := map[string]interface{}{
		"messages": []map[string]interface{}{
			{
				"client_msg_id": "sample-1",
				"type":          "message",
				"text":          "Our production server is down! This is critical!",
				"user":          "U1234567890",
				"channel":       "general",
				"ts":            "1640995200.000100",
				"reactions":     []map[string]interface{}{{"name": "fire", "count": 3}},
			},
			{
				"client_msg_id": "sample-2",
				"type":          "message",
				"text":          "Can someone help me understand the authentication flow?",
				"user":          "U1234567891",
				"channel":       "dev-help",
				"ts":            "1640995300.000100",
				"reactions":     []map[string]interface{}{{"name": "question", "count": 1}},
			},
			{
				"client_msg_id": "sample-3",
				"type":          "message",
				"text":          "Found a bug in the user registration form. Getting 500 errors.",
				"user":          "U1234567892",
				"channel":       "bug-reports",
				"ts":            "1640995400.000100",
				"reactions":     []map[string]interface{}{{"name": "bug", "count": 2}},
			},
			{
				"client_msg_id": "sample-4",
				"type":          "message",
				"text":          "Registration form bug: users get 500 errors on submit.",
				"user":          "U1234567890",
				"channel":       "bug-reports",
				"ts":            "1640995500.000100",
			},
		},
	}

	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sample export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing sample export: %w", err)
	}
	return nil
}

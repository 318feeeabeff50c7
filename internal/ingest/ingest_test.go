package ingest

import (
	"archive/zip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const dayFile = `[
  {"client_msg_id": "c1", "type": "message", "text": "deploy to staging failed", "user": "U1", "ts": "1640995200.000100",
   "reactions": [{"name": "sob", "count": 2}, {"name": "eyes", "count": 1}]},
  {"type": "message", "subtype": "channel_join", "text": "<@U2> has joined the channel", "user": "U2", "ts": "1640995300.000100"},
  {"type": "message", "text": "", "user": "U3", "ts": "1640995400.000100"},
  {"type": "message", "text": "build is green again", "user": "U1", "ts": "1640995500.000100"}
]`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadExportJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeFile(t, path, dayFile)

	records, skipped, err := LoadExport(path)
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("skipped = %d, want 2 (join + empty text)", skipped)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}

	r := records[0]
	if r.ID != "c1" {
		t.Fatalf("id = %q, want client_msg_id", r.ID)
	}
	if r.TS != "1640995200.000100" {
		t.Fatalf("ts = %q", r.TS)
	}
	if len(r.Reactions) != 2 || r.Reactions[0] != "sob" || r.Reactions[1] != "eyes" {
		t.Fatalf("reactions = %v", r.Reactions)
	}
	// A bare JSON file carries no channel; the engine defaults it.
	if r.Channel != "" {
		t.Fatalf("channel = %q, want empty", r.Channel)
	}

	// No client_msg_id: the ts becomes the id.
	if records[1].ID != "1640995500.000100" {
		t.Fatalf("fallback id = %q", records[1].ID)
	}
}

func TestLoadExportJSONWrapper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeFile(t, path, `{"messages": [{"type": "message", "text": "hello", "user": "U1", "ts": "1.5"}]}`)

	records, skipped, err := LoadExport(path)
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	if skipped != 0 || len(records) != 1 || records[0].Text != "hello" {
		t.Fatalf("records = %v, skipped = %d", records, skipped)
	}
}

func TestLoadExportJSONInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeFile(t, path, `{"channels": []}`)

	if _, _, err := LoadExport(path); err == nil {
		t.Fatal("expected error for JSON without messages")
	}
}

func TestLoadExportDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "general", "2022-01-01.json"), dayFile)
	writeFile(t, filepath.Join(root, "ops", "2022-01-01.json"),
		`[{"type": "message", "text": "rotating certs tonight", "user": "U4", "ts": "1640995600.000100"}]`)
	// Workspace metadata next to the channel dirs must not break the load.
	writeFile(t, filepath.Join(root, "users.json"), `[{"id": "U1", "name": "alice"}]`)

	records, skipped, err := LoadExport(root)
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	// Two filtered from the day file, plus the textless users.json entry.
	if skipped != 3 {
		t.Fatalf("skipped = %d, want 3", skipped)
	}

	channels := map[string]int{}
	for _, r := range records {
		channels[r.Channel]++
	}
	if channels["general"] != 2 || channels["ops"] != 1 {
		t.Fatalf("channels = %v", channels)
	}
}

func TestLoadExportZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	entries := map[string]string{
		"general/2022-01-01.json": dayFile,
		"ops/2022-01-01.json":     `[{"type": "message", "text": "rotating certs tonight", "user": "U4", "ts": "1640995600.000100"}]`,
		"users.json":              `[{"id": "U1", "name": "alice"}]`,
		"channels.json":           `[{"id": "C1", "name": "general"}]`,
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("closing file: %v", err)
	}

	records, _, err := LoadExport(path)
	if err != nil {
		t.Fatalf("LoadExport: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	channels := map[string]int{}
	for _, r := range records {
		channels[r.Channel]++
	}
	if channels["general"] != 2 || channels["ops"] != 1 {
		t.Fatalf("channels = %v", channels)
	}
}

func TestLoadExportUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	writeFile(t, path, "a,b,c")

	if _, _, err := LoadExport(path); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestLoadExportMissingPath(t *testing.T) {
	if _, _, err := LoadExport(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestWriteSampleExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.json")
	if err := WriteSampleExport(path); err != nil {
		t.Fatalf("WriteSampleExport: %v", err)
	}

	// The sample must be loadable by the pipeline it demonstrates.
	records, skipped, err := LoadExport(path)
	if err != nil {
		t.Fatalf("LoadExport on sample: %v", err)
	}
	if skipped != 0 {
		t.Fatalf("skipped = %d", skipped)
	}
	if len(records) != 4 {
		t.Fatalf("got %d records, want 4", len(records))
	}
	if records[0].Channel != "general" || len(records[0].Reactions) != 1 {
		t.Fatalf("first sample record = %+v", records[0])
	}

	// And it must be valid indented JSON.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading sample: %v", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("sample is not valid JSON: %v", err)
	}
	if _, ok := doc["messages"]; !ok {
		t.Fatal("sample missing messages key")
	}
}

package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hurttlocker/triage/internal/config"
	"github.com/hurttlocker/triage/internal/store"
	"github.com/hurttlocker/triage/internal/triage"
)

func runExport(args []string) error {
	format := "json"
	out := ""
	var dbPath, category string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--format":
			i++
			if i >= len(args) {
				return fmt.Errorf("--format needs a value")
			}
			format = args[i]
		case "-o", "--out":
			i++
			if i >= len(args) {
				return fmt.Errorf("-o needs a value")
			}
			out = args[i]
		case "--db":
			i++
			if i >= len(args) {
				return fmt.Errorf("--db needs a value")
			}
			dbPath = args[i]
		case "--category":
			i++
			if i >= len(args) {
				return fmt.Errorf("--category needs a value")
			}
			category = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}
	if format != "json" && format != "csv" {
		return fmt.Errorf("unsupported format %q (use json or csv)", format)
	}

	resolved, err := config.Resolve(config.ResolveOptions{CLIDBPath: dbPath})
	if err != nil {
		return err
	}
	archive, err := store.NewStore(store.Config{DBPath: resolved.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	msgs, err := archive.List(context.Background(), store.ListOpts{
		Limit:    100000,
		Category: category,
	})
	if err != nil {
		return err
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(msgs); err != nil {
			return fmt.Errorf("encoding export: %w", err)
		}
	case "csv":
		if err := writeArchiveCSV(w, msgs); err != nil {
			return err
		}
	}

	if out != "" {
		fmt.Fprintf(os.Stderr, "Exported %d messages to %s\n", len(msgs), out)
	}
	return nil
}

var csvHeader = []string{
	"id", "text", "user", "channel", "timestamp", "thread_ts",
	"reactions", "category", "confidence", "priority_score", "color",
	"similar_count",
}

func writeArchiveCSV(w *os.File, msgs []*store.ArchivedMessage) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, m := range msgs {
		row := []string{
			m.MessageID, m.Text, m.User, m.Channel,
			m.Timestamp.Format(time.RFC3339), m.ThreadTS,
			strings.Join(m.Reactions, " "),
			m.Category,
			strconv.FormatFloat(m.Confidence, 'f', 3, 64),
			strconv.FormatFloat(m.PriorityScore, 'f', 3, 64),
			m.Color,
			strconv.Itoa(len(m.Similar)),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON dumps freshly triaged messages from an analyze run.
func writeJSON(path string, msgs []*triage.Message) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msgs); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

// writeCSV dumps freshly triaged messages from an analyze run.
func writeCSV(path string, msgs []*triage.Message) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, m := range msgs {
		row := []string{
			m.ID, m.Text, m.User, m.Channel,
			m.Timestamp.Format(time.RFC3339), m.ThreadTS,
			strings.Join(m.Reactions, " "),
			m.Category,
			strconv.FormatFloat(m.Confidence, 'f', 3, 64),
			strconv.FormatFloat(m.PriorityScore, 'f', 3, 64),
			m.Color,
			strconv.Itoa(len(m.SimilarTo)),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

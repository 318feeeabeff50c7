package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hurttlocker/triage/internal/config"
	"github.com/hurttlocker/triage/internal/embed"
	"github.com/hurttlocker/triage/internal/ingest"
	"github.com/hurttlocker/triage/internal/mcp"
	"github.com/hurttlocker/triage/internal/store"
	"github.com/hurttlocker/triage/internal/triage"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = runAnalyze(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "sample":
		err = runSample(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("triage %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds the flags shared by analyze/stats/export/serve.
type cliFlags struct {
	db      string
	embed   string
	rules   string
	topK    int
	jsonOut string
	csvOut  string
	noDB    bool
	args    []string
}

func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() (string, error) {
			i++
			if i >= len(args) {
				return "", fmt.Errorf("flag %s needs a value", arg)
			}
			return args[i], nil
		}

		var err error
		switch {
		case arg == "--db":
			f.db, err = next()
		case arg == "--embed":
			f.embed, err = next()
		case arg == "--rules":
			f.rules, err = next()
		case arg == "--top-k":
			var v string
			if v, err = next(); err == nil {
				f.topK, err = strconv.Atoi(v)
			}
		case arg == "--json":
			f.jsonOut, err = next()
		case arg == "--csv":
			f.csvOut, err = next()
		case arg == "--no-db":
			f.noDB = true
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			f.args = append(f.args, arg)
		}
		if err != nil {
			return nil, err
		}
	}
	return f, nil
}

// buildEngine resolves configuration and constructs the engine plus an
// optional archive store.
func buildEngine(f *cliFlags) (*triage.Engine, *store.Store, error) {
	resolved, err := config.Resolve(config.ResolveOptions{
		CLIDBPath: f.db,
		CLIEmbed:  f.embed,
		CLIRules:  f.rules,
	})
	if err != nil {
		return nil, nil, err
	}

	cfg := triage.Config{
		TopK: f.topK,
		Logf: func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, "  "+format+"\n", args...)
		},
	}

	if resolved.RulesPath.Value != "" {
		cats, err := triage.LoadCategories(resolved.RulesPath.Value)
		if err != nil {
			return nil, nil, err
		}
		cfg.Categories = cats
	}

	if resolved.Embed.Value != "" {
		embedCfg, err := embed.ParseFlag(resolved.Embed.Value)
		if err != nil {
			return nil, nil, err
		}
		client, err := embed.NewClient(embedCfg)
		if err != nil {
			return nil, nil, err
		}
		cfg.Embedder = client
	}

	engine, err := triage.New(cfg)
	if err != nil {
		return nil, nil, err
	}

	if f.noDB {
		return engine, nil, nil
	}
	archive, err := store.NewStore(store.Config{DBPath: resolved.DBPath.Value})
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	return engine, archive, nil
}

func runAnalyze(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(f.args) != 1 {
		return fmt.Errorf("usage: triage analyze <export-path> [--db PATH|--no-db] [--embed provider/model] [--rules FILE] [--top-k N] [--json FILE] [--csv FILE]")
	}

	engine, archive, err := buildEngine(f)
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
	}

	records, filtered, err := ingest.LoadExport(f.args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d messages (%d filtered out)\n", len(records), filtered)

	ctx := context.Background()
	msgs, batch := engine.ProcessBatch(ctx, records)
	fmt.Printf("Processed %d/%d messages", batch.Processed, batch.Total)
	if batch.Skipped > 0 {
		fmt.Printf(" (%d skipped)", batch.Skipped)
	}
	fmt.Println()

	if archive != nil {
		n, err := archive.ArchiveBatch(ctx, msgs)
		if err != nil {
			return fmt.Errorf("archiving results: %w", err)
		}
		fmt.Printf("Archived %d messages\n", n)
	}

	if f.jsonOut != "" {
		if err := writeJSON(f.jsonOut, msgs); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", f.jsonOut)
	}
	if f.csvOut != "" {
		if err := writeCSV(f.csvOut, msgs); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", f.csvOut)
	}

	fmt.Println()
	printSummary(engine.Summarize())
	return nil
}

func runStats(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	resolved, err := config.Resolve(config.ResolveOptions{CLIDBPath: f.db})
	if err != nil {
		return err
	}
	archive, err := store.NewStore(store.Config{DBPath: resolved.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer archive.Close()

	stats, err := archive.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Total messages: %d\n", stats.TotalMessages)
	fmt.Printf("Mean priority:  %.3f\n", stats.AvgPriority)
	fmt.Printf("Priority tiers: high %d / medium %d / low %d\n",
		stats.HighPriority, stats.MedPriority, stats.LowPriority)
	if len(stats.Categories) > 0 {
		fmt.Println("Categories:")
		for cat, n := range stats.Categories {
			fmt.Printf("  %-16s %d\n", cat, n)
		}
	}
	return nil
}

func runSample(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: triage sample <out.json>")
	}
	if err := ingest.WriteSampleExport(args[0]); err != nil {
		return err
	}
	fmt.Printf("Created sample export: %s\n", args[0])
	return nil
}

func runServe(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}

	engine, archive, err := buildEngine(f)
	if err != nil {
		return err
	}
	if archive != nil {
		defer archive.Close()
	}

	s := mcp.NewServer(mcp.ServerConfig{
		Engine:  engine,
		Archive: archive,
		Version: version,
	})
	return mcp.Serve(s)
}

func printSummary(s *triage.Summary) {
	fmt.Printf("Summary: %d messages, mean priority %.3f\n", s.TotalMessages, s.AvgPriority)
	fmt.Printf("Priority tiers: high %d / medium %d / low %d\n",
		s.Priority.High, s.Priority.Medium, s.Priority.Low)
	if len(s.Categories) > 0 {
		fmt.Println("Categories:")
		for cat, n := range s.Categories {
			fmt.Printf("  %-16s %d\n", cat, n)
		}
	}
	if len(s.TopChannels) > 0 {
		fmt.Println("Top channels:")
		for _, c := range s.TopChannels {
			fmt.Printf("  %-16s %d\n", c.Name, c.Count)
		}
	}
	for _, sg := range s.Suggestions {
		fmt.Printf("Suggestion: %s\n", sg.Text)
	}
}

func printUsage() {
	fmt.Println(`triage — Slack message triage and dedup engine

Usage:
  triage analyze <export-path> [flags]   Triage every message in an export
  triage stats [--db PATH]               Show archive statistics
  triage export [flags]                  Export archived messages (json|csv)
  triage sample <out.json>               Write a sample export fixture
  triage serve [flags]                   Run the MCP stdio server
  triage version                         Print version

Flags:
  --db PATH          Archive database path (default ~/.triage/triage.db)
  --no-db            Skip the archive entirely
  --embed P/M        Enable semantic similarity (e.g. ollama/all-minilm)
  --rules FILE       Category taxonomy override (YAML)
  --top-k N          Similar messages per query (default 5)
  --json FILE        Write triaged messages as JSON
  --csv FILE         Write triaged messages as CSV`)
}

// Package mcp exposes the triage engine over the Model Context
// Protocol: tools to triage a single message or a whole export, a
// stats tool, and a summary resource. Stdio transport only.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/triage/internal/ingest"
	"github.com/hurttlocker/triage/internal/store"
	"github.com/hurttlocker/triage/internal/triage"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Engine  *triage.Engine
	Archive *store.Store // optional; nil disables archiving and stats
	Version string
}

// engMu serializes tool calls. The mcp-go library dispatches handlers
// on separate goroutines, and the read-then-append sequence inside
// Process must be atomic across concurrent ingestions or two messages
// could each miss the other in similarity results.
var engMu sync.Mutex

// NewServer creates a configured MCP server with all triage tools and
// resources registered.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Triage",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerMessageTool(s, cfg.Engine, cfg.Archive)
	registerImportTool(s, cfg.Engine, cfg.Archive)
	registerStatsTool(s, cfg.Engine, cfg.Archive)
	registerSummaryResource(s, cfg.Engine)

	return s
}

// Serve runs the server over stdio until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func registerMessageTool(s *server.MCPServer, engine *triage.Engine, archive *store.Store) {
	tool := mcp.NewTool("triage_message",
		mcp.WithDescription("Triage one message: assign a category and confidence, compute a priority score, and list previously seen similar messages. The message joins the corpus for future similarity queries."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Raw message text"),
		),
		mcp.WithString("user",
			mcp.Description("Author identifier (default: unknown)"),
		),
		mcp.WithString("channel",
			mcp.Description("Channel name (default: general)"),
		),
		mcp.WithString("ts",
			mcp.Description("Epoch-seconds timestamp, e.g. '1640995200.000100' (default: now)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		engMu.Lock()
		defer engMu.Unlock()

		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}

		rec := triage.Record{Text: text}
		if user, err := req.RequireString("user"); err == nil {
			rec.User = user
		}
		if channel, err := req.RequireString("channel"); err == nil {
			rec.Channel = channel
		}
		if ts, err := req.RequireString("ts"); err == nil {
			rec.TS = ts
		}

		msg, err := engine.Process(ctx, rec)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("triage error: %v", err)), nil
		}

		if archive != nil {
			if _, err := archive.Archive(ctx, msg); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("archive error: %v", err)), nil
			}
		}

		data, _ := json.MarshalIndent(msg, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerImportTool(s *server.MCPServer, engine *triage.Engine, archive *store.Store) {
	tool := mcp.NewTool("triage_import",
		mcp.WithDescription("Load a Slack export (.json file, .zip archive, or unzipped directory) and triage every message in it. Returns batch counters; records that fail are skipped, never aborting the batch."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the export file or directory"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		engMu.Lock()
		defer engMu.Unlock()

		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("path is required"), nil
		}

		records, filtered, err := ingest.LoadExport(path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load error: %v", err)), nil
		}

		msgs, batch := engine.ProcessBatch(ctx, records)

		archived := int64(0)
		if archive != nil {
			archived, err = archive.ArchiveBatch(ctx, msgs)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("archive error: %v", err)), nil
			}
		}

		result := map[string]interface{}{
			"loaded":    len(records),
			"filtered":  filtered,
			"processed": batch.Processed,
			"skipped":   batch.Skipped,
			"archived":  archived,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, engine *triage.Engine, archive *store.Store) {
	tool := mcp.NewTool("triage_stats",
		mcp.WithDescription("Get triage statistics: category histogram, priority tiers, top users/channels/words, mean priority for the in-memory corpus, plus archive totals when persistence is enabled."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		engMu.Lock()
		defer engMu.Unlock()

		result := map[string]interface{}{
			"corpus": engine.Summarize(),
		}
		if archive != nil {
			stats, err := archive.Stats(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
			}
			result["archive"] = stats
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerSummaryResource(s *server.MCPServer, engine *triage.Engine) {
	resource := mcp.NewResource(
		"triage://summary",
		"Triage Summary",
		mcp.WithResourceDescription("Batch summary of the current corpus: category histogram, priority tiers, top users/channels/words, automation suggestions."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		engMu.Lock()
		defer engMu.Unlock()

		data, err := json.MarshalIndent(engine.Summarize(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling summary: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "triage://summary",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

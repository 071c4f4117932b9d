package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/palmscan/palmscan/internal/fortune"
	"github.com/palmscan/palmscan/internal/ops"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"fortune_parse": {
		def:     parseToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleParse },
	},
	"fortune_preview": {
		def:     previewToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePreview },
	},
	"fortune_format_date": {
		def:     formatDateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFormatDate },
	},
	"fortune_save": {
		def:     saveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSave },
	},
	"fortune_fetch": {
		def:     fetchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFetch },
	},
	"fortune_history": {
		def:     historyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistory },
	},
	"fortune_latest": {
		def:     latestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLatest },
	},
	"fortune_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"fortune_delete": {
		def:     deleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDelete },
	},
	"fortune_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
	"fortune_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"fortune_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
	"fortune_predict": {
		def:     predictToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePredict },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the fortune tools registered, minus the
// ones listed in disabled_tools.
func NewServer(env *ops.Env, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"palmscan",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(env)

	disabled := make(map[string]bool)
	if env.Config != nil {
		for _, name := range env.Config.DisabledTools {
			disabled[name] = true
		}
		if unknown := ValidateDisabledTools(env.Config.DisabledTools); len(unknown) > 0 {
			env.Log.Warn().Strs("tools", unknown).Msg("unknown tools in disabled_tools")
		}
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves MCP over stdio until ctx is done or stdin closes. When configured,
// the vocabulary file is watched for the lifetime of the server.
func Run(ctx context.Context, env *ops.Env, version string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg := env.Config; cfg != nil && cfg.WatchVocabulary && cfg.VocabularyPath != "" && env.Parser != nil {
		go func() {
			if err := fortune.WatchVocabulary(ctx, cfg.VocabularyPath, env.Parser, env.Log); err != nil {
				env.Log.Warn().Err(err).Msg("vocabulary watcher stopped")
			}
		}()
	}

	s := NewServer(env, version)
	env.Log.Info().Str("version", version).Int("tools", len(s.ListTools())).Msg("mcp server listening on stdio")
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}

package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/engine"
	"github.com/hpungsan/lifegrid/internal/logger"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"profile_get": {
		def:     profileGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileGet },
	},
	"profile_set": {
		def:     profileSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleProfileSet },
	},
	"periods_get": {
		def:     periodsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePeriodsGet },
	},
	"periods_set": {
		def:     periodsSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePeriodsSet },
	},
	"period_resolve": {
		def:     periodResolveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePeriodResolve },
	},
	"memo_get": {
		def:     memoGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoGet },
	},
	"memo_set": {
		def:     memoSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoSet },
	},
	"top_days": {
		def:     topDaysToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTopDays },
	},
	"grid_year": {
		def:     gridYearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGrid },
	},
	"stats": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
	},
	"data_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"data_import": {
		def:     importToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleImport },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
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

// NewServer creates an MCP server with the planner tools registered.
// Tools listed in cfg.DisabledTools are skipped.
func NewServer(eng *engine.Engine, cfg *config.Config, log *logger.Logger, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lifegrid",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(eng, cfg, log)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the tools over stdio. Logs must go to stderr; stdout carries the protocol.
func Run(eng *engine.Engine, cfg *config.Config, log *logger.Logger, version string) error {
	s := NewServer(eng, cfg, log, version)
	return server.ServeStdio(s)
}

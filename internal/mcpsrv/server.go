// Package mcpsrv exposes the local store and sync engine over the Model
// Context Protocol.
package mcpsrv

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/claude/repsync/internal/local"
	"github.com/claude/repsync/internal/syncer"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
// sync may be nil when the instance runs local-only.
func New(db *local.DB, sync *syncer.Syncer, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepSync", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepSync workout tracking server. Query logged sets, training volume, and exercise progression, and inspect or trigger cloud sync."),
	)

	h := &handlers{db: db, sync: sync, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetWorkoutSets, Handler: h.getWorkoutSets},
		server.ServerTool{Tool: toolGetVolumeSummary, Handler: h.getVolumeSummary},
		server.ServerTool{Tool: toolGetExerciseProgress, Handler: h.getExerciseProgress},
		server.ServerTool{Tool: toolGetSyncStatus, Handler: h.getSyncStatus},
		server.ServerTool{Tool: toolTriggerSync, Handler: h.triggerSync},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	db   *local.DB
	sync *syncer.Syncer
	log  *slog.Logger
}

var resRecentWorkouts = mcp.NewResource(
	"repsync://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Workouts from the last 14 days with their sets"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -14)

	workouts, err := h.db.ListWorkouts(start, end)
	if err != nil {
		return nil, err
	}

	type workoutDetail struct {
		Workout any `json:"workout"`
		Sets    any `json:"sets"`
	}
	details := make([]workoutDetail, 0, len(workouts))
	for _, w := range workouts {
		sets, err := h.db.SetsForWorkout(w.ID)
		if err != nil {
			return nil, err
		}
		details = append(details, workoutDetail{Workout: w, Sets: sets})
	}

	data, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

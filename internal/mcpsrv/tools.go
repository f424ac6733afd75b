package mcpsrv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/claude/repsync/internal/local"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 30 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now().UTC()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -30)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetWorkoutSets = mcp.NewTool("get_workout_sets",
	mcp.WithDescription("Query logged sets. Returns date, reps, weight, volume (reps × weight), and notes for each set."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise name (partial match, e.g. 'bench press')")),
)

var toolGetVolumeSummary = mcp.NewTool("get_volume_summary",
	mcp.WithDescription("Training volume over a date range: daily volume series, per-exercise totals, and range totals/averages."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetExerciseProgress = mcp.NewTool("get_exercise_progress",
	mcp.WithDescription("Set-by-set progression for one exercise over time, oldest first. Useful for tracking strength gains."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise name (exact match)")),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolGetSyncStatus = mcp.NewTool("get_sync_status",
	mcp.WithDescription("Current cloud sync status: state, counts from the last run, and last sync time."),
)

var toolTriggerSync = mcp.NewTool("trigger_sync",
	mcp.WithDescription("Request a sync run against the cloud replica. Returns the status at the time of the request; poll get_sync_status for the outcome."),
)

// --- Tool handlers ---

type setView struct {
	Date   time.Time `json:"date"`
	Reps   int       `json:"reps"`
	Weight float64   `json:"weight"`
	Volume float64   `json:"volume"`
	Notes  string    `json:"notes,omitempty"`
}

func (h *handlers) getWorkoutSets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sets, err := h.db.ListSets(start, end)
	if err != nil {
		h.log.Error("mcp get_workout_sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	filter := strings.ToLower(req.GetString("exercise", ""))
	names := map[string]string{}
	views := make([]map[string]any, 0, len(sets))
	for _, set := range sets {
		name := ""
		if set.ExerciseID != nil {
			key := set.ExerciseID.String()
			if cached, ok := names[key]; ok {
				name = cached
			} else {
				ex, _, err := h.db.GetExercise(*set.ExerciseID)
				if err == nil {
					name = ex.Name
				}
				names[key] = name
			}
		}
		if filter != "" && !strings.Contains(strings.ToLower(name), filter) {
			continue
		}
		views = append(views, map[string]any{
			"date":     set.Date,
			"exercise": name,
			"reps":     set.Reps,
			"weight":   set.Weight,
			"volume":   set.Volume(),
			"notes":    set.Notes,
		})
	}

	result, err := mcp.NewToolResultJSON(views)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getVolumeSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	days, err := h.db.VolumeByDay(start, end)
	if err != nil {
		h.log.Error("mcp get_volume_summary days", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	exercises, err := h.db.VolumeByExercise(start, end)
	if err != nil {
		h.log.Error("mcp get_volume_summary exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	summary, err := h.db.Summary(start, end)
	if err != nil {
		h.log.Error("mcp get_volume_summary totals", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"days":      days,
		"exercises": exercises,
		"totals":    summary,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getExerciseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	endStr := req.GetString("end", "")
	startStr := req.GetString("start", "")

	var start, end time.Time
	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return mcp.NewToolResultError("invalid end date: " + err.Error()), nil
		}
	} else {
		end = time.Now().UTC()
	}
	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return mcp.NewToolResultError("invalid start date: " + err.Error()), nil
		}
	} else {
		start = end.AddDate(0, 0, -90)
	}

	ex, _, err := h.db.FindExerciseByName(name)
	if err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return mcp.NewToolResultError("unknown exercise: " + name), nil
		}
		h.log.Error("mcp get_exercise_progress lookup", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	sets, err := h.db.ListSets(start, end)
	if err != nil {
		h.log.Error("mcp get_exercise_progress sets", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	// ListSets is newest first; progression reads oldest first.
	progress := make([]setView, 0)
	for i := len(sets) - 1; i >= 0; i-- {
		set := sets[i]
		if set.ExerciseID == nil || *set.ExerciseID != ex.ID {
			continue
		}
		progress = append(progress, setView{
			Date:   set.Date,
			Reps:   set.Reps,
			Weight: set.Weight,
			Volume: set.Volume(),
			Notes:  set.Notes,
		})
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"exercise": ex,
		"sets":     progress,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSyncStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.sync == nil {
		return mcp.NewToolResultText(`{"state":"disabled"}`), nil
	}
	result, err := mcp.NewToolResultJSON(h.sync.Status())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) triggerSync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.sync == nil {
		return mcp.NewToolResultError("sync is disabled"), nil
	}
	h.sync.Trigger()
	result, err := mcp.NewToolResultJSON(h.sync.Status())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

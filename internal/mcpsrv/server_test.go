package mcpsrv

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/repsync/internal/local"
	"github.com/claude/repsync/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// TestDefaultTimeRange verifies time range defaults (last 30 days) and parsing.
func TestDefaultTimeRange(t *testing.T) {
	// Both empty → defaults to last 30 days
	start, end, err := defaultTimeRange("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff := end.Sub(start)
	if diff.Hours() < 719 || diff.Hours() > 721 { // ~720 hours = 30 days
		t.Errorf("default range = %.0f hours, want ~720", diff.Hours())
	}

	// Explicit dates
	start, end, err = defaultTimeRange("2025-01-01", "2025-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Year() != 2025 || start.Month() != 1 || start.Day() != 1 {
		t.Errorf("start = %v, want 2025-01-01", start)
	}
	if end.Year() != 2025 || end.Month() != 1 || end.Day() != 31 {
		t.Errorf("end = %v, want 2025-01-31", end)
	}

	// RFC3339
	start, _, err = defaultTimeRange("2025-06-15T10:30:00Z", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 10 || start.Minute() != 30 {
		t.Errorf("start = %v, want 10:30", start)
	}

	// Invalid
	_, _, err = defaultTimeRange("not-a-date", "")
	if err == nil {
		t.Error("expected error for invalid date")
	}
}

func testHandlers(t *testing.T) *handlers {
	t.Helper()
	db, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &handlers{db: db, log: log}
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", result.Content[0])
	}
	return text.Text
}

// TestGetExerciseProgress verifies only the named exercise's sets come back,
// oldest first.
func TestGetExerciseProgress(t *testing.T) {
	h := testHandlers(t)

	bench := models.Exercise{Name: "Bench Press"}
	if err := h.db.SaveExercise(&bench); err != nil {
		t.Fatalf("saving exercise: %v", err)
	}
	squat := models.Exercise{Name: "Squat"}
	if err := h.db.SaveExercise(&squat); err != nil {
		t.Fatalf("saving exercise: %v", err)
	}

	day := time.Now().UTC().AddDate(0, 0, -3)
	for i, tc := range []struct {
		ex     *models.Exercise
		weight float64
	}{{&bench, 80}, {&bench, 85}, {&squat, 120}} {
		set := models.WorkoutSet{
			Date: day.AddDate(0, 0, i), Reps: 5, Weight: tc.weight,
			ExerciseID: &tc.ex.ID,
		}
		if err := h.db.SaveSet(&set); err != nil {
			t.Fatalf("saving set: %v", err)
		}
	}

	result, err := h.getExerciseProgress(context.Background(), toolRequest(map[string]any{"exercise": "Bench Press"}))
	if err != nil {
		t.Fatalf("getExerciseProgress: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", textContent(t, result))
	}

	var payload struct {
		Sets []setView `json:"sets"`
	}
	if err := json.Unmarshal([]byte(textContent(t, result)), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(payload.Sets) != 2 {
		t.Fatalf("got %d sets, want 2", len(payload.Sets))
	}
	if payload.Sets[0].Weight != 80 || payload.Sets[1].Weight != 85 {
		t.Errorf("weights = %g, %g, want 80, 85 (oldest first)", payload.Sets[0].Weight, payload.Sets[1].Weight)
	}
	if payload.Sets[0].Volume != 400 {
		t.Errorf("volume = %g, want 400", payload.Sets[0].Volume)
	}
}

// TestGetExerciseProgressUnknown verifies the error result for a name with
// no record.
func TestGetExerciseProgressUnknown(t *testing.T) {
	h := testHandlers(t)
	result, err := h.getExerciseProgress(context.Background(), toolRequest(map[string]any{"exercise": "Nope"}))
	if err != nil {
		t.Fatalf("getExerciseProgress: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for unknown exercise")
	}
}

// TestSyncToolsDisabled verifies the sync tools degrade gracefully without a
// syncer.
func TestSyncToolsDisabled(t *testing.T) {
	h := testHandlers(t)

	result, err := h.getSyncStatus(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("getSyncStatus: %v", err)
	}
	if got := textContent(t, result); got != `{"state":"disabled"}` {
		t.Errorf("status = %q, want disabled", got)
	}

	result, err = h.triggerSync(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("triggerSync: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result when sync is disabled")
	}
}

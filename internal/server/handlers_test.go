package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/repsync/internal/local"
	"github.com/claude/repsync/internal/models"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) (*Server, *local.DB) {
	t.Helper()
	db, err := local.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(db, nil, testAPIKey, log), db
}

func doRequest(s *Server, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

// TestExerciseCRUD walks an exercise through create, get, update, and delete.
func TestExerciseCRUD(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/exercises", `{"name":"Bench Press","category":"Chest"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var created models.Exercise
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if created.Name != "Bench Press" {
		t.Errorf("name = %q, want %q", created.Name, "Bench Press")
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/exercises/"+created.ID.String(), "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}

	rec = doRequest(s, http.MethodPut, "/api/v1/exercises/"+created.ID.String(), `{"name":"Incline Bench Press"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var updated models.Exercise
	if err := json.NewDecoder(rec.Body).Decode(&updated); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if updated.Name != "Incline Bench Press" {
		t.Errorf("updated name = %q, want %q", updated.Name, "Incline Bench Press")
	}
	if updated.ID != created.ID {
		t.Errorf("update changed ID: %v != %v", updated.ID, created.ID)
	}

	rec = doRequest(s, http.MethodDelete, "/api/v1/exercises/"+created.ID.String(), "", true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = doRequest(s, http.MethodGet, "/api/v1/exercises/"+created.ID.String(), "", false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

// TestMutatingRoutesRequireAPIKey verifies writes are rejected without the
// X-API-Key header while reads stay open.
func TestMutatingRoutesRequireAPIKey(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/exercises", `{"name":"Squat"}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated create status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/exercises", strings.NewReader(`{"name":"Squat"}`))
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong-key create status = %d, want 403", rec.Code)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/exercises", "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("unauthenticated list status = %d, want 200", rec.Code)
	}
}

// TestCreateExerciseValidation verifies invalid records are rejected.
func TestCreateExerciseValidation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/exercises", `{"category":"Legs"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	rec = doRequest(s, http.MethodPost, "/api/v1/exercises", `not json`, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
}

// TestGetWorkoutIncludesSets verifies the workout detail response carries
// its sets.
func TestGetWorkoutIncludesSets(t *testing.T) {
	s, db := newTestServer(t)

	w := models.Workout{Date: time.Now().UTC()}
	if err := db.SaveWorkout(&w); err != nil {
		t.Fatalf("saving workout: %v", err)
	}
	set := models.WorkoutSet{Date: w.Date, Reps: 5, Weight: 100, WorkoutID: &w.ID}
	if err := db.SaveSet(&set); err != nil {
		t.Fatalf("saving set: %v", err)
	}

	rec := doRequest(s, http.MethodGet, "/api/v1/workouts/"+w.ID.String(), "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var detail struct {
		Workout models.Workout      `json:"workout"`
		Sets    []models.WorkoutSet `json:"sets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if detail.Workout.ID != w.ID {
		t.Errorf("workout ID = %v, want %v", detail.Workout.ID, w.ID)
	}
	if len(detail.Sets) != 1 {
		t.Errorf("got %d sets, want 1", len(detail.Sets))
	}
}

// TestDeleteWorkoutCascadesOverHTTP verifies a workout delete removes its
// sets.
func TestDeleteWorkoutCascadesOverHTTP(t *testing.T) {
	s, db := newTestServer(t)

	w := models.Workout{Date: time.Now().UTC()}
	if err := db.SaveWorkout(&w); err != nil {
		t.Fatalf("saving workout: %v", err)
	}
	set := models.WorkoutSet{Date: w.Date, Reps: 5, Weight: 100, WorkoutID: &w.ID}
	if err := db.SaveSet(&set); err != nil {
		t.Fatalf("saving set: %v", err)
	}

	rec := doRequest(s, http.MethodDelete, "/api/v1/workouts/"+w.ID.String(), "", true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = doRequest(s, http.MethodGet, "/api/v1/sets/"+set.ID.String(), "", false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("set after cascade status = %d, want 404", rec.Code)
	}
}

// TestInvalidID verifies malformed IDs get a 400 rather than a 404 or 500.
func TestInvalidID(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(s, http.MethodGet, "/api/v1/exercises/not-a-uuid", "", false)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestStatsSummary verifies the summary endpoint aggregates volume.
func TestStatsSummary(t *testing.T) {
	s, db := newTestServer(t)

	day := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	for _, tc := range []struct {
		reps   int
		weight float64
	}{{10, 80}, {8, 100}} {
		set := models.WorkoutSet{Date: day, Reps: tc.reps, Weight: tc.weight}
		if err := db.SaveSet(&set); err != nil {
			t.Fatalf("saving set: %v", err)
		}
	}

	rec := doRequest(s, http.MethodGet, "/api/v1/stats/summary?start=2025-07-01&end=2025-07-02", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var summary local.RangeSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if summary.Sets != 2 {
		t.Errorf("Sets = %d, want 2", summary.Sets)
	}
	if summary.TotalVolume != 1600 {
		t.Errorf("TotalVolume = %g, want 1600", summary.TotalVolume)
	}
}

// TestCSVRoundTripOverHTTP verifies import and export through the API.
func TestCSVRoundTripOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)

	body := "date,exercise,reps,weight\n2025-07-01,Bench Press,10,80\n"
	rec := doRequest(s, http.MethodPost, "/api/v1/import/csv", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, want 200: %s", rec.Code, rec.Body)
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/export/csv?start=2025-07-01&end=2025-07-02", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", got)
	}
	want := "date,exercise,reps,weight\n2025-07-01,Bench Press,10,80\n"
	if rec.Body.String() != want {
		t.Errorf("export body = %q, want %q", rec.Body.String(), want)
	}
}

// TestSyncStatusDisabled verifies the status endpoint reports a disabled
// syncer instead of erroring.
func TestSyncStatusDisabled(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/sync/status", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp["state"] != "disabled" {
		t.Errorf("state = %q, want %q", resp["state"], "disabled")
	}

	rec = doRequest(s, http.MethodPost, "/api/v1/sync", "", true)
	if rec.Code != http.StatusConflict {
		t.Errorf("trigger status = %d, want 409", rec.Code)
	}
}

// TestClearData verifies the destructive endpoint wipes records.
func TestClearData(t *testing.T) {
	s, db := newTestServer(t)

	ex := models.Exercise{Name: "Row"}
	if err := db.SaveExercise(&ex); err != nil {
		t.Fatalf("saving exercise: %v", err)
	}

	rec := doRequest(s, http.MethodDelete, "/api/v1/data", "", true)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	exercises, err := db.ListExercises()
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	if len(exercises) != 0 {
		t.Errorf("got %d exercises after clear, want 0", len(exercises))
	}
}

// TestParseTimeRange verifies start/end query parsing, including end-only
// queries and the 30-day default anchored to the parsed end.
func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   bool
	}{
		{
			name:      "both dates",
			query:     "start=2025-06-01&end=2025-06-10",
			wantStart: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "end only defaults start to 30 days before end",
			query:     "end=2025-06-10",
			wantStart: time.Date(2025, 5, 12, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "rfc3339",
			query:     "start=2025-06-01T08:00:00Z&end=2025-06-02T08:00:00Z",
			wantStart: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
		},
		{name: "bad start", query: "start=junk", wantErr: true},
		{name: "bad end", query: "end=junk", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/summary?"+tc.query, nil)
			start, end, err := parseTimeRange(req)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTimeRange: %v", err)
			}
			if !start.Equal(tc.wantStart) {
				t.Errorf("start = %v, want %v", start, tc.wantStart)
			}
			if !end.Equal(tc.wantEnd) {
				t.Errorf("end = %v, want %v", end, tc.wantEnd)
			}
		})
	}
}

// TestStatsEndOnlyQuery verifies an end-only range excludes later sets.
func TestStatsEndOnlyQuery(t *testing.T) {
	s, db := newTestServer(t)

	ex := models.Exercise{Name: "Squat"}
	if err := db.SaveExercise(&ex); err != nil {
		t.Fatalf("saving exercise: %v", err)
	}
	dates := []time.Time{
		time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		time.Now().UTC(),
	}
	for _, d := range dates {
		set := models.WorkoutSet{Date: d, Reps: 5, Weight: 100, ExerciseID: &ex.ID}
		if err := db.SaveSet(&set); err != nil {
			t.Fatalf("saving set: %v", err)
		}
	}

	rec := doRequest(s, http.MethodGet, "/api/v1/stats/summary?end=2025-06-10", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var summary local.RangeSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if summary.Sets != 1 {
		t.Errorf("sets = %d, want 1 (only the set before the end date)", summary.Sets)
	}
}

// Package csvio imports and exports workout sets as 4-column CSV:
// date, exercise, reps, weight.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/claude/repsync/internal/local"
	"github.com/claude/repsync/internal/models"
)

const dateLayout = "2006-01-02"

// Row is one parsed import line.
type Row struct {
	Date     time.Time
	Exercise string
	Reps     int
	Weight   float64
}

// Stats tracks import progress. RowErrors holds one message per rejected
// line; good rows still land.
type Stats struct {
	Imported         int
	ExercisesCreated int
	RowErrors        []string
}

// Importer inserts CSV rows into the local store, creating exercises by
// name as needed.
type Importer struct {
	db     *local.DB
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// NewImporter creates an Importer. With dryRun set, rows are parsed and
// counted but nothing is written.
func NewImporter(db *local.DB, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{db: db, log: log, dryRun: dryRun}
}

// Import reads CSV from r and creates one set per valid row. A header line
// is tolerated. Malformed rows are collected in Stats.RowErrors.
func (imp *Importer) Import(r io.Reader) (*Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	// Exercises created during this import, so repeated names in one file
	// resolve to a single record even on a dry run.
	created := map[string]models.Exercise{}

	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			imp.rejectf(line, "malformed CSV: %v", err)
			continue
		}
		if line == 1 && isHeader(record) {
			continue
		}

		row, err := parseRow(record)
		if err != nil {
			imp.rejectf(line, "%v", err)
			continue
		}

		if err := imp.insert(row, created); err != nil {
			return &imp.stats, fmt.Errorf("importing row %d: %w", line, err)
		}
		imp.stats.Imported++
	}

	return &imp.stats, nil
}

func (imp *Importer) rejectf(line int, format string, args ...any) {
	msg := fmt.Sprintf("row %d: %s", line, fmt.Sprintf(format, args...))
	imp.stats.RowErrors = append(imp.stats.RowErrors, msg)
	imp.log.Warn("skipping row", "line", line, "error", msg)
}

// insert finds or creates the named exercise and stores one set.
func (imp *Importer) insert(row Row, created map[string]models.Exercise) error {
	ex, ok := created[row.Exercise]
	if !ok {
		existing, _, err := imp.db.FindExerciseByName(row.Exercise)
		switch {
		case err == nil:
			ex = existing
		case errors.Is(err, local.ErrNotFound):
			ex = models.Exercise{Name: row.Exercise}
			if !imp.dryRun {
				if err := imp.db.SaveExercise(&ex); err != nil {
					return fmt.Errorf("creating exercise %q: %w", row.Exercise, err)
				}
			}
			imp.stats.ExercisesCreated++
		default:
			return fmt.Errorf("looking up exercise %q: %w", row.Exercise, err)
		}
		created[row.Exercise] = ex
	}

	if imp.dryRun {
		return nil
	}

	set := models.WorkoutSet{
		Date:       row.Date,
		Reps:       row.Reps,
		Weight:     row.Weight,
		ExerciseID: &ex.ID,
	}
	if err := imp.db.SaveSet(&set); err != nil {
		return fmt.Errorf("creating set: %w", err)
	}
	return nil
}

// parseRow validates one data line against the fixed schema.
func parseRow(record []string) (Row, error) {
	if len(record) != 4 {
		return Row{}, fmt.Errorf("expected 4 columns, got %d", len(record))
	}

	date, err := time.Parse(dateLayout, strings.TrimSpace(record[0]))
	if err != nil {
		return Row{}, fmt.Errorf("invalid date %q", record[0])
	}

	name := strings.TrimSpace(record[1])
	if name == "" {
		return Row{}, errors.New("empty exercise name")
	}

	reps, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil || reps <= 0 {
		return Row{}, fmt.Errorf("invalid reps %q", record[2])
	}

	weight, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil || weight < 0 {
		return Row{}, fmt.Errorf("invalid weight %q", record[3])
	}

	return Row{Date: date.UTC(), Exercise: name, Reps: reps, Weight: weight}, nil
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "date")
}

// Export writes all sets in [start, end) to w as CSV with a header row.
// The exercise column is empty when the reference was nullified.
func Export(db *local.DB, w io.Writer, start, end time.Time) error {
	rows, err := db.ExportRows(start, end)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "exercise", "reps", "weight"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date.UTC().Format(dateLayout),
			r.Exercise,
			strconv.Itoa(r.Reps),
			strconv.FormatFloat(r.Weight, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

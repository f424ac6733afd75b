package local

import (
	"database/sql"
	"fmt"
	"time"
)

// DailyVolume is the aggregated training load for one calendar day.
type DailyVolume struct {
	Day    string  `json:"day"`
	Sets   int     `json:"sets"`
	Reps   int     `json:"reps"`
	Volume float64 `json:"volume"`
}

// ExerciseVolume is the aggregated training load for one exercise.
// Exercise is empty for sets whose reference was nullified.
type ExerciseVolume struct {
	Exercise string  `json:"exercise"`
	Sets     int     `json:"sets"`
	Reps     int     `json:"reps"`
	Volume   float64 `json:"volume"`
}

// RangeSummary is the overall training load for a date range.
type RangeSummary struct {
	Sets         int     `json:"sets"`
	Reps         int     `json:"reps"`
	TotalVolume  float64 `json:"total_volume"`
	AvgSetVolume float64 `json:"avg_set_volume"`
}

// VolumeByDay sums volume = reps × weight per day over a date range.
func (d *DB) VolumeByDay(start, end time.Time) ([]DailyVolume, error) {
	rows, err := d.db.Query(
		`SELECT substr(date, 1, 10) AS day,
		        COUNT(*),
		        COALESCE(SUM(reps), 0),
		        COALESCE(SUM(reps * weight), 0)
		 FROM workout_sets
		 WHERE date >= ? AND date < ?
		 GROUP BY day
		 ORDER BY day ASC`,
		fmtTime(start), fmtTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying daily volume: %w", err)
	}
	defer rows.Close()

	var result []DailyVolume
	for rows.Next() {
		var dv DailyVolume
		if err := rows.Scan(&dv.Day, &dv.Sets, &dv.Reps, &dv.Volume); err != nil {
			return nil, fmt.Errorf("scanning daily volume: %w", err)
		}
		result = append(result, dv)
	}
	return result, rows.Err()
}

// VolumeByExercise sums volume per exercise over a date range.
func (d *DB) VolumeByExercise(start, end time.Time) ([]ExerciseVolume, error) {
	rows, err := d.db.Query(
		`SELECT COALESCE(e.name, ''),
		        COUNT(*),
		        COALESCE(SUM(s.reps), 0),
		        COALESCE(SUM(s.reps * s.weight), 0) AS volume
		 FROM workout_sets s
		 LEFT JOIN exercises e ON e.id = s.exercise_id
		 WHERE s.date >= ? AND s.date < ?
		 GROUP BY e.name
		 ORDER BY volume DESC`,
		fmtTime(start), fmtTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying exercise volume: %w", err)
	}
	defer rows.Close()

	var result []ExerciseVolume
	for rows.Next() {
		var ev ExerciseVolume
		if err := rows.Scan(&ev.Exercise, &ev.Sets, &ev.Reps, &ev.Volume); err != nil {
			return nil, fmt.Errorf("scanning exercise volume: %w", err)
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// Summary returns total and average set volume for a date range.
func (d *DB) Summary(start, end time.Time) (RangeSummary, error) {
	var s RangeSummary
	err := d.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(SUM(reps), 0),
		        COALESCE(SUM(reps * weight), 0)
		 FROM workout_sets
		 WHERE date >= ? AND date < ?`,
		fmtTime(start), fmtTime(end)).Scan(&s.Sets, &s.Reps, &s.TotalVolume)
	if err != nil {
		return RangeSummary{}, fmt.Errorf("querying summary: %w", err)
	}
	if s.Sets > 0 {
		s.AvgSetVolume = s.TotalVolume / float64(s.Sets)
	}
	return s, nil
}

// ExportRow is one line of the 4-column CSV export.
type ExportRow struct {
	Date     time.Time
	Exercise string
	Reps     int
	Weight   float64
}

// ExportRows returns sets in a date range with exercise names resolved,
// oldest first, for CSV export.
func (d *DB) ExportRows(start, end time.Time) ([]ExportRow, error) {
	rows, err := d.db.Query(
		`SELECT s.date, COALESCE(e.name, ''), s.reps, s.weight
		 FROM workout_sets s
		 LEFT JOIN exercises e ON e.id = s.exercise_id
		 WHERE s.date >= ? AND s.date < ?
		 ORDER BY s.date ASC`,
		fmtTime(start), fmtTime(end))
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}
	defer rows.Close()

	var result []ExportRow
	for rows.Next() {
		var (
			r    ExportRow
			date string
			name sql.NullString
		)
		if err := rows.Scan(&date, &name, &r.Reps, &r.Weight); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		if r.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		r.Exercise = name.String
		result = append(result, r)
	}
	return result, rows.Err()
}

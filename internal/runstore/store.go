// Package runstore persists planning run history in SQLite so job outcomes
// survive restarts.
package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gridpoint-eng/siteplan/internal/pipeline"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			stage TEXT,
			progress_pct DOUBLE NOT NULL DEFAULT 0,
			error TEXT,
			summary_json TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Summary is the compact result digest stored per run.
type Summary struct {
	PlacedCount    int     `json:"placed_count"`
	RequestedCount int     `json:"requested_count"`
	SuccessRatePct float64 `json:"success_rate_pct"`
	RoadLengthM    float64 `json:"road_length_m"`
	RoadCompliant  bool    `json:"road_compliant"`
	TotalCutM3     float64 `json:"total_cut_m3"`
	TotalFillM3    float64 `json:"total_fill_m3"`
}

// Record is one persisted run.
type Record struct {
	RunID       string
	Status      string
	Stage       string
	ProgressPct float64
	Error       string
	Summary     *Summary
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FromJob converts a pipeline snapshot into a storable record.
func FromJob(v pipeline.JobView) Record {
	rec := Record{
		RunID:       v.ID,
		Status:      string(v.Status),
		Stage:       string(v.Stage),
		ProgressPct: v.ProgressPct,
		Error:       v.Error,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   time.Now(),
	}
	if r := v.Result; r != nil {
		s := &Summary{}
		if r.Placement != nil {
			s.PlacedCount = r.Placement.PlacedCount
			s.RequestedCount = r.Placement.Requested
			s.SuccessRatePct = r.Placement.SuccessRatePct
		}
		if r.Roads != nil {
			s.RoadLengthM = r.Roads.TotalLengthM
			s.RoadCompliant = r.Roads.GradeCompliant
		}
		if r.Earthwork != nil {
			s.TotalCutM3 = r.Earthwork.TotalCutM3
			s.TotalFillM3 = r.Earthwork.TotalFillM3
		}
		rec.Summary = s
	}
	return rec
}

// SaveRun inserts or updates the record.
func (db *DB) SaveRun(rec Record) error {
	var summary any
	if rec.Summary != nil {
		b, err := json.Marshal(rec.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %v", err)
		}
		summary = string(b)
	}
	_, err := db.Exec(`
		INSERT INTO runs (run_id, status, stage, progress_pct, error, summary_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			stage = excluded.stage,
			progress_pct = excluded.progress_pct,
			error = excluded.error,
			summary_json = excluded.summary_json,
			updated_at = excluded.updated_at`,
		rec.RunID, rec.Status, rec.Stage, rec.ProgressPct, rec.Error, summary,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	return err
}

// GetRun returns the record, or sql.ErrNoRows when unknown.
func (db *DB) GetRun(runID string) (Record, error) {
	row := db.QueryRow(`
		SELECT run_id, status, stage, progress_pct, error, summary_json, created_at, updated_at
		FROM runs WHERE run_id = ?`, runID)
	return scanRecord(row.Scan)
}

// ListRuns returns up to limit records, newest first.
func (db *DB) ListRuns(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT run_id, status, stage, progress_pct, error, summary_json, created_at, updated_at
		FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func scanRecord(scan func(...any) error) (Record, error) {
	var rec Record
	var stage, errMsg, summary sql.NullString
	if err := scan(&rec.RunID, &rec.Status, &stage, &rec.ProgressPct,
		&errMsg, &summary, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	rec.Stage = stage.String
	rec.Error = errMsg.String
	if summary.Valid && summary.String != "" {
		rec.Summary = &Summary{}
		if err := json.Unmarshal([]byte(summary.String), rec.Summary); err != nil {
			return Record{}, fmt.Errorf("unmarshal summary for %s: %v", rec.RunID, err)
		}
	}
	return rec, nil
}

// Backup writes a consistent copy of the database to path.
func (db *DB) Backup(path string) error {
	_, err := db.Exec("VACUUM INTO ?", path)
	return err
}

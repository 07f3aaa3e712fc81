package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/orchestrator"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot has the requested ID.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrIncompatibleVersion is returned for snapshots written by an exporter whose
	// major version differs from the running one.
	ErrIncompatibleVersion = errors.New("incompatible snapshot version")
)

// Record is the summary row of an archived snapshot.
type Record struct {
	ID           string    `json:"id" yaml:"id"`
	Version      string    `json:"version" yaml:"version"`
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	ExportedAt   time.Time `json:"exported_at" yaml:"exported_at"`
	ArchivedAt   time.Time `json:"archived_at" yaml:"archived_at"`
	ProfileCount int       `json:"profile_count" yaml:"profile_count"`
	ActiveSlug   string    `json:"active_slug,omitempty" yaml:"active_slug,omitempty"`
	SessionCount int       `json:"session_count" yaml:"session_count"`
}

// Switch is one archived history entry.
type Switch struct {
	SnapshotID string         `json:"snapshot_id"`
	EntryID    string         `json:"entry_id"`
	Slug       string         `json:"slug"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   *time.Duration `json:"duration,omitempty"`
}

// CheckVersion reports whether a snapshot written with version v can be read by this
// build.
func CheckVersion(v string) error {
	current, err := semver.NewVersion(orchestrator.ExportVersion)
	if err != nil {
		return fmt.Errorf("parse export version: %w", err)
	}
	got, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w %q: %w", ErrIncompatibleVersion, v, err)
	}
	c, err := semver.NewConstraint(fmt.Sprintf("^%d", current.Major()))
	if err != nil {
		return err
	}
	if !c.Check(got) {
		return fmt.Errorf("%w %s: this build reads %s", ErrIncompatibleVersion, got, c)
	}
	return nil
}

// Save archives export under a fresh ID.
func (a *Archive) Save(ctx context.Context, export orchestrator.Export, label string) (Record, error) {
	if err := CheckVersion(export.Version); err != nil {
		return Record{}, err
	}
	payload, err := json.Marshal(export)
	if err != nil {
		return Record{}, fmt.Errorf("marshal export: %w", err)
	}

	rec := Record{
		ID:           uuid.NewString(),
		Version:      export.Version,
		Label:        label,
		ExportedAt:   export.ExportedAt.UTC(),
		ArchivedAt:   a.now().UTC(),
		ProfileCount: export.ProfileCount,
		ActiveSlug:   export.ActiveSlug,
		SessionCount: export.SessionCount,
	}

	err = a.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (id, version, label, exported_at, archived_at,
				profile_count, active_slug, session_count, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Version, rec.Label,
			formatTime(rec.ExportedAt), formatTime(rec.ArchivedAt),
			rec.ProfileCount, rec.ActiveSlug, rec.SessionCount, string(payload),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		for i, h := range export.History {
			var duration sql.NullInt64
			if h.Duration != nil {
				duration = sql.NullInt64{Int64: int64(*h.Duration), Valid: true}
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO switch_history (snapshot_id, seq, entry_id, slug, started_at, duration_ns)
				VALUES (?, ?, ?, ?, ?, ?)`,
				rec.ID, i, h.ID, h.Slug, formatTime(h.StartedAt), duration,
			)
			if err != nil {
				return fmt.Errorf("insert history entry %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// List returns up to limit snapshots, newest first. A limit <= 0 returns all.
func (a *Archive) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, version, label, exported_at, archived_at, profile_count, active_slug, session_count
		FROM snapshots
		ORDER BY archived_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get reads a snapshot back. Snapshots from an incompatible exporter are refused.
func (a *Archive) Get(ctx context.Context, id string) (Record, orchestrator.Export, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, version, label, exported_at, archived_at, profile_count, active_slug, session_count, payload
		FROM snapshots WHERE id = ?`, id)

	var (
		rec                    Record
		exportedAt, archivedAt string
		payload                string
	)
	err := row.Scan(&rec.ID, &rec.Version, &rec.Label, &exportedAt, &archivedAt,
		&rec.ProfileCount, &rec.ActiveSlug, &rec.SessionCount, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, orchestrator.Export{}, fmt.Errorf("%s: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return Record{}, orchestrator.Export{}, fmt.Errorf("get snapshot: %w", err)
	}
	if rec.ExportedAt, err = parseTime(exportedAt); err != nil {
		return Record{}, orchestrator.Export{}, err
	}
	if rec.ArchivedAt, err = parseTime(archivedAt); err != nil {
		return Record{}, orchestrator.Export{}, err
	}

	if err := CheckVersion(rec.Version); err != nil {
		return rec, orchestrator.Export{}, err
	}

	var export orchestrator.Export
	if err := json.Unmarshal([]byte(payload), &export); err != nil {
		return rec, orchestrator.Export{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return rec, export, nil
}

// Switches returns every archived switch into slug, oldest first.
func (a *Archive) Switches(ctx context.Context, slug string) ([]Switch, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT snapshot_id, entry_id, slug, started_at, duration_ns
		FROM switch_history
		WHERE slug = ?
		ORDER BY started_at, seq`, slug)
	if err != nil {
		return nil, fmt.Errorf("list switches: %w", err)
	}
	defer rows.Close()

	var out []Switch
	for rows.Next() {
		var (
			s         Switch
			startedAt string
			duration  sql.NullInt64
		)
		if err := rows.Scan(&s.SnapshotID, &s.EntryID, &s.Slug, &startedAt, &duration); err != nil {
			return nil, fmt.Errorf("scan switch: %w", err)
		}
		if s.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if duration.Valid {
			d := time.Duration(duration.Int64)
			s.Duration = &d
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a snapshot and its history.
func (a *Archive) Delete(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", id, ErrSnapshotNotFound)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec                    Record
		exportedAt, archivedAt string
		err                    error
	)
	if err := rows.Scan(&rec.ID, &rec.Version, &rec.Label, &exportedAt, &archivedAt,
		&rec.ProfileCount, &rec.ActiveSlug, &rec.SessionCount); err != nil {
		return Record{}, fmt.Errorf("scan snapshot: %w", err)
	}
	if rec.ExportedAt, err = parseTime(exportedAt); err != nil {
		return Record{}, err
	}
	if rec.ArchivedAt, err = parseTime(archivedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	ptr "voxedit/internal/lib/utils/pointers"
	"voxedit/internal/models"
	"voxedit/internal/storage"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Stop() error {
	return s.db.Close()
}

// SaveProject registers a loaded project in the audit registry.
func (s *Storage) SaveProject(ctx context.Context, title, filePath string, duration float64) (int64, error) {
	const op = "storage.sqlite.SaveProject"

	stmt, err := s.db.Prepare("INSERT INTO projects(title, file_path, duration_sec, loaded_at) VALUES(?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, title, filePath, duration, time.Now().UnixMilli())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrProjectExists)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// SaveEdit appends one edit record to the audit trail.
func (s *Storage) SaveEdit(ctx context.Context, edit models.SegmentEdit) (int64, error) {
	const op = "storage.sqlite.SaveEdit"

	if edit.SegmentID == 0 {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrEditMalformed)
	}

	stmt, err := s.db.Prepare(
		"INSERT INTO edits(segment_id, field, text, speaker_id, start_sec, end_sec, author, created_at) " +
			"VALUES(?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	var (
		text              sql.NullString
		speakerID         sql.NullInt64
		startSec, stopSec sql.NullFloat64
	)
	if edit.Text != nil {
		text = sql.NullString{String: *edit.Text, Valid: true}
	}
	if edit.SpeakerID != nil {
		speakerID = sql.NullInt64{Int64: *edit.SpeakerID, Valid: true}
	}
	if edit.Timing != nil {
		startSec = sql.NullFloat64{Float64: edit.Timing.Start, Valid: true}
		stopSec = sql.NullFloat64{Float64: edit.Timing.End, Valid: true}
	}

	res, err := stmt.ExecContext(ctx,
		edit.SegmentID, string(edit.Field),
		text, speakerID, startSec, stopSec,
		edit.Author, edit.Timestamp.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

// Edits returns the whole audit trail in insertion order.
//
// If error occures during parsing, returnes already parsed edits.
func (s *Storage) Edits(ctx context.Context) ([]models.SegmentEdit, error) {
	const op = "storage.sqlite.Edits"

	stmt, err := s.db.Prepare(
		"SELECT segment_id, field, text, speaker_id, start_sec, end_sec, author, created_at " +
			"FROM edits ORDER BY id",
	)
	if err != nil {
		return []models.SegmentEdit{}, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return []models.SegmentEdit{}, fmt.Errorf("%s: %w", op, err)
	}

	edits := make([]models.SegmentEdit, 0)
	var (
		edit              models.SegmentEdit
		field             string
		text              sql.NullString
		speakerID         sql.NullInt64
		startSec, stopSec sql.NullFloat64
		createdMs         int64
	)
	for rows.Next() {
		if err = rows.Scan(&edit.SegmentID, &field, &text, &speakerID, &startSec, &stopSec, &edit.Author, &createdMs); err != nil {
			return edits, fmt.Errorf("%s: %w", op, err)
		}
		edit.Field = models.EditField(field)
		edit.Text = nil
		edit.SpeakerID = nil
		edit.Timing = nil
		if text.Valid {
			edit.Text = ptr.Ptr(text.String)
		}
		if speakerID.Valid {
			edit.SpeakerID = ptr.Ptr(speakerID.Int64)
		}
		if startSec.Valid && stopSec.Valid {
			edit.Timing = &models.TimeRange{Start: startSec.Float64, End: stopSec.Float64}
		}
		edit.Timestamp = time.UnixMilli(createdMs)

		edits = append(edits, edit)
	}

	return edits, nil
}

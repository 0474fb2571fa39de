package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"

	"voxedit/internal/lib/logger/sl"
	"voxedit/internal/models"
	"voxedit/internal/service"
)

// Ledger is the append-only audit log of segment edits.
//
// The project store keeps the authoritative field values;
// the ledger records what changed and when. Entries are
// never mutated or removed.
type Ledger struct {
	log     *slog.Logger
	storage EditStorage

	mutex sync.RWMutex
	edits []models.SegmentEdit
}

// EditStorage persists accepted edits as a durable audit trail.
type EditStorage interface {
	SaveEdit(ctx context.Context, edit models.SegmentEdit) (int64, error)
	Edits(ctx context.Context) ([]models.SegmentEdit, error)
}

// New returns a new Ledger.
//
// storage may be nil, then edits are kept in memory only.
func New(
	log *slog.Logger,
	storage EditStorage,
) *Ledger {
	return &Ledger{
		log:     log,
		storage: storage,
		edits:   make([]models.SegmentEdit, 0),
	}
}

// Append records an accepted edit. It is the sole mutator
// and fails only on malformed input.
func (l *Ledger) Append(ctx context.Context, edit models.SegmentEdit) error {
	const op = "Ledger.Append"

	log := l.log.With(
		slog.String("op", op),
	)

	if edit.SegmentID == 0 {
		return fmt.Errorf("%s: missing segment id: %w", op, service.ErrMalformedEdit)
	}
	switch edit.Field {
	case models.EditText, models.EditSpeaker, models.EditTiming:
	default:
		return fmt.Errorf("%s: field %q: %w", op, edit.Field, service.ErrMalformedEdit)
	}

	l.mutex.Lock()
	l.edits = append(l.edits, edit)
	length := len(l.edits)
	l.mutex.Unlock()

	log.Debug("appended edit",
		slog.Int64("segmentID", edit.SegmentID),
		slog.String("field", string(edit.Field)),
		slog.Int("length", length),
	)

	if l.storage != nil {
		// Audit write is best-effort: the in-memory log
		// stays authoritative for history reads.
		if _, err := l.storage.SaveEdit(ctx, edit); err != nil {
			log.Warn("failed to persist edit", sl.Err(err))
		}
	}

	return nil
}

// Restore seeds the in-memory log from the audit trail.
// Called once on startup, before any Append.
func (l *Ledger) Restore(ctx context.Context) error {
	const op = "Ledger.Restore"

	if l.storage == nil {
		return nil
	}

	edits, err := l.storage.Edits(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	l.mutex.Lock()
	l.edits = append(l.edits, edits...)
	length := len(l.edits)
	l.mutex.Unlock()

	l.log.Info("restored edit ledger", slog.String("op", op), slog.Int("length", length))

	return nil
}

// Len returns the number of recorded edits.
func (l *Ledger) Len() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return len(l.edits)
}

// HistoryFor returns the edits of one segment in insertion
// order. The sequence is lazy and restartable; each use
// iterates over the log as of that moment.
func (l *Ledger) HistoryFor(segmentID int64) iter.Seq[models.SegmentEdit] {
	return func(yield func(models.SegmentEdit) bool) {
		l.mutex.RLock()
		snapshot := make([]models.SegmentEdit, len(l.edits))
		copy(snapshot, l.edits)
		l.mutex.RUnlock()

		for _, e := range snapshot {
			if e.SegmentID != segmentID {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

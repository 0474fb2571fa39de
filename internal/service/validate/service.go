package service

import (
	"fmt"
	"strings"
	"time"

	"voxedit/internal/models"
	"voxedit/internal/service"
)

// Validator checks segment invariants before an edit is committed.
// It is pure: no method mutates its arguments or keeps state
// between calls.
type Validator struct {
	// Allowed word count drift between original
	// and edited text.
	ToleranceWords int
}

const defaultToleranceWords = 1

// Default words-per-second rate for advisory
// spoken duration estimates.
const speechRate = 2.5

func New(toleranceWords int) Validator {
	if toleranceWords < 0 {
		toleranceWords = defaultToleranceWords
	}
	return Validator{ToleranceWords: toleranceWords}
}

// WordCount splits on whitespace runs and discards empty tokens.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// EstimateSpokenDuration is advisory only and never
// used as an admission check.
func EstimateSpokenDuration(text string) time.Duration {
	return time.Duration(float64(WordCount(text)) / speechRate * float64(time.Second))
}

// TextEdit checks the word-count drift bound between
// the immutable original text and the proposed edit.
func (v Validator) TextEdit(original, edited string) error {
	const op = "Validate.TextEdit"

	diff := WordCount(edited) - WordCount(original)
	if diff < 0 {
		diff = -diff
	}
	if diff > v.ToleranceWords {
		return fmt.Errorf("%s: drift %d exceeds tolerance %d: %w",
			op, diff, v.ToleranceWords, service.ErrWordCountExceeded)
	}

	return nil
}

// TimingEdit checks a proposed [newStart, newEnd) range against
// the adjacent neighbors. Segments are kept sorted by order, so
// only the immediate neighbors can intersect.
func (v Validator) TimingEdit(newStart, newEnd float64, prev, next *models.VideoSegment) error {
	const op = "Validate.TimingEdit"

	if newEnd <= newStart || newStart < 0 {
		return fmt.Errorf("%s: [%g, %g): %w", op, newStart, newEnd, service.ErrInvalidTimeRange)
	}
	if prev != nil && newStart < prev.End {
		return fmt.Errorf("%s: start %g before previous end %g: %w",
			op, newStart, prev.End, service.ErrTimingOverlap)
	}
	if next != nil && newEnd > next.Start {
		return fmt.Errorf("%s: end %g after next start %g: %w",
			op, newEnd, next.Start, service.ErrTimingOverlap)
	}

	return nil
}

// Ordering checks that order values form the contiguous
// run 1..N over the given order-sorted segments.
func (v Validator) Ordering(segments []models.VideoSegment) error {
	const op = "Validate.Ordering"

	for i, s := range segments {
		if s.Order != i+1 {
			return fmt.Errorf("%s: position %d has order %d: %w",
				op, i, s.Order, service.ErrOrderingGap)
		}
	}

	return nil
}

// Project checks the whole aggregate: ordering, pairwise
// non-overlap, per-segment ranges, word-count bound and
// speaker references. Used at load.
func (v Validator) Project(p models.VideoProject) error {
	const op = "Validate.Project"

	if err := v.Ordering(p.Segments); err != nil {
		return err
	}

	speakers := make(map[int64]struct{}, len(p.Speakers))
	for _, sp := range p.Speakers {
		speakers[sp.ID] = struct{}{}
	}

	for i, s := range p.Segments {
		if s.End <= s.Start || s.Start < 0 {
			return fmt.Errorf("%s: segment %d [%g, %g): %w",
				op, s.ID, s.Start, s.End, service.ErrInvalidTimeRange)
		}
		if i > 0 && s.Start < p.Segments[i-1].End {
			return fmt.Errorf("%s: segment %d overlaps segment %d: %w",
				op, s.ID, p.Segments[i-1].ID, service.ErrTimingOverlap)
		}
		if err := v.TextEdit(s.OriginalText, s.EditedText); err != nil {
			return err
		}
		if s.SpeakerID != nil {
			if _, ok := speakers[*s.SpeakerID]; !ok {
				return fmt.Errorf("%s: segment %d references speaker %d: %w",
					op, s.ID, *s.SpeakerID, service.ErrSpeakerNotFound)
			}
		}
	}

	return nil
}

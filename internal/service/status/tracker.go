package service

import (
	"sync"
	"time"

	"voxedit/internal/models"
)

// Tracker maps segment id to the latest synthesis status.
//
// Written only by the synthesis queue manager at its
// transition points; each write replaces the whole entry,
// so readers never see a torn update. Segments never
// submitted have no entry.
type Tracker struct {
	mutex   sync.RWMutex
	entries map[int64]models.SynthesisStatus
}

func New() *Tracker {
	return &Tracker{
		entries: make(map[int64]models.SynthesisStatus),
	}
}

// Set replaces the entry for the status' segment.
func (t *Tracker) Set(status models.SynthesisStatus) {
	status.UpdatedAt = time.Now()

	t.mutex.Lock()
	t.entries[status.SegmentID] = status
	t.mutex.Unlock()
}

// Get returns the entry for a segment, if any.
func (t *Tracker) Get(segmentID int64) (models.SynthesisStatus, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	s, ok := t.entries[segmentID]
	return s, ok
}

// Delete removes the entry, returning the segment
// to the "never submitted" condition.
func (t *Tracker) Delete(segmentID int64) {
	t.mutex.Lock()
	delete(t.entries, segmentID)
	t.mutex.Unlock()
}

// All returns a copy of the whole map.
func (t *Tracker) All() map[int64]models.SynthesisStatus {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	out := make(map[int64]models.SynthesisStatus, len(t.entries))
	for id, s := range t.entries {
		out[id] = s
	}
	return out
}

// InProgressCount returns the number of entries
// currently in the in-progress state.
func (t *Tracker) InProgressCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	n := 0
	for _, s := range t.entries {
		if s.State == models.JobInProgress {
			n++
		}
	}
	return n
}

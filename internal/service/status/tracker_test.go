package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxedit/internal/models"
)

func TestTrackerAbsentByDefault(t *testing.T) {
	tr := New()

	_, ok := tr.Get(1)
	assert.False(t, ok)
	assert.Empty(t, tr.All())
}

func TestTrackerSetReplacesWholeEntry(t *testing.T) {
	tr := New()

	tr.Set(models.SynthesisStatus{SegmentID: 1, State: models.JobFailed, Error: "boom"})
	tr.Set(models.SynthesisStatus{SegmentID: 1, State: models.JobPending})

	s, ok := tr.Get(1)
	require.True(t, ok)
	assert.Equal(t, models.JobPending, s.State)
	assert.Empty(t, s.Error, "stale error must not survive replacement")
	assert.False(t, s.UpdatedAt.IsZero())
}

func TestTrackerDelete(t *testing.T) {
	tr := New()

	tr.Set(models.SynthesisStatus{SegmentID: 2, State: models.JobPending})
	tr.Delete(2)

	_, ok := tr.Get(2)
	assert.False(t, ok)
}

func TestTrackerAllIsCopy(t *testing.T) {
	tr := New()

	tr.Set(models.SynthesisStatus{SegmentID: 3, State: models.JobCompleted})

	all := tr.All()
	all[3] = models.SynthesisStatus{SegmentID: 3, State: models.JobFailed}

	s, ok := tr.Get(3)
	require.True(t, ok)
	assert.Equal(t, models.JobCompleted, s.State)
}

func TestTrackerConcurrentWrites(t *testing.T) {
	tr := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tr.Set(models.SynthesisStatus{SegmentID: id, State: models.JobInProgress})
		}(int64(i))
	}
	wg.Wait()

	assert.Len(t, tr.All(), 50)
	assert.Equal(t, 50, tr.InProgressCount())
}

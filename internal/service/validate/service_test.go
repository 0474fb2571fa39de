package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ptr "voxedit/internal/lib/utils/pointers"
	"voxedit/internal/models"
	"voxedit/internal/service"
)

func TestWordCount(t *testing.T) {
	testCases := []struct {
		desc   string
		text   string
		expect int
	}{
		{desc: "empty", text: "", expect: 0},
		{desc: "whitespace only", text: " \t \n ", expect: 0},
		{desc: "single word", text: "hello", expect: 1},
		{desc: "whitespace runs", text: "  one   two\tthree\nfour  ", expect: 4},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			assert.Equal(t, tC.expect, WordCount(tC.text))
		})
	}
}

func TestTextEdit(t *testing.T) {
	v := New(1)

	testCases := []struct {
		desc     string
		original string
		edited   string
		wantErr  error
	}{
		{
			desc:     "same count",
			original: "one two three",
			edited:   "uno dos tres",
		},
		{
			desc:     "one word more",
			original: "one two three",
			edited:   "one two three four",
		},
		{
			desc:     "one word less",
			original: "one two three",
			edited:   "one two",
		},
		{
			desc:     "two words more",
			original: "one two three",
			edited:   "one two three four five",
			wantErr:  service.ErrWordCountExceeded,
		},
		{
			desc:     "two words less",
			original: "one two three",
			edited:   "one",
			wantErr:  service.ErrWordCountExceeded,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			err := v.TextEdit(tC.original, tC.edited)
			if tC.wantErr != nil {
				assert.ErrorIs(t, err, tC.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTextEditScenario(t *testing.T) {
	// 10 words -> 11 accepted, 10 -> 13 rejected.
	v := New(1)

	original := "the quick brown fox jumps over the lazy dog again"
	require.Equal(t, 10, WordCount(original))

	eleven := original + " tonight"
	assert.NoError(t, v.TextEdit(original, eleven))

	thirteen := original + " late last night"
	assert.ErrorIs(t, v.TextEdit(original, thirteen), service.ErrWordCountExceeded)
}

func TestTimingEdit(t *testing.T) {
	v := New(1)

	prev := &models.VideoSegment{Order: 1, Start: 0, End: 5}
	next := &models.VideoSegment{Order: 3, Start: 10, End: 15}

	testCases := []struct {
		desc       string
		start, end float64
		wantErr    error
	}{
		{desc: "fits exactly", start: 5, end: 10},
		{desc: "fits inside", start: 6, end: 9},
		{desc: "end before start", start: 7, end: 7, wantErr: service.ErrInvalidTimeRange},
		{desc: "negative start", start: -1, end: 4, wantErr: service.ErrInvalidTimeRange},
		{desc: "overlaps previous", start: 4.5, end: 9, wantErr: service.ErrTimingOverlap},
		{desc: "overlaps next", start: 6, end: 10.5, wantErr: service.ErrTimingOverlap},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			err := v.TimingEdit(tC.start, tC.end, prev, next)
			if tC.wantErr != nil {
				assert.ErrorIs(t, err, tC.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimingEditNoNeighbors(t *testing.T) {
	v := New(1)

	assert.NoError(t, v.TimingEdit(0, 100, nil, nil))
}

func TestOrdering(t *testing.T) {
	v := New(1)

	testCases := []struct {
		desc    string
		orders  []int
		wantErr error
	}{
		{desc: "empty", orders: []int{}},
		{desc: "contiguous", orders: []int{1, 2, 3}},
		{desc: "gap", orders: []int{1, 3, 4}, wantErr: service.ErrOrderingGap},
		{desc: "zero based", orders: []int{0, 1, 2}, wantErr: service.ErrOrderingGap},
		{desc: "duplicate", orders: []int{1, 2, 2}, wantErr: service.ErrOrderingGap},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			segments := make([]models.VideoSegment, len(tC.orders))
			for i, o := range tC.orders {
				segments[i] = models.VideoSegment{Order: o}
			}
			err := v.Ordering(segments)
			if tC.wantErr != nil {
				assert.ErrorIs(t, err, tC.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProject(t *testing.T) {
	v := New(1)

	valid := models.VideoProject{
		Speakers: []models.Speaker{{ID: 1, Name: "narrator"}},
		Segments: []models.VideoSegment{
			{ID: 1, Order: 1, Start: 0, End: 5, OriginalText: "a b", EditedText: "a b", SpeakerID: ptr.Ptr[int64](1)},
			{ID: 2, Order: 2, Start: 5, End: 10, OriginalText: "c d", EditedText: "c d"},
		},
	}
	require.NoError(t, v.Project(valid))

	overlapping := valid
	overlapping.Segments = []models.VideoSegment{
		{ID: 1, Order: 1, Start: 0, End: 6, OriginalText: "a", EditedText: "a"},
		{ID: 2, Order: 2, Start: 5, End: 10, OriginalText: "b", EditedText: "b"},
	}
	assert.ErrorIs(t, v.Project(overlapping), service.ErrTimingOverlap)

	unknownSpeaker := valid
	unknownSpeaker.Segments = []models.VideoSegment{
		{ID: 1, Order: 1, Start: 0, End: 5, OriginalText: "a", EditedText: "a", SpeakerID: ptr.Ptr[int64](42)},
	}
	assert.ErrorIs(t, v.Project(unknownSpeaker), service.ErrSpeakerNotFound)
}

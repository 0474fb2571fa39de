package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zencoder/go-dash/v3/mpd"

	"voxedit/internal/lib/logger/slogdiscard"
	ptr "voxedit/internal/lib/utils/pointers"
	"voxedit/internal/models"
	"voxedit/internal/service"
)

type stubSource struct {
	project models.VideoProject
	err     error
}

func (s *stubSource) Snapshot() (models.VideoProject, error) {
	return s.project, s.err
}

func testProject() models.VideoProject {
	return models.VideoProject{
		Video: models.VideoInfo{ID: 1, Title: "clip", FilePath: "/media/clip.mp4", Duration: 10},
		Segments: []models.VideoSegment{
			{
				ID: 1, Order: 1, Start: 0, End: 5,
				EditedText: "first segment words here",
				Status:     models.SegmentSynthesized,
				TTS:        &models.TTSMetadata{AudioURL: "/out/segment_0001.mp4", SynthesisStatus: "completed"},
			},
			{
				ID: 2, Order: 2, Start: 5, End: 10,
				EditedText: "second segment words here",
				Status:     models.SegmentProcessed,
			},
		},
	}
}

func TestManifestMixesSources(t *testing.T) {
	p := New(slogdiscard.NewDiscardLogger(), &stubSource{project: testProject()}, "http://cdn.local", 2*time.Second)

	man, err := p.Manifest(context.Background())
	require.NoError(t, err)
	require.Len(t, man.Periods, 2)

	assert.Equal(t, []string{"http://cdn.local/out/segment_0001.mp4"}, man.Periods[0].BaseURL)
	assert.Equal(t, []string{"http://cdn.local/media/clip.mp4"}, man.Periods[1].BaseURL)

	assert.Equal(t, "1", man.Periods[0].ID)
	assert.Equal(t, mpd.Duration(5*time.Second), man.Periods[0].Duration)
	assert.Equal(t, ptr.Ptr(mpd.Duration(5*time.Second)), man.Periods[1].Start)
}

func TestRender(t *testing.T) {
	p := New(slogdiscard.NewDiscardLogger(), &stubSource{project: testProject()}, "", 2*time.Second)

	out, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "<MPD")
	assert.Contains(t, out, "urn:mpeg:dash:profile:isoff-on-demand:2011")
}

func TestManifestNotLoaded(t *testing.T) {
	p := New(slogdiscard.NewDiscardLogger(), &stubSource{err: service.ErrProjectNotLoaded}, "", 2*time.Second)

	_, err := p.Manifest(context.Background())
	assert.ErrorIs(t, err, service.ErrProjectNotLoaded)
}

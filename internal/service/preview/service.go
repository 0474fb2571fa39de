package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/zencoder/go-dash/v3/mpd"

	ptr "voxedit/internal/lib/utils/pointers"
	"voxedit/internal/models"
)

// Preview assembles a static DASH manifest for the edited cut:
// one period per segment, pointing at the synthesized clip when
// one exists and at the source video otherwise.
type Preview struct {
	log        *slog.Logger
	store      ProjectSource
	baseUrl    string
	bufferTime time.Duration
}

type ProjectSource interface {
	Snapshot() (models.VideoProject, error)
}

// New returns new Preview.
func New(
	log *slog.Logger,
	store ProjectSource,
	baseUrl string,
	bufferTime time.Duration,
) *Preview {
	return &Preview{
		log:        log,
		store:      store,
		baseUrl:    baseUrl,
		bufferTime: bufferTime,
	}
}

// Manifest builds the manifest from the current project state.
func (p *Preview) Manifest(_ context.Context) (*mpd.MPD, error) {
	const op = "Preview.Manifest"

	log := p.log.With(
		slog.String("op", op),
	)

	project, err := p.store.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	totalDur := mpd.Duration(time.Duration(project.Video.Duration * float64(time.Second)))
	bufferTimeMPD := mpd.Duration(p.bufferTime)

	man := mpd.NewMPD(
		mpd.DASH_PROFILE_ONDEMAND,
		totalDur.String(),
		bufferTimeMPD.String(),
	)
	man.Periods = make([]*mpd.Period, len(project.Segments))

	synthesized := 0
	for i, segment := range project.Segments {
		src := project.Video.FilePath
		if segment.TTS != nil && segment.TTS.AudioURL != "" && segment.Status == models.SegmentSynthesized {
			src = segment.TTS.AudioURL
			synthesized++
		}

		man.Periods[i] = &mpd.Period{
			ID:       strconv.Itoa(segment.Order),
			Duration: mpd.Duration(segment.Duration()),
			Start:    ptr.Ptr(mpd.Duration(time.Duration(segment.Start * float64(time.Second)))),
			BaseURL:  []string{p.baseUrl + src},
			AdaptationSets: []*mpd.AdaptationSet{{
				ID:               ptr.Ptr("0"),
				ContentType:      ptr.Ptr("video"),
				SegmentAlignment: ptr.Ptr(true),
				Representations: []*mpd.Representation{{
					ID:        ptr.Ptr("0"),
					Bandwidth: ptr.Ptr[int64](2_000_000),
					Codecs:    ptr.Ptr("avc1.42E01E,mp4a.40.2"),
					CommonAttributesAndElements: mpd.CommonAttributesAndElements{
						MimeType: ptr.Ptr(mpd.DASH_MIME_TYPE_VIDEO_MP4),
					},
				}},
				CommonAttributesAndElements: mpd.CommonAttributesAndElements{
					StartWithSAP: ptr.Ptr[int64](1),
				},
			}},
		}
	}

	log.Debug("built preview manifest",
		slog.Int("periods", len(man.Periods)),
		slog.Int("synthesized", synthesized),
	)

	return man, nil
}

// Render returns the manifest as an XML document.
func (p *Preview) Render(ctx context.Context) (string, error) {
	const op = "Preview.Render"

	man, err := p.Manifest(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	out, err := man.WriteToString()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"voxedit/internal/lib/logger/sl"
	ptr "voxedit/internal/lib/utils/pointers"
	"voxedit/internal/models"
	"voxedit/internal/service"
	validateSrv "voxedit/internal/service/validate"
)

// Project is the in-memory store of the single loaded
// VideoProject aggregate.
//
// All mutations run under one mutex, so every ApplyEdit
// observes the latest committed state and the
// "validate-then-commit" pair is atomic. Reads return
// copies; callers never get a reference into the store.
type Project struct {
	log       *slog.Logger
	validator validateSrv.Validator
	ledger    Ledger
	storage   ProjectStorage

	mutex   sync.RWMutex
	loaded  bool
	project models.VideoProject
}

// Ledger records accepted edits.
type Ledger interface {
	Append(ctx context.Context, edit models.SegmentEdit) error
}

// ProjectStorage registers loaded projects for audit.
// Optional; the store never reads it back.
type ProjectStorage interface {
	SaveProject(ctx context.Context, title string, filePath string, duration float64) (int64, error)
}

// New returns a new project store.
//
// storage may be nil.
func New(
	log *slog.Logger,
	validator validateSrv.Validator,
	ledger Ledger,
	storage ProjectStorage,
) *Project {
	return &Project{
		log:       log,
		validator: validator,
		ledger:    ledger,
		storage:   storage,
	}
}

const defaultSpeakerName = "Speaker 1"

// Ingest builds a VideoProject from an externally computed
// transcript payload and loads it. The first video of the
// payload becomes the project video. Silence segments are
// kept but never synthesizable. Segments without a speaker
// get the default one.
func (p *Project) Ingest(ctx context.Context, in models.ProjectIn) (models.VideoProject, error) {
	const op = "Project.Ingest"

	log := p.log.With(
		slog.String("op", op),
	)

	if len(in.Videos) == 0 {
		return models.VideoProject{}, fmt.Errorf("%s: payload has no videos: %w", op, service.ErrMalformedEdit)
	}

	video := in.Videos[0]

	speakers := in.Speakers
	if len(speakers) == 0 {
		speakers = []models.Speaker{{
			ID:   1,
			Name: defaultSpeakerName,
			Role: "narrator",
		}}
		log.Info("no speakers supplied, created default")
	}
	defaultSpeakerID := speakers[0].ID

	segments := make([]models.VideoSegment, 0, len(video.Segments))
	for i, s := range video.Segments {
		segment := models.VideoSegment{
			ID:           int64(i + 1),
			VideoID:      1,
			Order:        i + 1,
			Start:        s.Start,
			End:          s.End,
			OriginalText: s.Text,
			EditedText:   s.Text,
			IsSilence:    s.IsSilence,
			Status:       models.SegmentProcessed,
		}
		if !s.IsSilence {
			segment.SpeakerID = ptr.Ptr(defaultSpeakerID)
		}
		if s.Confidence != 0 || len(s.Words) > 0 {
			segment.Meta = &models.SegmentMeta{
				Confidence: s.Confidence,
				Words:      slices.Clone(s.Words),
			}
		}
		segments = append(segments, segment)
	}

	project := models.VideoProject{
		Video: models.VideoInfo{
			ID:          1,
			Title:       video.Title,
			FilePath:    video.FilePath,
			Duration:    video.Duration,
			AspectRatio: video.AspectRatio,
			Resolution:  video.Resolution,
		},
		Segments:  segments,
		Speakers:  speakers,
		TTSConfig: in.TTSConfig,
		Info: &models.ProjectInfo{
			Version:    1,
			LastEdited: time.Now(),
			Author:     in.Author,
			Language:   in.Language,
		},
	}

	if err := p.Load(ctx, project); err != nil {
		return models.VideoProject{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("ingested project",
		slog.String("title", video.Title),
		slog.Int("segments", len(segments)),
		slog.Int("speakers", len(speakers)),
	)

	return p.snapshot(), nil
}

// Load validates the aggregate and replaces state wholesale.
func (p *Project) Load(ctx context.Context, project models.VideoProject) error {
	const op = "Project.Load"

	log := p.log.With(
		slog.String("op", op),
	)

	// Keep segments order-sorted; only adjacent neighbors
	// are checked on timing edits.
	slices.SortFunc(project.Segments, func(a, b models.VideoSegment) int {
		return a.Order - b.Order
	})

	if err := p.validator.Project(project); err != nil {
		log.Warn("rejected project", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mutex.Lock()
	p.project = cloneProject(project)
	p.loaded = true
	p.mutex.Unlock()

	log.Info("loaded project",
		slog.String("title", project.Video.Title),
		slog.Int("segments", len(project.Segments)),
	)

	if p.storage != nil {
		if _, err := p.storage.SaveProject(ctx, project.Video.Title, project.Video.FilePath, project.Video.Duration); err != nil {
			log.Warn("failed to register project", sl.Err(err))
		}
	}

	return nil
}

// Reset discards the loaded project.
func (p *Project) Reset() {
	p.mutex.Lock()
	p.project = models.VideoProject{}
	p.loaded = false
	p.mutex.Unlock()
}

// Snapshot returns a copy of the whole aggregate.
func (p *Project) Snapshot() (models.VideoProject, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.loaded {
		return models.VideoProject{}, service.ErrProjectNotLoaded
	}

	return cloneProject(p.project), nil
}

// Segment returns a copy of one segment.
func (p *Project) Segment(id int64) (models.VideoSegment, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.loaded {
		return models.VideoSegment{}, service.ErrProjectNotLoaded
	}

	i := p.indexOf(id)
	if i < 0 {
		return models.VideoSegment{}, service.ErrSegmentNotFound
	}

	return cloneSegment(p.project.Segments[i]), nil
}

// Segments returns copies of all segments in order.
func (p *Project) Segments() ([]models.VideoSegment, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.loaded {
		return nil, service.ErrProjectNotLoaded
	}

	out := make([]models.VideoSegment, 0, len(p.project.Segments))
	for _, s := range p.project.Segments {
		out = append(out, cloneSegment(s))
	}
	return out, nil
}

// Speaker returns a copy of one speaker.
func (p *Project) Speaker(id int64) (models.Speaker, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.loaded {
		return models.Speaker{}, service.ErrProjectNotLoaded
	}

	for _, sp := range p.project.Speakers {
		if sp.ID == id {
			return cloneSpeaker(sp), nil
		}
	}
	return models.Speaker{}, service.ErrSpeakerNotFound
}

// TTSConfig returns the project synthesis defaults, if set.
func (p *Project) TTSConfig() (models.TTSConfiguration, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.loaded || p.project.TTSConfig == nil {
		return models.TTSConfiguration{}, false
	}
	return *p.project.TTSConfig, true
}

// VideoInfo returns the source video descriptor.
func (p *Project) VideoInfo() (models.VideoInfo, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.loaded {
		return models.VideoInfo{}, service.ErrProjectNotLoaded
	}
	return p.project.Video, nil
}

// ApplyEdit validates the edit against current state, mutates
// the addressed field and appends to the ledger. Either both
// happen or neither is observable.
func (p *Project) ApplyEdit(ctx context.Context, edit models.SegmentEdit) (models.VideoSegment, error) {
	const op = "Project.ApplyEdit"

	log := p.log.With(
		slog.String("op", op),
		slog.Int64("segmentID", edit.SegmentID),
	)

	if edit.Timestamp.IsZero() {
		edit.Timestamp = time.Now()
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.loaded {
		return models.VideoSegment{}, service.ErrProjectNotLoaded
	}

	i := p.indexOf(edit.SegmentID)
	if i < 0 {
		log.Warn("segment not found")
		return models.VideoSegment{}, service.ErrSegmentNotFound
	}

	segment := p.project.Segments[i]
	before := cloneSegment(segment)

	switch edit.Field {
	case models.EditText:
		if edit.Text == nil {
			return models.VideoSegment{}, fmt.Errorf("%s: missing text value: %w", op, service.ErrMalformedEdit)
		}
		if err := p.validator.TextEdit(segment.OriginalText, *edit.Text); err != nil {
			log.Warn("rejected text edit", sl.Err(err))
			return models.VideoSegment{}, err
		}
		segment.EditedText = *edit.Text

	case models.EditSpeaker:
		if edit.SpeakerID == nil {
			return models.VideoSegment{}, fmt.Errorf("%s: missing speaker value: %w", op, service.ErrMalformedEdit)
		}
		if !p.hasSpeaker(*edit.SpeakerID) {
			log.Warn("speaker not found", slog.Int64("speakerID", *edit.SpeakerID))
			return models.VideoSegment{}, service.ErrSpeakerNotFound
		}
		segment.SpeakerID = ptr.Ptr(*edit.SpeakerID)

	case models.EditTiming:
		if edit.Timing == nil {
			return models.VideoSegment{}, fmt.Errorf("%s: missing timing value: %w", op, service.ErrMalformedEdit)
		}
		var prev, next *models.VideoSegment
		if i > 0 {
			prev = &p.project.Segments[i-1]
		}
		if i+1 < len(p.project.Segments) {
			next = &p.project.Segments[i+1]
		}
		if err := p.validator.TimingEdit(edit.Timing.Start, edit.Timing.End, prev, next); err != nil {
			log.Warn("rejected timing edit", sl.Err(err))
			return models.VideoSegment{}, err
		}
		segment.Start = edit.Timing.Start
		segment.End = edit.Timing.End

	default:
		return models.VideoSegment{}, fmt.Errorf("%s: field %q: %w", op, edit.Field, service.ErrMalformedEdit)
	}

	p.project.Segments[i] = segment

	if err := p.ledger.Append(ctx, edit); err != nil {
		// Roll back so the mutation is not observable
		// without its history record.
		p.project.Segments[i] = before
		log.Error("failed to append edit", sl.Err(err))
		return models.VideoSegment{}, fmt.Errorf("%s: %w", op, err)
	}

	if p.project.Info != nil {
		p.project.Info.Version++
		p.project.Info.LastEdited = edit.Timestamp
	}

	log.Info("applied edit", slog.String("field", string(edit.Field)))

	return cloneSegment(segment), nil
}

// UpdateSynthesisMetadata patches a segment's synthesis output
// and lifecycle status.
//
// Reserved for the synthesis queue manager: it is the only
// caller wired to an interface containing this method, so
// general callers cannot bypass ApplyEdit.
func (p *Project) UpdateSynthesisMetadata(segmentID int64, patch models.TTSMetadata, status models.SegmentStatus) error {
	const op = "Project.UpdateSynthesisMetadata"

	log := p.log.With(
		slog.String("op", op),
		slog.Int64("segmentID", segmentID),
	)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.loaded {
		return service.ErrProjectNotLoaded
	}

	i := p.indexOf(segmentID)
	if i < 0 {
		return service.ErrSegmentNotFound
	}

	p.project.Segments[i].TTS = ptr.Ptr(patch)
	if status != "" {
		p.project.Segments[i].Status = status
	}

	log.Debug("updated synthesis metadata",
		slog.String("synthesisStatus", string(patch.SynthesisStatus)),
		slog.String("status", string(status)),
	)

	return nil
}

// SetSpeakerSample records an uploaded voice cloning sample
// on a speaker's voice settings.
func (p *Project) SetSpeakerSample(speakerID int64, samplePath string) error {
	const op = "Project.SetSpeakerSample"

	log := p.log.With(
		slog.String("op", op),
		slog.Int64("speakerID", speakerID),
	)

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.loaded {
		return service.ErrProjectNotLoaded
	}

	for i, sp := range p.project.Speakers {
		if sp.ID != speakerID {
			continue
		}
		voice := models.VoiceSettings{}
		if sp.Voice != nil {
			voice = *sp.Voice
		}
		voice.SamplePath = samplePath
		p.project.Speakers[i].Voice = &voice

		log.Info("set voice sample", slog.String("path", samplePath))
		return nil
	}

	return service.ErrSpeakerNotFound
}

// indexOf returns the position of a segment, or -1.
// Callers must hold the mutex.
func (p *Project) indexOf(segmentID int64) int {
	return slices.IndexFunc(p.project.Segments, func(s models.VideoSegment) bool {
		return s.ID == segmentID
	})
}

// hasSpeaker reports whether a speaker id is known.
// Callers must hold the mutex.
func (p *Project) hasSpeaker(id int64) bool {
	return slices.ContainsFunc(p.project.Speakers, func(sp models.Speaker) bool {
		return sp.ID == id
	})
}

// snapshot clones under the read lock.
func (p *Project) snapshot() models.VideoProject {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return cloneProject(p.project)
}

func cloneProject(in models.VideoProject) models.VideoProject {
	out := in

	out.Segments = make([]models.VideoSegment, 0, len(in.Segments))
	for _, s := range in.Segments {
		out.Segments = append(out.Segments, cloneSegment(s))
	}

	out.Speakers = make([]models.Speaker, 0, len(in.Speakers))
	for _, sp := range in.Speakers {
		out.Speakers = append(out.Speakers, cloneSpeaker(sp))
	}

	if in.TTSConfig != nil {
		out.TTSConfig = ptr.Ptr(*in.TTSConfig)
	}
	if in.Info != nil {
		out.Info = ptr.Ptr(*in.Info)
	}

	return out
}

func cloneSegment(in models.VideoSegment) models.VideoSegment {
	out := in
	if in.SpeakerID != nil {
		out.SpeakerID = ptr.Ptr(*in.SpeakerID)
	}
	if in.Style != nil {
		out.Style = ptr.Ptr(*in.Style)
	}
	if in.TTS != nil {
		out.TTS = ptr.Ptr(*in.TTS)
	}
	if in.Meta != nil {
		out.Meta = &models.SegmentMeta{
			Confidence: in.Meta.Confidence,
			Words:      slices.Clone(in.Meta.Words),
		}
	}
	return out
}

func cloneSpeaker(in models.Speaker) models.Speaker {
	out := in
	if in.Voice != nil {
		out.Voice = ptr.Ptr(*in.Voice)
	}
	return out
}

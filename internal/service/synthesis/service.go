package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"voxedit/internal/lib/logger/sl"
	chans "voxedit/internal/lib/utils/channels"
	ptr "voxedit/internal/lib/utils/pointers"
	"voxedit/internal/models"
	"voxedit/internal/service"
	statusSrv "voxedit/internal/service/status"
	validateSrv "voxedit/internal/service/validate"
)

// Queue orchestrates synthesis jobs against an external
// executor with a bounded number of simultaneous calls.
//
// Per-segment state machine:
//
//	NotQueued -> Pending -> InProgress -> {Completed, Failed}
//
// Failed may be resubmitted. At most one job per segment is
// pending or in progress; duplicates are rejected, never
// merged. Dispatch order is FIFO.
type Queue struct {
	// Dependencies
	log       *slog.Logger
	store     SegmentStore
	executor  Executor
	tracker   *statusSrv.Tracker
	validator validateSrv.Validator

	outputDir string
	timeout   time.Duration

	// Internal channels
	wakeChan chan struct{}
	stopChan chan struct{}
	runMutex sync.Mutex

	// Queue state
	mutex   sync.Mutex
	waiting []int64
	jobs    map[int64]*job
	active  int
}

type job struct {
	segmentID int64
	state     models.JobState
	cancelled bool
	cancel    context.CancelFunc
}

// SegmentStore is the queue manager's view of the project
// store. It is the only consumer wired to
// UpdateSynthesisMetadata.
type SegmentStore interface {
	Segment(id int64) (models.VideoSegment, error)
	Speaker(id int64) (models.Speaker, error)
	VideoInfo() (models.VideoInfo, error)
	TTSConfig() (models.TTSConfiguration, bool)
	UpdateSynthesisMetadata(segmentID int64, patch models.TTSMetadata, status models.SegmentStatus) error
}

// Executor is the external synthesis/lip-sync backend.
type Executor interface {
	Synthesize(ctx context.Context, req models.SynthesisRequest) (models.SynthesisResult, error)
}

// New returns a new synthesis queue manager.
func New(
	log *slog.Logger,
	store SegmentStore,
	executor Executor,
	tracker *statusSrv.Tracker,
	validator validateSrv.Validator,
	outputDir string,
	timeout time.Duration,
) *Queue {
	return &Queue{
		log:       log,
		store:     store,
		executor:  executor,
		tracker:   tracker,
		validator: validator,
		outputDir: outputDir,
		timeout:   timeout,
		wakeChan:  make(chan struct{}),
		stopChan:  make(chan struct{}),
		jobs:      make(map[int64]*job),
	}
}

// Enqueue submits a segment for synthesis. The segment id is
// the job handle: at most one job per segment is in flight.
func (q *Queue) Enqueue(ctx context.Context, segmentID int64) error {
	const op = "Synthesis.Enqueue"

	log := q.log.With(
		slog.String("op", op),
		slog.Int64("segmentID", segmentID),
	)

	segment, err := q.store.Segment(segmentID)
	if err != nil {
		if errors.Is(err, service.ErrSegmentNotFound) {
			log.Warn("segment not found")
			return service.ErrSegmentNotFound
		}
		log.Error("failed to get segment", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if segment.IsSilence {
		log.Warn("rejected silence segment")
		return service.ErrSilenceSegment
	}
	if err := q.validator.TextEdit(segment.OriginalText, segment.EditedText); err != nil {
		log.Warn("rejected segment with invalid text", sl.Err(err))
		return err
	}
	if conf, ok := q.store.TTSConfig(); ok &&
		conf.MaxCharsPerRequest > 0 && len(segment.EditedText) > conf.MaxCharsPerRequest {
		log.Warn("rejected segment with too long text", slog.Int("len", len(segment.EditedText)))
		return service.ErrTextTooLong
	}

	q.mutex.Lock()
	if j, ok := q.jobs[segmentID]; ok && j.state.InFlight() {
		q.mutex.Unlock()
		log.Warn("already in flight", slog.String("state", string(j.state)))
		return service.ErrAlreadyInFlight
	}
	q.jobs[segmentID] = &job{segmentID: segmentID, state: models.JobPending}

	// Pending status must be visible before the dispatcher
	// can pick the job up, so write it before the waiting
	// list entry.
	q.tracker.Set(models.SynthesisStatus{
		SegmentID: segmentID,
		State:     models.JobPending,
	})
	if err := q.store.UpdateSynthesisMetadata(segmentID, models.TTSMetadata{
		SynthesisStatus: models.JobPending,
	}, ""); err != nil {
		log.Error("failed to update segment metadata", sl.Err(err))
	}

	q.waiting = append(q.waiting, segmentID)
	q.mutex.Unlock()

	log.Info("enqueued segment")

	chans.Notify(q.wakeChan)

	return nil
}

// Cancel removes a pending job from the FIFO list, or marks
// an in-progress job so its eventual result is suppressed.
// The executor call is only cooperatively interruptible.
func (q *Queue) Cancel(segmentID int64) error {
	const op = "Synthesis.Cancel"

	log := q.log.With(
		slog.String("op", op),
		slog.Int64("segmentID", segmentID),
	)

	q.mutex.Lock()
	j, ok := q.jobs[segmentID]
	if !ok || !j.state.InFlight() {
		q.mutex.Unlock()
		log.Warn("nothing to cancel")
		return service.ErrNotInFlight
	}

	if j.state == models.JobPending {
		q.waiting = slices.DeleteFunc(q.waiting, func(id int64) bool {
			return id == segmentID
		})
		delete(q.jobs, segmentID)
		q.mutex.Unlock()

		q.tracker.Delete(segmentID)
		if err := q.store.UpdateSynthesisMetadata(segmentID, models.TTSMetadata{}, models.SegmentProcessed); err != nil {
			log.Error("failed to update segment metadata", sl.Err(err))
		}

		log.Info("cancelled pending job")
		return nil
	}

	// In progress: best effort.
	j.cancelled = true
	if j.cancel != nil {
		j.cancel()
	}
	q.mutex.Unlock()

	log.Info("marked in-progress job for cancellation")

	return nil
}

// StatusOf is a non-blocking read of one segment's status.
func (q *Queue) StatusOf(segmentID int64) (models.SynthesisStatus, bool) {
	return q.tracker.Get(segmentID)
}

// StatusAll returns the whole status map.
func (q *Queue) StatusAll() map[int64]models.SynthesisStatus {
	return q.tracker.All()
}

// Run dispatches queued jobs until the context is done or
// Stop is called. Repeated Run calls are no-ops while one
// is active.
func (q *Queue) Run(ctx context.Context) error {
	const op = "Synthesis.Run"

	log := q.log.With(
		slog.String("op", op),
	)

	// mutex to prevent multiple run call.
	if !q.runMutex.TryLock() {
		return nil
	}
	defer q.runMutex.Unlock()

	log.Info("start synthesis dispatch loop")

	var workers sync.WaitGroup

main_loop:
	for {
		q.dispatch(ctx, &workers)

		select {
		case <-q.wakeChan:
		case <-q.stopChan:
			log.Debug("got stop chan")
			break main_loop
		case <-ctx.Done():
			log.Debug("context done")
			break main_loop
		}
	}

	workers.Wait()

	log.Info("finish synthesis dispatch loop")

	return nil
}

// Stop terminates the dispatch loop.
func (q *Queue) Stop() {
	chans.Notify(q.stopChan)
}

// concurrencyLimit reads the project's ceiling;
// unset means fully serialized.
func (q *Queue) concurrencyLimit() int {
	if conf, ok := q.store.TTSConfig(); ok && conf.ConcurrencyLimit > 0 {
		return conf.ConcurrencyLimit
	}
	return 1
}

// dispatch starts workers for FIFO heads while
// worker slots are free.
func (q *Queue) dispatch(ctx context.Context, workers *sync.WaitGroup) {
	limit := q.concurrencyLimit()

	q.mutex.Lock()
	defer q.mutex.Unlock()

	for q.active < limit && len(q.waiting) > 0 {
		segmentID := q.waiting[0]
		q.waiting = q.waiting[1:]

		j, ok := q.jobs[segmentID]
		if !ok || j.state != models.JobPending {
			continue
		}

		jobCtx, cancel := context.WithCancel(ctx)
		j.state = models.JobInProgress
		j.cancel = cancel
		q.active++

		workers.Add(1)
		go q.runJob(jobCtx, segmentID, workers)
	}
}

// runJob performs one executor call and records the outcome.
func (q *Queue) runJob(ctx context.Context, segmentID int64, workers *sync.WaitGroup) {
	const op = "Synthesis.runJob"

	defer workers.Done()

	log := q.log.With(
		slog.String("op", op),
		slog.Int64("segmentID", segmentID),
	)

	q.tracker.Set(models.SynthesisStatus{
		SegmentID: segmentID,
		State:     models.JobInProgress,
		Progress:  ptr.Ptr(0),
	})
	if err := q.store.UpdateSynthesisMetadata(segmentID, models.TTSMetadata{
		SynthesisStatus: models.JobInProgress,
	}, models.SegmentSynthesizing); err != nil {
		log.Error("failed to update segment metadata", sl.Err(err))
	}

	log.Info("job started")

	result, err := q.callExecutor(ctx, segmentID)

	q.mutex.Lock()
	j := q.jobs[segmentID]
	cancelled := j != nil && j.cancelled
	if cancelled || err != nil {
		delete(q.jobs, segmentID)
	} else {
		j.state = models.JobCompleted
		j.cancel = nil
	}
	q.active--
	q.mutex.Unlock()

	switch {
	case cancelled:
		// Late result suppressed; segment returns
		// to the never-submitted condition.
		q.tracker.Delete(segmentID)
		if err := q.store.UpdateSynthesisMetadata(segmentID, models.TTSMetadata{}, models.SegmentProcessed); err != nil {
			log.Error("failed to update segment metadata", sl.Err(err))
		}
		log.Info("job cancelled, result suppressed")

	case err != nil:
		q.tracker.Set(models.SynthesisStatus{
			SegmentID: segmentID,
			State:     models.JobFailed,
			Error:     err.Error(),
		})
		if err := q.store.UpdateSynthesisMetadata(segmentID, models.TTSMetadata{
			SynthesisStatus: models.JobFailed,
			Error:           err.Error(),
		}, models.SegmentError); err != nil {
			log.Error("failed to update segment metadata", sl.Err(err))
		}
		log.Warn("job failed", sl.Err(err))

	default:
		q.tracker.Set(models.SynthesisStatus{
			SegmentID: segmentID,
			State:     models.JobCompleted,
			Progress:  ptr.Ptr(100),
			OutputURL: result.OutputPath,
		})
		if err := q.store.UpdateSynthesisMetadata(segmentID, models.TTSMetadata{
			AudioURL:        result.OutputPath,
			ModelUsed:       result.ModelUsed,
			VoiceID:         result.VoiceID,
			SynthesisStatus: models.JobCompleted,
		}, models.SegmentSynthesized); err != nil {
			log.Error("failed to update segment metadata", sl.Err(err))
		}
		log.Info("job completed", slog.String("output", result.OutputPath))
	}

	// Free a slot for the next FIFO head.
	chans.Notify(q.wakeChan)
}

// callExecutor builds the request from current segment state
// and performs the bounded executor call.
func (q *Queue) callExecutor(ctx context.Context, segmentID int64) (models.SynthesisResult, error) {
	const op = "Synthesis.callExecutor"

	segment, err := q.store.Segment(segmentID)
	if err != nil {
		return models.SynthesisResult{}, fmt.Errorf("%s: %w", op, err)
	}

	video, err := q.store.VideoInfo()
	if err != nil {
		return models.SynthesisResult{}, fmt.Errorf("%s: %w", op, err)
	}

	req := models.SynthesisRequest{
		JobID:      fmt.Sprintf("seg-%d-%d", segmentID, time.Now().UnixNano()),
		SegmentID:  segmentID,
		Text:       segment.EditedText,
		Start:      segment.Start,
		End:        segment.End,
		Voice:      q.voiceFor(segment),
		VideoPath:  video.FilePath,
		OutputPath: filepath.Join(q.outputDir, fmt.Sprintf("segment_%04d.mp4", segmentID)),
	}

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	result, err := q.executor.Synthesize(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.SynthesisResult{}, service.ErrExecutorTimeout
		}
		return models.SynthesisResult{}, err
	}

	return result, nil
}

// voiceFor resolves the segment speaker's voice settings,
// falling back to project defaults.
func (q *Queue) voiceFor(segment models.VideoSegment) *models.VoiceSettings {
	if segment.SpeakerID != nil {
		if speaker, err := q.store.Speaker(*segment.SpeakerID); err == nil && speaker.Voice != nil {
			return speaker.Voice
		}
	}

	if conf, ok := q.store.TTSConfig(); ok && conf.DefaultVoice != "" {
		return &models.VoiceSettings{
			VoiceID:  conf.DefaultVoice,
			Language: conf.Language,
			Speed:    conf.Rate,
			Pitch:    conf.Pitch,
		}
	}

	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxedit/internal/lib/logger/slogdiscard"
	ptr "voxedit/internal/lib/utils/pointers"
	"voxedit/internal/models"
	"voxedit/internal/service"
	ledgerSrv "voxedit/internal/service/ledger"
	projectSrv "voxedit/internal/service/project"
	statusSrv "voxedit/internal/service/status"
	validateSrv "voxedit/internal/service/validate"
)

const (
	eventuallyTimeout = 2 * time.Second
	eventuallyTick    = 5 * time.Millisecond
)

// stubExecutor blocks each call until released, so tests
// can observe intermediate queue states.
type stubExecutor struct {
	mutex    sync.Mutex
	started  []int64
	release  map[int64]chan struct{}
	failWith map[int64]error
}

func newStubExecutor() *stubExecutor {
	return &stubExecutor{
		release:  make(map[int64]chan struct{}),
		failWith: make(map[int64]error),
	}
}

func (e *stubExecutor) Synthesize(ctx context.Context, req models.SynthesisRequest) (models.SynthesisResult, error) {
	e.mutex.Lock()
	e.started = append(e.started, req.SegmentID)
	ch, ok := e.release[req.SegmentID]
	failErr := e.failWith[req.SegmentID]
	e.mutex.Unlock()

	if ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return models.SynthesisResult{}, ctx.Err()
		}
	}

	if failErr != nil {
		return models.SynthesisResult{}, failErr
	}

	return models.SynthesisResult{
		JobID:      req.JobID,
		OutputPath: req.OutputPath,
		ModelUsed:  "your_tts",
		VoiceID:    "default",
	}, nil
}

func (e *stubExecutor) blocking(segmentID int64) chan struct{} {
	ch := make(chan struct{})
	e.mutex.Lock()
	e.release[segmentID] = ch
	e.mutex.Unlock()
	return ch
}

func (e *stubExecutor) fail(segmentID int64, err error) {
	e.mutex.Lock()
	e.failWith[segmentID] = err
	e.mutex.Unlock()
}

func (e *stubExecutor) startedOrder() []int64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	out := make([]int64, len(e.started))
	copy(out, e.started)
	return out
}

type fixture struct {
	queue   *Queue
	store   *projectSrv.Project
	tracker *statusSrv.Tracker
	exec    *stubExecutor
	stop    func()
}

func newFixture(t *testing.T, concurrency int, timeout time.Duration) *fixture {
	t.Helper()

	log := slogdiscard.NewDiscardLogger()
	validator := validateSrv.New(1)
	store := projectSrv.New(log, validator, ledgerSrv.New(log, nil), nil)

	segments := make([]models.VideoSegment, 0, 4)
	for i := 0; i < 4; i++ {
		start := float64(i * 5)
		segments = append(segments, models.VideoSegment{
			ID: int64(i + 1), VideoID: 1, Order: i + 1,
			Start: start, End: start + 5,
			OriginalText: fmt.Sprintf("segment number %d text", i+1),
			EditedText:   fmt.Sprintf("segment number %d text", i+1),
			SpeakerID:    ptr.Ptr[int64](1),
			Status:       models.SegmentProcessed,
		})
	}
	segments[3].IsSilence = true
	segments[3].SpeakerID = nil
	segments[3].OriginalText = ""
	segments[3].EditedText = ""

	require.NoError(t, store.Load(context.Background(), models.VideoProject{
		Video:    models.VideoInfo{ID: 1, Title: "clip", Duration: 20},
		Speakers: []models.Speaker{{ID: 1, Name: "Speaker 1"}},
		Segments: segments,
		TTSConfig: &models.TTSConfiguration{
			ConcurrencyLimit: concurrency,
		},
	}))

	exec := newStubExecutor()
	tracker := statusSrv.New()
	queue := New(log, store, exec, tracker, validator, "/tmp/out", timeout)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = queue.Run(ctx)
		close(done)
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)

	return &fixture{queue: queue, store: store, tracker: tracker, exec: exec, stop: stop}
}

func waitForState(t *testing.T, f *fixture, segmentID int64, state models.JobState) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, ok := f.queue.StatusOf(segmentID)
		return ok && s.State == state
	}, eventuallyTimeout, eventuallyTick, "segment %d never reached %s", segmentID, state)
}

func TestSerializedDispatch(t *testing.T) {
	f := newFixture(t, 0, 0) // unset limit: fully serialized
	ctx := context.Background()

	releaseA := f.exec.blocking(1)
	releaseB := f.exec.blocking(2)

	require.NoError(t, f.queue.Enqueue(ctx, 1))
	require.NoError(t, f.queue.Enqueue(ctx, 2))

	// A runs, B stays pending.
	waitForState(t, f, 1, models.JobInProgress)
	s, ok := f.queue.StatusOf(2)
	require.True(t, ok)
	assert.Equal(t, models.JobPending, s.State)
	assert.Equal(t, 1, f.tracker.InProgressCount())

	close(releaseA)
	waitForState(t, f, 1, models.JobCompleted)
	waitForState(t, f, 2, models.JobInProgress)

	close(releaseB)
	waitForState(t, f, 2, models.JobCompleted)

	assert.Equal(t, []int64{1, 2}, f.exec.startedOrder())
}

func TestConcurrencyCeiling(t *testing.T) {
	f := newFixture(t, 2, 0)
	ctx := context.Background()

	releases := []chan struct{}{
		f.exec.blocking(1), f.exec.blocking(2), f.exec.blocking(3),
	}

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, f.queue.Enqueue(ctx, id))
	}

	waitForState(t, f, 1, models.JobInProgress)
	waitForState(t, f, 2, models.JobInProgress)

	// Third job must wait for a free slot.
	s, ok := f.queue.StatusOf(3)
	require.True(t, ok)
	assert.Equal(t, models.JobPending, s.State)
	assert.Equal(t, 2, f.tracker.InProgressCount())

	close(releases[0])
	waitForState(t, f, 3, models.JobInProgress)

	close(releases[1])
	close(releases[2])
	waitForState(t, f, 2, models.JobCompleted)
	waitForState(t, f, 3, models.JobCompleted)
}

func TestEnqueueRejections(t *testing.T) {
	f := newFixture(t, 1, 0)
	ctx := context.Background()

	assert.ErrorIs(t, f.queue.Enqueue(ctx, 99), service.ErrSegmentNotFound)
	assert.ErrorIs(t, f.queue.Enqueue(ctx, 4), service.ErrSilenceSegment)
}

func TestAlreadyInFlight(t *testing.T) {
	f := newFixture(t, 1, 0)
	ctx := context.Background()

	release := f.exec.blocking(1)

	require.NoError(t, f.queue.Enqueue(ctx, 1))
	waitForState(t, f, 1, models.JobInProgress)

	before, _ := f.queue.StatusOf(1)
	assert.ErrorIs(t, f.queue.Enqueue(ctx, 1), service.ErrAlreadyInFlight)
	after, _ := f.queue.StatusOf(1)
	assert.Equal(t, before.State, after.State)

	// Duplicate must not disturb other waiting jobs.
	require.NoError(t, f.queue.Enqueue(ctx, 2))
	assert.ErrorIs(t, f.queue.Enqueue(ctx, 2), service.ErrAlreadyInFlight)

	close(release)
	waitForState(t, f, 1, models.JobCompleted)
	waitForState(t, f, 2, models.JobCompleted)
	assert.Equal(t, []int64{1, 2}, f.exec.startedOrder())
}

func TestExecutorFailureAndResubmit(t *testing.T) {
	f := newFixture(t, 1, 0)
	ctx := context.Background()

	f.exec.fail(3, errors.New("model exploded"))

	require.NoError(t, f.queue.Enqueue(ctx, 3))
	waitForState(t, f, 3, models.JobFailed)

	s, _ := f.queue.StatusOf(3)
	assert.Contains(t, s.Error, "model exploded")

	segment, err := f.store.Segment(3)
	require.NoError(t, err)
	require.NotNil(t, segment.TTS)
	assert.Equal(t, models.SegmentError, segment.Status)
	assert.Contains(t, segment.TTS.Error, "model exploded")

	// Failed is resubmittable.
	f.exec.fail(3, nil)
	require.NoError(t, f.queue.Enqueue(ctx, 3))
	waitForState(t, f, 3, models.JobCompleted)

	segment, err = f.store.Segment(3)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentSynthesized, segment.Status)
	assert.NotEmpty(t, segment.TTS.AudioURL)
}

func TestCancelPending(t *testing.T) {
	f := newFixture(t, 1, 0)
	ctx := context.Background()

	release := f.exec.blocking(1)

	require.NoError(t, f.queue.Enqueue(ctx, 1))
	waitForState(t, f, 1, models.JobInProgress)
	require.NoError(t, f.queue.Enqueue(ctx, 2))

	require.NoError(t, f.queue.Cancel(2))
	_, ok := f.queue.StatusOf(2)
	assert.False(t, ok, "cancelled pending job must leave no status entry")

	assert.ErrorIs(t, f.queue.Cancel(2), service.ErrNotInFlight)
	assert.ErrorIs(t, f.queue.Cancel(99), service.ErrNotInFlight)

	close(release)
	waitForState(t, f, 1, models.JobCompleted)

	// Segment 2 was never dispatched.
	assert.Equal(t, []int64{1}, f.exec.startedOrder())
}

func TestCancelInProgressSuppressesResult(t *testing.T) {
	f := newFixture(t, 1, 0)
	ctx := context.Background()

	release := f.exec.blocking(1)

	require.NoError(t, f.queue.Enqueue(ctx, 1))
	waitForState(t, f, 1, models.JobInProgress)

	require.NoError(t, f.queue.Cancel(1))

	require.Eventually(t, func() bool {
		_, ok := f.queue.StatusOf(1)
		return !ok
	}, eventuallyTimeout, eventuallyTick)

	segment, err := f.store.Segment(1)
	require.NoError(t, err)
	assert.Equal(t, models.SegmentProcessed, segment.Status)

	// Back to not-queued: a fresh submission is accepted.
	close(release)
	require.NoError(t, f.queue.Enqueue(ctx, 1))
	waitForState(t, f, 1, models.JobCompleted)
}

func TestExecutorTimeout(t *testing.T) {
	f := newFixture(t, 1, 20*time.Millisecond)
	ctx := context.Background()

	f.exec.blocking(2) // never released: only the deadline fires

	require.NoError(t, f.queue.Enqueue(ctx, 2))
	waitForState(t, f, 2, models.JobFailed)

	s, _ := f.queue.StatusOf(2)
	assert.Contains(t, s.Error, "timeout")

	// Queue stays usable after the failure.
	require.NoError(t, f.queue.Enqueue(ctx, 1))
	waitForState(t, f, 1, models.JobCompleted)
}

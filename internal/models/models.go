package models

import (
	"time"
)

// TODO: split into different files when become too big

type EditorIn struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
}

type Editor struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	PassHash []byte `json:"-"`
}

const (
	RootID    int64 = -1
	RootLogin       = "root"
)

// SegmentStatus is a lifecycle status of a segment.
type SegmentStatus string

const (
	SegmentPending      SegmentStatus = "pending"
	SegmentProcessing   SegmentStatus = "processing"
	SegmentProcessed    SegmentStatus = "processed"
	SegmentError        SegmentStatus = "error"
	SegmentSynthesizing SegmentStatus = "synthesizing"
	SegmentSynthesized  SegmentStatus = "synthesized"
)

// EditField addresses the segment field a SegmentEdit changes.
type EditField string

const (
	EditText    EditField = "text"
	EditSpeaker EditField = "speaker"
	EditTiming  EditField = "timing"
)

// JobState is the live state of a synthesis job.
//
// A segment with no job ever submitted has no state at all
// (absent from the status map), not a default "pending".
type JobState string

const (
	JobPending    JobState = "pending"
	JobInProgress JobState = "in_progress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// InFlight reports whether a job in this state
// occupies the single per-segment slot.
func (s JobState) InFlight() bool {
	return s == JobPending || s == JobInProgress
}

// VideoProject is the aggregate root of the editor.
type VideoProject struct {
	Video     VideoInfo         `json:"video"`
	Segments  []VideoSegment    `json:"segments"`
	Speakers  []Speaker         `json:"speakers"`
	TTSConfig *TTSConfiguration `json:"ttsConfig,omitempty"`
	Info      *ProjectInfo      `json:"projectInfo,omitempty"`
}

type VideoInfo struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	FilePath    string  `json:"filePath"`
	Duration    float64 `json:"duration"`
	AspectRatio string  `json:"aspectRatio,omitempty"`
	Resolution  string  `json:"resolution,omitempty"`
}

type ProjectInfo struct {
	Version    int       `json:"version"`
	LastEdited time.Time `json:"lastEdited"`
	Author     string    `json:"author,omitempty"`
	Language   string    `json:"language,omitempty"`
}

// VideoSegment is a time-bounded slice of the video
// with its transcript text and speaker.
//
// All time values are seconds from the start of the video.
// OriginalText is frozen at ingestion; EditedText is the
// only text field edits may change.
type VideoSegment struct {
	ID           int64         `json:"id"`
	VideoID      int64         `json:"videoId"`
	Order        int           `json:"order"`
	Start        float64       `json:"startTime"`
	End          float64       `json:"endTime"`
	OriginalText string        `json:"originalText"`
	EditedText   string        `json:"editedText"`
	SpeakerID    *int64        `json:"speakerId,omitempty"`
	IsSilence    bool          `json:"isSilence"`
	Status       SegmentStatus `json:"status"`
	Style        *string       `json:"style,omitempty"`
	TTS          *TTSMetadata  `json:"ttsMetadata,omitempty"`
	Meta         *SegmentMeta  `json:"metadata,omitempty"`
}

// Duration returns the segment time budget.
func (s VideoSegment) Duration() time.Duration {
	return time.Duration((s.End - s.Start) * float64(time.Second))
}

// TTSMetadata is per-segment synthesis output.
// Mutated only by the synthesis queue manager.
type TTSMetadata struct {
	AudioURL        string   `json:"audioUrl,omitempty"`
	ModelUsed       string   `json:"modelUsed,omitempty"`
	VoiceID         string   `json:"voiceId,omitempty"`
	SynthesisStatus JobState `json:"synthesisStatus,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// SegmentMeta is transcription metadata set at ingestion.
type SegmentMeta struct {
	Confidence float64      `json:"confidence,omitempty"`
	Words      []WordTiming `json:"words,omitempty"`
}

type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Speaker is referenced, never owned, by segments.
type Speaker struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Role  string         `json:"role,omitempty"`
	Voice *VoiceSettings `json:"voice,omitempty"`
}

type VoiceSettings struct {
	VoiceID    string  `json:"voiceId,omitempty"`
	Language   string  `json:"language,omitempty"`
	Gender     string  `json:"gender,omitempty"`
	SamplePath string  `json:"samplePath,omitempty"`
	Speed      float64 `json:"speed,omitempty"`
	Pitch      float64 `json:"pitch,omitempty"`
	Energy     float64 `json:"energy,omitempty"`
}

// SegmentEdit is an immutable history record.
// Exactly one of Text, SpeakerID, Timing is set,
// matching Field.
type SegmentEdit struct {
	SegmentID int64      `json:"segmentId"`
	Field     EditField  `json:"field"`
	Text      *string    `json:"text,omitempty"`
	SpeakerID *int64     `json:"speakerId,omitempty"`
	Timing    *TimeRange `json:"timing,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Author    string     `json:"author,omitempty"`
}

type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TTSConfiguration holds project-level synthesis defaults.
// Read-only to the queue manager.
type TTSConfiguration struct {
	Provider           string  `json:"provider,omitempty"`
	Endpoint           string  `json:"endpoint,omitempty"`
	APIKey             string  `json:"-"`
	DefaultVoice       string  `json:"defaultVoice,omitempty"`
	Language           string  `json:"language,omitempty"`
	Rate               float64 `json:"rate,omitempty"`
	Pitch              float64 `json:"pitch,omitempty"`
	Volume             float64 `json:"volume,omitempty"`
	MaxCharsPerRequest int     `json:"maxCharsPerRequest,omitempty"`
	ConcurrencyLimit   int     `json:"concurrencyLimit,omitempty"`
}

// SynthesisStatus is the pollable projection of one job.
type SynthesisStatus struct {
	SegmentID int64     `json:"segmentId"`
	State     JobState  `json:"state"`
	Progress  *int      `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	OutputURL string    `json:"outputUrl,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SynthesisRequest is what the external executor receives.
type SynthesisRequest struct {
	JobID      string         `json:"job_id"`
	SegmentID  int64          `json:"segment_id"`
	Text       string         `json:"text"`
	Start      float64        `json:"start_time"`
	End        float64        `json:"end_time"`
	Voice      *VoiceSettings `json:"voice,omitempty"`
	VideoPath  string         `json:"video_path"`
	OutputPath string         `json:"output_path"`
}

// SynthesisResult mirrors the executor's success payload.
type SynthesisResult struct {
	JobID      string `json:"job_id"`
	OutputPath string `json:"output_path"`
	ModelUsed  string `json:"model_used,omitempty"`
	VoiceID    string `json:"voice_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

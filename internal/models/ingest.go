package models

// Ingestion payload shapes.
//
// Field names follow the transcript generator's wire format
// (snake_case, seconds as floats), not the editor's own JSON.

type TranscriptSegmentIn struct {
	Start     float64 `json:"start_time"`
	End       float64 `json:"end_time"`
	Text      string  `json:"text"`
	IsSilence bool    `json:"is_silence"`

	Confidence float64      `json:"confidence,omitempty"`
	Words      []WordTiming `json:"words,omitempty"`
}

type VideoTranscriptIn struct {
	Title    string                `json:"title"`
	FilePath string                `json:"file_path"`
	Duration float64               `json:"duration"`
	Segments []TranscriptSegmentIn `json:"segments"`

	AspectRatio string `json:"aspect_ratio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
}

type ProjectIn struct {
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	IsPublic    bool                `json:"is_public,omitempty"`
	Language    string              `json:"language,omitempty"`
	Author      string              `json:"author,omitempty"`
	Videos      []VideoTranscriptIn `json:"videos"`
	Speakers    []Speaker           `json:"speakers,omitempty"`
	TTSConfig   *TTSConfiguration   `json:"ttsConfig,omitempty"`
}

package protocol

import "time"

// Transcript is the message published on the bus after a completed
// transcription run.
type Transcript struct {
	Source     string    `json:"source"`
	Engine     string    `json:"engine"`
	Text       string    `json:"text"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

const SubjectTranscriptFinal = "stt.text.final"

package models

import "time"

// TranscriptionOptions are the decoding settings passed to the speech engine.
type TranscriptionOptions struct {
	Language                  string
	Temperature               float64
	CompressionRatioThreshold float64
	LogProbThreshold          float64
	NoSpeechThreshold         float64
	ConditionOnPreviousText   bool
	WordTimestamps            bool
}

// VoicemailTranscriptionOptions returns the fixed policy for voicemail audio:
// German, deterministic decoding, strict silence and confidence filtering.
func VoicemailTranscriptionOptions() TranscriptionOptions {
	return TranscriptionOptions{
		Language:                  "de",
		Temperature:               0.0,
		CompressionRatioThreshold: 2.4,
		LogProbThreshold:          -1.0,
		NoSpeechThreshold:         0.6,
		ConditionOnPreviousText:   false,
		WordTimestamps:            true,
	}
}

type TranscriptionRequest struct {
	Audio    []byte
	Filename string
	Options  TranscriptionOptions
}

// RunSummary aggregates the outcomes of one run.
type RunSummary struct {
	RunID      string         `json:"runId"`
	StartedAt  time.Time      `json:"startedAt"`
	Duration   time.Duration  `json:"duration"`
	Candidates int            `json:"candidates"`
	Processed  int            `json:"processed"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Stopped    bool           `json:"stopped"`
	Outcomes   map[string]int `json:"outcomes"`
}

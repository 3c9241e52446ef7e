package entity

import (
	"errors"
	"time"
)

// ErrJobNotFound is returned by any lookup for an unknown job id.
var ErrJobNotFound = errors.New("job not found")

type StageStatus string

const (
	StatusNotRequested StageStatus = "not_requested"
	StatusQueued       StageStatus = "queued"
	StatusProcessing   StageStatus = "processing"
	StatusCompleted    StageStatus = "completed"
	StatusFailed       StageStatus = "failed"
	StatusRerendering  StageStatus = "rerendering"
)

// Stage names the three pipeline phases. Each has its own status on the Job.
type Stage string

const (
	StageScript Stage = "script"
	StageAudio  Stage = "audio"
	StageVideo  Stage = "video"
)

// ResearchStatus encodes the outcome of a research fetch. The Researcher never
// fails hard; callers branch on this field instead of catching errors.
type ResearchStatus string

const (
	ResearchDisabled    ResearchStatus = "disabled"
	ResearchUnavailable ResearchStatus = "unavailable"
	ResearchError       ResearchStatus = "error"
	ResearchOK          ResearchStatus = "ok"
)

// ResearchResult is the cached context blob attached to a job. Stored as JSONB.
type ResearchResult struct {
	Topic       string           `json:"topic"`
	Status      ResearchStatus   `json:"status"`
	Message     string           `json:"message,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	ContextText string           `json:"context_text,omitempty"`
	Results     []ResearchSource `json:"results,omitempty"`
}

type ResearchSource struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Channel     string `json:"channel,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Job is the durable record for one end-to-end generation request.
// Request fields (Topic, Style, Length) are immutable after creation.
type Job struct {
	ID     string `json:"id"`
	Topic  string `json:"topic"`
	Style  string `json:"style"`
	Length int    `json:"length"`

	Status       StageStatus `json:"status"`
	ScriptStatus StageStatus `json:"script_status"`
	AudioStatus  StageStatus `json:"audio_status"`
	VideoStatus  StageStatus `json:"video_status"`

	Script          *string             `json:"script,omitempty"`
	Transcript      *string             `json:"transcript,omitempty"`
	ImagePrompts    map[string][]string `json:"image_prompts,omitempty"`
	ResearchContext *ResearchResult     `json:"research_context,omitempty"`
	ReviewScore     *float64            `json:"review_score,omitempty"`
	GenerationTime  *float64            `json:"generation_time,omitempty"`

	VideoURL   *string `json:"video_url,omitempty"`
	AudioPath  *string `json:"audio_path,omitempty"`
	FramesPath *string `json:"frames_path,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StageStatusFor returns the status of the named stage.
func (j *Job) StageStatusFor(stage Stage) StageStatus {
	switch stage {
	case StageScript:
		return j.ScriptStatus
	case StageAudio:
		return j.AudioStatus
	default:
		return j.VideoStatus
	}
}

package entity

import "time"

// JobUpdate is a partial mutation of a Job. Nil fields are left untouched by
// the persistence layer; ImagePrompts and ResearchContext are written when
// non-nil.
type JobUpdate struct {
	Status       *StageStatus
	ScriptStatus *StageStatus
	AudioStatus  *StageStatus
	VideoStatus  *StageStatus

	Script          *string
	Transcript      *string
	ImagePrompts    map[string][]string
	ResearchContext *ResearchResult

	ReviewScore    *float64
	GenerationTime *float64

	VideoURL   *string
	AudioPath  *string
	FramesPath *string

	StartedAt  *time.Time
	FinishedAt *time.Time
}

// Empty reports whether the update would touch nothing.
func (u JobUpdate) Empty() bool {
	return u.Status == nil && u.ScriptStatus == nil && u.AudioStatus == nil &&
		u.VideoStatus == nil && u.Script == nil && u.Transcript == nil &&
		u.ImagePrompts == nil && u.ResearchContext == nil && u.ReviewScore == nil &&
		u.GenerationTime == nil && u.VideoURL == nil && u.AudioPath == nil &&
		u.FramesPath == nil && u.StartedAt == nil && u.FinishedAt == nil
}

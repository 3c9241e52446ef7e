// Package pipeline holds the three stage executors. Each executor reads the
// job record, drives the relevant capability providers, and writes content
// and status back in a single update.
package pipeline

import (
	"context"
	"strings"
	"time"

	"video-essay-service/internal/entity"
)

// JobRepo is the slice of the repository the executors need.
type JobRepo interface {
	GetByID(ctx context.Context, id string) (*entity.Job, error)
	Update(ctx context.Context, id string, upd entity.JobUpdate) error
}

// ArtifactStore is the slice of the artifact store the executors need.
type ArtifactStore interface {
	Promote(jobID, src, name string) (string, error)
	WriteText(jobID, name, content string) (string, error)
	Path(jobID, name string) string
	Exists(jobID, name string) bool
}

// Telemetry receives per-run measurements. Implementations must never fail
// the job; pushes are fire-and-forget.
type Telemetry interface {
	PushRun(jobID string, seconds float64, reviewScore *float64, success bool)
}

// Publisher optionally copies the finished video to external storage.
type Publisher interface {
	PublishVideo(ctx context.Context, jobID, path string) (string, error)
}

func statusPtr(s entity.StageStatus) *entity.StageStatus { return &s }
func strPtr(s string) *string                            { return &s }
func floatPtr(f float64) *float64                        { return &f }
func timePtr(t time.Time) *time.Time                     { return &t }

// clipContext bounds research context before it reaches a prompt. The limit
// counts runes so multibyte text is never split mid-character.
func clipContext(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 {
		return text
	}
	clipped := truncateRunes(text, limit)
	if clipped == text {
		return text
	}
	return strings.TrimRight(clipped, " \t\r\n") + "…"
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

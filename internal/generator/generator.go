// Package generator defines the capability contracts the pipeline consumes
// and the concrete providers backing them. Providers are constructed once at
// startup and injected; none of them hold ambient global state.
package generator

import (
	"context"

	"video-essay-service/internal/entity"
)

// Narrator produces script, transcript, and review text for a topic.
type Narrator interface {
	WriteScript(ctx context.Context, topic, style string, lengthSeconds int, researchContext string) (string, error)
	WriteTranscript(ctx context.Context, script string) (string, error)
	// Review scores a script in [0, 100], rounded to 2 decimals. An
	// unparseable reviewer response yields 0.0 without an error.
	Review(ctx context.Context, script string) (float64, error)
}

// Voicer turns narration text into an audio file and returns its path. The
// file may land in a temporary location; the caller reconciles it into the
// canonical artifact layout.
type Voicer interface {
	Synthesize(ctx context.Context, jobID, text, voice string) (string, error)
}

// Illustrator renders the cover image for a job and returns its path.
type Illustrator interface {
	RenderCover(ctx context.Context, jobID string, promptParts []string) (string, error)
}

// Muxer combines a still image and an audio track into a video file whose
// duration matches the audio, returning the output path.
type Muxer interface {
	AssembleStatic(ctx context.Context, jobID, imagePath, audioPath string) (string, error)
}

// Researcher fetches background context for a topic. It never returns an
// error: failures are encoded in the result's Status field.
type Researcher interface {
	Gather(ctx context.Context, topic string, limit int) entity.ResearchResult
}

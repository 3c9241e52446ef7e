package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"video-essay-service/internal/artifact"
	"video-essay-service/internal/entity"
	"video-essay-service/internal/generator"
)

// ErrAudioIncomplete mirrors ErrScriptIncomplete for the video stage.
var ErrAudioIncomplete = errors.New("audio must be completed before video")

const promptStyleSuffix = "cinematic lighting, 16:9 aspect ratio, ultra-detailed, digital art"

// VideoExecutor renders the cover image and muxes it with the narration audio
// into the final video.
type VideoExecutor struct {
	repo        JobRepo
	store       ArtifactStore
	illustrator generator.Illustrator
	muxer       generator.Muxer
	metrics     Telemetry
	publisher   Publisher

	// PublicBaseURL prefixes the artifact URL recorded on the job so
	// clients behind a proxy or CDN get an absolute address. Empty keeps
	// the URL relative.
	PublicBaseURL string
}

func NewVideoExecutor(repo JobRepo, store ArtifactStore, illustrator generator.Illustrator, muxer generator.Muxer, metrics Telemetry, publisher Publisher) *VideoExecutor {
	return &VideoExecutor{
		repo:        repo,
		store:       store,
		illustrator: illustrator,
		muxer:       muxer,
		metrics:     metrics,
		publisher:   publisher,
	}
}

func (e *VideoExecutor) Run(ctx context.Context, jobID string) error {
	job, err := e.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.AudioStatus != entity.StatusCompleted {
		return ErrAudioIncomplete
	}

	start := time.Now()
	if err := e.repo.Update(ctx, jobID, entity.JobUpdate{
		VideoStatus: statusPtr(entity.StatusProcessing),
	}); err != nil {
		return err
	}

	coverPath, err := e.assemble(ctx, job)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		log.Printf("[pipeline] job_id=%s stage=video status=failed duration_s=%.1f error=%v", jobID, elapsed, err)
		if updErr := e.repo.Update(ctx, jobID, entity.JobUpdate{
			Status:      statusPtr(entity.StatusFailed),
			VideoStatus: statusPtr(entity.StatusFailed),
		}); updErr != nil {
			log.Printf("[pipeline] job_id=%s stage=video mark_failed error=%v", jobID, updErr)
		}
		e.push(jobID, elapsed, job.ReviewScore, false)
		return err
	}

	videoURL := strings.TrimRight(e.PublicBaseURL, "/") + "/artifacts/" + jobID + "/" + artifact.VideoFile
	upd := entity.JobUpdate{
		Status:      statusPtr(entity.StatusCompleted),
		VideoStatus: statusPtr(entity.StatusCompleted),
		VideoURL:    strPtr(videoURL),
		FramesPath:  strPtr(coverPath),
	}
	if job.GenerationTime == nil {
		upd.GenerationTime = floatPtr(elapsed)
	}
	if err := e.repo.Update(ctx, jobID, upd); err != nil {
		return err
	}

	log.Printf("[pipeline] job_id=%s stage=video status=completed duration_s=%.1f url=%s", jobID, elapsed, videoURL)
	e.push(jobID, elapsed, job.ReviewScore, true)

	if e.publisher != nil {
		finalPath := e.store.Path(jobID, artifact.VideoFile)
		if location, pubErr := e.publisher.PublishVideo(ctx, jobID, finalPath); pubErr != nil {
			log.Printf("[pipeline] job_id=%s video publish failed: %v", jobID, pubErr)
		} else {
			log.Printf("[pipeline] job_id=%s video published to %s", jobID, location)
		}
	}
	return nil
}

// assemble renders the cover, locates the narration audio, and muxes the
// final video, returning the canonical cover path.
func (e *VideoExecutor) assemble(ctx context.Context, job *entity.Job) (string, error) {
	script := ""
	if job.Script != nil {
		script = *job.Script
	}

	prompts := job.ImagePrompts
	if len(prompts) == 0 {
		prompts = DefaultImagePrompts(script)
	}
	promptParts := FirstSceneParts(prompts)
	if len(promptParts) == 0 {
		promptParts = []string{script}
	}

	tempCover, err := e.illustrator.RenderCover(ctx, job.ID, promptParts)
	if err != nil {
		return "", err
	}
	coverPath, err := e.store.Promote(job.ID, tempCover, artifact.ImageFile)
	if err != nil {
		return "", err
	}

	audioPath, err := e.resolveAudio(job)
	if err != nil {
		return "", err
	}

	tempVideo, err := e.muxer.AssembleStatic(ctx, job.ID, coverPath, audioPath)
	if err != nil {
		return "", err
	}
	if _, err := e.store.Promote(job.ID, tempVideo, artifact.VideoFile); err != nil {
		return "", err
	}
	return coverPath, nil
}

func (e *VideoExecutor) resolveAudio(job *entity.Job) (string, error) {
	if job.AudioPath != nil && *job.AudioPath != "" {
		return *job.AudioPath, nil
	}
	if e.store.Exists(job.ID, artifact.AudioFile) {
		return e.store.Path(job.ID, artifact.AudioFile), nil
	}
	return "", fmt.Errorf("no narration audio recorded for job %s", job.ID)
}

func (e *VideoExecutor) push(jobID string, seconds float64, score *float64, success bool) {
	if e.metrics != nil {
		e.metrics.PushRun(jobID, seconds, score, success)
	}
}

// DefaultImagePrompts derives one prompt entry per non-empty script paragraph,
// pairing an excerpt with a fixed style suffix.
func DefaultImagePrompts(script string) map[string][]string {
	prompts := make(map[string][]string)
	idx := 0
	for _, paragraph := range strings.Split(script, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		idx++
		excerpt := truncateRunes(paragraph, 120)
		prompts[fmt.Sprintf("scene_%02d", idx)] = []string{
			"Illustration matching: " + excerpt,
			promptStyleSuffix,
		}
	}
	return prompts
}

// FirstSceneParts returns the prompt fragments of the first scene in key
// order. Map iteration order is randomized, so keys are sorted to keep the
// chosen scene stable across retries.
func FirstSceneParts(prompts map[string][]string) []string {
	if len(prompts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(prompts))
	for k := range prompts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return prompts[keys[0]]
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"video-essay-service/internal/artifact"
	"video-essay-service/internal/entity"
	"video-essay-service/internal/generator"
)

// ErrScriptIncomplete is raised when an audio task reaches a worker even
// though the script stage never completed. The enqueue boundary rejects this
// case; seeing it at dispatch time means the request slipped past it.
var ErrScriptIncomplete = errors.New("script must be completed before audio")

// AudioExecutor synthesizes narration audio and reconciles it into the
// canonical per-job layout.
type AudioExecutor struct {
	repo    JobRepo
	store   ArtifactStore
	voicer  generator.Voicer
	metrics Telemetry
}

func NewAudioExecutor(repo JobRepo, store ArtifactStore, voicer generator.Voicer, metrics Telemetry) *AudioExecutor {
	return &AudioExecutor{repo: repo, store: store, voicer: voicer, metrics: metrics}
}

func (e *AudioExecutor) Run(ctx context.Context, jobID, voice string) error {
	job, err := e.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ScriptStatus != entity.StatusCompleted {
		return ErrScriptIncomplete
	}

	start := time.Now()
	if err := e.repo.Update(ctx, jobID, entity.JobUpdate{
		AudioStatus: statusPtr(entity.StatusProcessing),
	}); err != nil {
		return err
	}

	audioPath, err := e.synthesize(ctx, job, voice)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		log.Printf("[pipeline] job_id=%s stage=audio status=failed duration_s=%.1f error=%v", jobID, elapsed, err)
		if updErr := e.repo.Update(ctx, jobID, entity.JobUpdate{
			Status:      statusPtr(entity.StatusFailed),
			AudioStatus: statusPtr(entity.StatusFailed),
		}); updErr != nil {
			log.Printf("[pipeline] job_id=%s stage=audio mark_failed error=%v", jobID, updErr)
		}
		return err
	}

	// Restore the overall status too: a failed first attempt forced it to
	// failed, and a successful retry must absorb that.
	upd := entity.JobUpdate{
		Status:      statusPtr(entity.StatusCompleted),
		AudioStatus: statusPtr(entity.StatusCompleted),
		AudioPath:   strPtr(audioPath),
	}
	// The first successful measurement wins; later stages fill it only
	// when the script stage never recorded one.
	if job.GenerationTime == nil {
		upd.GenerationTime = floatPtr(elapsed)
	}
	if err := e.repo.Update(ctx, jobID, upd); err != nil {
		return err
	}

	log.Printf("[pipeline] job_id=%s stage=audio status=completed duration_s=%.1f path=%s", jobID, elapsed, audioPath)
	return nil
}

func (e *AudioExecutor) synthesize(ctx context.Context, job *entity.Job, voice string) (string, error) {
	var text string
	switch {
	case job.Transcript != nil && *job.Transcript != "":
		text = *job.Transcript
	case job.Script != nil && *job.Script != "":
		log.Printf("[pipeline] job_id=%s transcript missing, falling back to script for narration", job.ID)
		text = *job.Script
	default:
		return "", fmt.Errorf("transcript or script must be available for audio generation")
	}

	tempPath, err := e.voicer.Synthesize(ctx, job.ID, text, voice)
	if err != nil {
		return "", err
	}
	return e.store.Promote(job.ID, tempPath, artifact.AudioFile)
}

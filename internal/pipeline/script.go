package pipeline

import (
	"context"
	"log"
	"time"

	"video-essay-service/internal/artifact"
	"video-essay-service/internal/entity"
	"video-essay-service/internal/generator"
)

// ScriptExecutor runs the first pipeline stage: research (optional, soft),
// script writing, transcript preparation, and review scoring.
type ScriptExecutor struct {
	repo       JobRepo
	store      ArtifactStore
	narrator   generator.Narrator
	researcher generator.Researcher
	metrics    Telemetry

	enableResearch   bool
	researchLimit    int
	contextCharLimit int
}

func NewScriptExecutor(
	repo JobRepo,
	store ArtifactStore,
	narrator generator.Narrator,
	researcher generator.Researcher,
	metrics Telemetry,
	enableResearch bool,
	researchLimit int,
	contextCharLimit int,
) *ScriptExecutor {
	return &ScriptExecutor{
		repo:             repo,
		store:            store,
		narrator:         narrator,
		researcher:       researcher,
		metrics:          metrics,
		enableResearch:   enableResearch,
		researchLimit:    researchLimit,
		contextCharLimit: contextCharLimit,
	}
}

func (e *ScriptExecutor) Run(ctx context.Context, jobID string) error {
	job, err := e.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := e.repo.Update(ctx, jobID, entity.JobUpdate{
		Status:       statusPtr(entity.StatusProcessing),
		ScriptStatus: statusPtr(entity.StatusProcessing),
		StartedAt:    timePtr(start.UTC()),
	}); err != nil {
		return err
	}

	research := job.ResearchContext
	if e.enableResearch && e.researcher != nil && (research == nil || len(research.Results) == 0) {
		gathered := e.researcher.Gather(ctx, job.Topic, e.researchLimit)
		research = &gathered
	}

	contextText := ""
	if research != nil && research.Status == entity.ResearchOK && research.ContextText != "" {
		contextText = clipContext(research.ContextText, e.contextCharLimit)
	}

	script, transcript, score, err := e.generate(ctx, job, contextText)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		log.Printf("[pipeline] job_id=%s stage=script status=failed duration_s=%.1f error=%v", jobID, elapsed, err)
		if updErr := e.repo.Update(ctx, jobID, entity.JobUpdate{
			Status:         statusPtr(entity.StatusFailed),
			ScriptStatus:   statusPtr(entity.StatusFailed),
			FinishedAt:     timePtr(time.Now().UTC()),
			GenerationTime: floatPtr(elapsed),
		}); updErr != nil {
			log.Printf("[pipeline] job_id=%s stage=script mark_failed error=%v", jobID, updErr)
		}
		e.push(jobID, elapsed, job.ReviewScore, false)
		return err
	}

	upd := entity.JobUpdate{
		Status:         statusPtr(entity.StatusCompleted),
		ScriptStatus:   statusPtr(entity.StatusCompleted),
		Script:         strPtr(script),
		Transcript:     strPtr(transcript),
		ReviewScore:    floatPtr(score),
		FinishedAt:     timePtr(time.Now().UTC()),
		GenerationTime: floatPtr(elapsed),
	}
	if research != nil {
		upd.ResearchContext = research
	}
	if err := e.repo.Update(ctx, jobID, upd); err != nil {
		return err
	}

	log.Printf("[pipeline] job_id=%s stage=script status=completed duration_s=%.1f score=%.2f", jobID, elapsed, score)
	e.push(jobID, elapsed, &score, true)
	return nil
}

// generate performs the narrator calls and persists the text artifacts.
// Content and status are only committed together by the caller.
func (e *ScriptExecutor) generate(ctx context.Context, job *entity.Job, contextText string) (script, transcript string, score float64, err error) {
	script, err = e.narrator.WriteScript(ctx, job.Topic, job.Style, job.Length, contextText)
	if err != nil {
		return "", "", 0, err
	}
	transcript, err = e.narrator.WriteTranscript(ctx, script)
	if err != nil {
		return "", "", 0, err
	}
	score, err = e.narrator.Review(ctx, script)
	if err != nil {
		return "", "", 0, err
	}

	if _, err = e.store.WriteText(job.ID, artifact.ScriptFile, script); err != nil {
		return "", "", 0, err
	}
	if _, err = e.store.WriteText(job.ID, artifact.TranscriptFile, transcript); err != nil {
		return "", "", 0, err
	}
	return script, transcript, score, nil
}

func (e *ScriptExecutor) push(jobID string, seconds float64, score *float64, success bool) {
	if e.metrics != nil {
		e.metrics.PushRun(jobID, seconds, score, success)
	}
}

package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"video-essay-service/internal/entity"
	"video-essay-service/internal/service"
)

// Stage runner ports; implementations live in internal/pipeline.
type ScriptRunner interface {
	Run(ctx context.Context, jobID string) error
}

type AudioRunner interface {
	Run(ctx context.Context, jobID, voice string) error
}

type VideoRunner interface {
	Run(ctx context.Context, jobID string) error
}

// Processor dispatches a claimed task to its stage executor and applies the
// retry policy: exactly one automatic retry after a fixed backoff, each
// attempt bounded by a hard wall-clock ceiling. Stage executors persist the
// final FAILED/COMPLETED disposition themselves; re-running a stage for the
// same job id overwrites any prior partial output.
type Processor struct {
	script ScriptRunner
	audio  AudioRunner
	video  VideoRunner

	taskTimeout  time.Duration
	retryBackoff time.Duration
}

func NewProcessor(script ScriptRunner, audio AudioRunner, video VideoRunner, taskTimeout, retryBackoff time.Duration) *Processor {
	if taskTimeout <= 0 {
		taskTimeout = 30 * time.Minute
	}
	return &Processor{
		script:       script,
		audio:        audio,
		video:        video,
		taskTimeout:  taskTimeout,
		retryBackoff: retryBackoff,
	}
}

func (p *Processor) Process(ctx context.Context, task service.Task) error {
	start := time.Now()
	log.Printf("[worker] job_id=%s stage=%s status=processing", task.JobID, task.Stage)

	err := p.runOnce(ctx, task)
	if err != nil && p.shouldRetry(ctx, err) {
		log.Printf("[worker] job_id=%s stage=%s attempt=1 error=%v, retrying in %s",
			task.JobID, task.Stage, err, p.retryBackoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryBackoff):
		}
		err = p.runOnce(ctx, task)
	}

	if err != nil {
		log.Printf("[worker] job_id=%s stage=%s status=failed duration_ms=%d error=%v",
			task.JobID, task.Stage, time.Since(start).Milliseconds(), err)
		return err
	}

	log.Printf("[worker] job_id=%s stage=%s status=done duration_ms=%d",
		task.JobID, task.Stage, time.Since(start).Milliseconds())
	return nil
}

// runOnce executes a single attempt under the task timeout. A timed-out
// attempt is indistinguishable from any other failure: it counts toward the
// one retry.
func (p *Processor) runOnce(ctx context.Context, task service.Task) error {
	tctx, cancel := context.WithTimeout(ctx, p.taskTimeout)
	defer cancel()

	switch task.Stage {
	case entity.StageScript:
		return p.script.Run(tctx, task.JobID)
	case entity.StageAudio:
		return p.audio.Run(tctx, task.JobID, task.Voice)
	case entity.StageVideo:
		return p.video.Run(tctx, task.JobID)
	default:
		return errors.New("unknown stage: " + string(task.Stage))
	}
}

// shouldRetry excludes failures a second attempt cannot fix: unknown jobs and
// a shutting-down worker.
func (p *Processor) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, entity.ErrJobNotFound)
}

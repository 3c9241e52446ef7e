package service

import (
	"context"
	"errors"
	"fmt"

	"video-essay-service/internal/artifact"
	"video-essay-service/internal/entity"
)

// Boundary errors. Handlers map these to 4xx responses; nothing here is
// retried.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrScriptNotReady = errors.New("script must be generated first")
	ErrAudioNotReady  = errors.New("audio must be generated first")
	ErrVideoDisabled  = errors.New("video generation is disabled")
	ErrEmptyPatch     = errors.New("no changes provided")
)

// JobRepository is the repository port the service needs
// (implementation: postgresql.JobRepository).
type JobRepository interface {
	Create(ctx context.Context, topic, style string, length int, imagePrompts map[string][]string) (*entity.Job, error)
	GetByID(ctx context.Context, id string) (*entity.Job, error)
	List(ctx context.Context, limit int) ([]*entity.Job, error)
	Update(ctx context.Context, id string, upd entity.JobUpdate) error
	ResetForRerender(ctx context.Context, id string) error
}

// TaskEnqueuer is the small queue port for adding tasks.
// (Not named TaskQueue to avoid colliding with task_queue.go.)
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// TextArtifactWriter keeps the canonical text files in sync with the record.
type TextArtifactWriter interface {
	WriteText(jobID, name, content string) (string, error)
}

type JobService struct {
	repo        JobRepository
	queue       TaskEnqueuer
	texts       TextArtifactWriter
	enableVideo bool
	listLimit   int
}

func NewJobService(repo JobRepository, queue TaskEnqueuer, texts TextArtifactWriter, enableVideo bool) *JobService {
	return &JobService{
		repo:        repo,
		queue:       queue,
		texts:       texts,
		enableVideo: enableVideo,
		listLimit:   100,
	}
}

type CreateJobRequest struct {
	Topic        string
	Style        string
	Length       int
	ImagePrompts map[string][]string
}

func (r CreateJobRequest) validate() error {
	if n := len(r.Topic); n < 3 || n > 255 {
		return fmt.Errorf("%w: topic must be 3-255 characters", ErrInvalidRequest)
	}
	if n := len(r.Style); n < 3 || n > 255 {
		return fmt.Errorf("%w: style must be 3-255 characters", ErrInvalidRequest)
	}
	if r.Length <= 30 {
		return fmt.Errorf("%w: length must be greater than 30 seconds", ErrInvalidRequest)
	}
	return nil
}

// CreateJob persists a new job and schedules its script stage.
func (s *JobService) CreateJob(ctx context.Context, req CreateJobRequest) (*entity.Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	job, err := s.repo.Create(ctx, req.Topic, req.Style, req.Length, req.ImagePrompts)
	if err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, Task{JobID: job.ID, Stage: entity.StageScript}); err != nil {
		return nil, fmt.Errorf("enqueue script task: %w", err)
	}
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (*entity.Job, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *JobService) ListJobs(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > s.listLimit {
		limit = s.listLimit
	}
	return s.repo.List(ctx, limit)
}

type JobPatch struct {
	Script          *string
	Transcript      *string
	ImagePrompts    map[string][]string
	ResearchContext *entity.ResearchResult
}

func (p JobPatch) empty() bool {
	return p.Script == nil && p.Transcript == nil && p.ImagePrompts == nil && p.ResearchContext == nil
}

// PatchJob applies a manual content override. Empty patches are rejected.
func (s *JobService) PatchJob(ctx context.Context, id string, patch JobPatch) (*entity.Job, error) {
	if patch.empty() {
		return nil, ErrEmptyPatch
	}

	upd := entity.JobUpdate{
		Script:          patch.Script,
		Transcript:      patch.Transcript,
		ImagePrompts:    patch.ImagePrompts,
		ResearchContext: patch.ResearchContext,
	}
	if err := s.repo.Update(ctx, id, upd); err != nil {
		return nil, err
	}

	// Keep the canonical text files aligned with the record; the record is
	// authoritative for text either way.
	if s.texts != nil {
		if patch.Script != nil {
			if _, err := s.texts.WriteText(id, artifact.ScriptFile, *patch.Script); err != nil {
				return nil, err
			}
		}
		if patch.Transcript != nil {
			if _, err := s.texts.WriteText(id, artifact.TranscriptFile, *patch.Transcript); err != nil {
				return nil, err
			}
		}
	}

	return s.repo.GetByID(ctx, id)
}

// RequestAudio schedules the audio stage. The script stage must be completed.
func (s *JobService) RequestAudio(ctx context.Context, id, voice string) (*entity.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.StageStatusFor(entity.StageScript) != entity.StatusCompleted {
		return nil, ErrScriptNotReady
	}

	queued := entity.StatusQueued
	if err := s.repo.Update(ctx, id, entity.JobUpdate{AudioStatus: &queued}); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, Task{JobID: id, Stage: entity.StageAudio, Voice: voice}); err != nil {
		return nil, fmt.Errorf("enqueue audio task: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}

// RequestVideo schedules the video stage. The audio stage must be completed
// and video generation must be administratively enabled.
func (s *JobService) RequestVideo(ctx context.Context, id string) (*entity.Job, error) {
	if !s.enableVideo {
		return nil, ErrVideoDisabled
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.StageStatusFor(entity.StageAudio) != entity.StatusCompleted {
		return nil, ErrAudioNotReady
	}

	queued := entity.StatusQueued
	if err := s.repo.Update(ctx, id, entity.JobUpdate{VideoStatus: &queued}); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, Task{JobID: id, Stage: entity.StageVideo}); err != nil {
		return nil, fmt.Errorf("enqueue video task: %w", err)
	}
	return s.repo.GetByID(ctx, id)
}

// Rerender restarts the pipeline from the script stage, invalidating
// everything downstream.
func (s *JobService) Rerender(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.ResetForRerender(ctx, id); err != nil {
		return err
	}
	if err := s.queue.Enqueue(ctx, Task{JobID: id, Stage: entity.StageScript}); err != nil {
		return fmt.Errorf("enqueue script task: %w", err)
	}
	return nil
}

package service_test

import (
	"context"
	"errors"
	"testing"

	"video-essay-service/internal/entity"
	"video-essay-service/internal/service"
)

type fakeRepo struct {
	createCalled int
	lastTopic    string
	lastStyle    string
	lastLength   int
	lastPrompts  map[string][]string

	jobs    map[string]*entity.Job
	updates []entity.JobUpdate
	resets  []string

	createErr error
}

func (r *fakeRepo) Create(ctx context.Context, topic, style string, length int, imagePrompts map[string][]string) (*entity.Job, error) {
	r.createCalled++
	r.lastTopic = topic
	r.lastStyle = style
	r.lastLength = length
	r.lastPrompts = imagePrompts
	if r.createErr != nil {
		return nil, r.createErr
	}
	j := &entity.Job{
		ID:           "created-job",
		Topic:        topic,
		Style:        style,
		Length:       length,
		Status:       entity.StatusQueued,
		ScriptStatus: entity.StatusQueued,
		AudioStatus:  entity.StatusNotRequested,
		VideoStatus:  entity.StatusNotRequested,
	}
	if r.jobs == nil {
		r.jobs = map[string]*entity.Job{}
	}
	r.jobs[j.ID] = j
	return j, nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return j, nil
}

func (r *fakeRepo) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	out := make([]*entity.Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) Update(ctx context.Context, id string, upd entity.JobUpdate) error {
	j, ok := r.jobs[id]
	if !ok {
		return entity.ErrJobNotFound
	}
	r.updates = append(r.updates, upd)
	if upd.AudioStatus != nil {
		j.AudioStatus = *upd.AudioStatus
	}
	if upd.VideoStatus != nil {
		j.VideoStatus = *upd.VideoStatus
	}
	if upd.Script != nil {
		j.Script = upd.Script
	}
	return nil
}

func (r *fakeRepo) ResetForRerender(ctx context.Context, id string) error {
	if _, ok := r.jobs[id]; !ok {
		return entity.ErrJobNotFound
	}
	r.resets = append(r.resets, id)
	return nil
}

type fakeQueue struct {
	tasks      []service.Task
	enqueueErr error
}

func (q *fakeQueue) Enqueue(ctx context.Context, task service.Task) error {
	q.tasks = append(q.tasks, task)
	return q.enqueueErr
}

type fakeTexts struct {
	written map[string]string // name -> content
}

func (f *fakeTexts) WriteText(jobID, name, content string) (string, error) {
	if f.written == nil {
		f.written = map[string]string{}
	}
	f.written[name] = content
	return "/tmp/" + jobID + "/" + name, nil
}

func TestJobService_CreateJob_EnqueuesScript(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	queue := &fakeQueue{}
	svc := service.NewJobService(repo, queue, nil, true)

	job, err := svc.CreateJob(ctx, service.CreateJobRequest{
		Topic:  "deep sea exploration",
		Style:  "documentary",
		Length: 180,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if job.ScriptStatus != entity.StatusQueued {
		t.Fatalf("expected script_status=queued, got %s", job.ScriptStatus)
	}
	if len(queue.tasks) != 1 || queue.tasks[0].Stage != entity.StageScript || queue.tasks[0].JobID != job.ID {
		t.Fatalf("expected one script task for %s, got %#v", job.ID, queue.tasks)
	}
}

func TestJobService_CreateJob_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		req  service.CreateJobRequest
	}{
		{"short topic", service.CreateJobRequest{Topic: "ab", Style: "documentary", Length: 120}},
		{"short style", service.CreateJobRequest{Topic: "volcanoes", Style: "x", Length: 120}},
		{"length too small", service.CreateJobRequest{Topic: "volcanoes", Style: "documentary", Length: 30}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{}
			queue := &fakeQueue{}
			svc := service.NewJobService(repo, queue, nil, true)

			_, err := svc.CreateJob(ctx, tc.req)
			if !errors.Is(err, service.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if repo.createCalled != 0 {
				t.Fatalf("expected no repo calls, got %d", repo.createCalled)
			}
			if len(queue.tasks) != 0 {
				t.Fatalf("expected no tasks, got %#v", queue.tasks)
			}
		})
	}
}

func TestJobService_RequestAudio_RequiresCompletedScript(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{jobs: map[string]*entity.Job{
		"j1": {ID: "j1", ScriptStatus: entity.StatusQueued},
	}}
	queue := &fakeQueue{}
	svc := service.NewJobService(repo, queue, nil, true)

	_, err := svc.RequestAudio(ctx, "j1", "")
	if !errors.Is(err, service.ErrScriptNotReady) {
		t.Fatalf("expected ErrScriptNotReady, got %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Fatalf("expected no tasks, got %#v", queue.tasks)
	}
}

func TestJobService_RequestAudio_QueuesStageAndTask(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{jobs: map[string]*entity.Job{
		"j1": {ID: "j1", ScriptStatus: entity.StatusCompleted, AudioStatus: entity.StatusNotRequested},
	}}
	queue := &fakeQueue{}
	svc := service.NewJobService(repo, queue, nil, true)

	job, err := svc.RequestAudio(ctx, "j1", "nova")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if job.AudioStatus != entity.StatusQueued {
		t.Fatalf("expected audio_status=queued, got %s", job.AudioStatus)
	}
	if len(queue.tasks) != 1 || queue.tasks[0].Stage != entity.StageAudio || queue.tasks[0].Voice != "nova" {
		t.Fatalf("expected audio task with voice=nova, got %#v", queue.tasks)
	}
}

func TestJobService_RequestVideo_DisabledAndPreconditions(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{jobs: map[string]*entity.Job{
		"j1": {ID: "j1", ScriptStatus: entity.StatusCompleted, AudioStatus: entity.StatusProcessing},
	}}
	queue := &fakeQueue{}

	disabled := service.NewJobService(repo, queue, nil, false)
	if _, err := disabled.RequestVideo(ctx, "j1"); !errors.Is(err, service.ErrVideoDisabled) {
		t.Fatalf("expected ErrVideoDisabled, got %v", err)
	}

	enabled := service.NewJobService(repo, queue, nil, true)
	if _, err := enabled.RequestVideo(ctx, "j1"); !errors.Is(err, service.ErrAudioNotReady) {
		t.Fatalf("expected ErrAudioNotReady, got %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Fatalf("expected no tasks, got %#v", queue.tasks)
	}
}

func TestJobService_PatchJob_RejectsEmptyPatch(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{jobs: map[string]*entity.Job{"j1": {ID: "j1"}}}
	svc := service.NewJobService(repo, &fakeQueue{}, nil, true)

	_, err := svc.PatchJob(ctx, "j1", service.JobPatch{})
	if !errors.Is(err, service.ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}
	if len(repo.updates) != 0 {
		t.Fatalf("expected no updates, got %#v", repo.updates)
	}
}

func TestJobService_PatchJob_SyncsScriptFile(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{jobs: map[string]*entity.Job{"j1": {ID: "j1"}}}
	texts := &fakeTexts{}
	svc := service.NewJobService(repo, &fakeQueue{}, texts, true)

	newScript := "A revised narration."
	job, err := svc.PatchJob(ctx, "j1", service.JobPatch{Script: &newScript})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if job.Script == nil || *job.Script != newScript {
		t.Fatalf("expected script persisted, got %+v", job.Script)
	}
	if texts.written["script.txt"] != newScript {
		t.Fatalf("expected script.txt synced, got %#v", texts.written)
	}
}

func TestJobService_Rerender_ResetsAndRequeues(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{jobs: map[string]*entity.Job{
		"j1": {ID: "j1", Status: entity.StatusCompleted, ScriptStatus: entity.StatusCompleted},
	}}
	queue := &fakeQueue{}
	svc := service.NewJobService(repo, queue, nil, true)

	if err := svc.Rerender(ctx, "j1"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(repo.resets) != 1 || repo.resets[0] != "j1" {
		t.Fatalf("expected one reset for j1, got %#v", repo.resets)
	}
	if len(queue.tasks) != 1 || queue.tasks[0].Stage != entity.StageScript {
		t.Fatalf("expected script task after rerender, got %#v", queue.tasks)
	}
}

func TestJobService_Rerender_UnknownJob(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{jobs: map[string]*entity.Job{}}
	queue := &fakeQueue{}
	svc := service.NewJobService(repo, queue, nil, true)

	if err := svc.Rerender(ctx, "missing"); !errors.Is(err, entity.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if len(queue.tasks) != 0 {
		t.Fatalf("expected no tasks, got %#v", queue.tasks)
	}
}

package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"

	"video-essay-service/internal/entity"
)

// ---- fakes shared by the stage executor tests ----

type memRepo struct {
	jobs    map[string]*entity.Job
	updates []entity.JobUpdate
}

func newMemRepo(jobs ...*entity.Job) *memRepo {
	m := &memRepo{jobs: map[string]*entity.Job{}}
	for _, j := range jobs {
		m.jobs[j.ID] = j
	}
	return m
}

func (r *memRepo) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return j, nil
}

func (r *memRepo) Update(ctx context.Context, id string, upd entity.JobUpdate) error {
	j, ok := r.jobs[id]
	if !ok {
		return entity.ErrJobNotFound
	}
	r.updates = append(r.updates, upd)
	if upd.Status != nil {
		j.Status = *upd.Status
	}
	if upd.ScriptStatus != nil {
		j.ScriptStatus = *upd.ScriptStatus
	}
	if upd.AudioStatus != nil {
		j.AudioStatus = *upd.AudioStatus
	}
	if upd.VideoStatus != nil {
		j.VideoStatus = *upd.VideoStatus
	}
	if upd.Script != nil {
		j.Script = upd.Script
	}
	if upd.Transcript != nil {
		j.Transcript = upd.Transcript
	}
	if upd.ReviewScore != nil {
		j.ReviewScore = upd.ReviewScore
	}
	if upd.GenerationTime != nil {
		j.GenerationTime = upd.GenerationTime
	}
	if upd.AudioPath != nil {
		j.AudioPath = upd.AudioPath
	}
	if upd.VideoURL != nil {
		j.VideoURL = upd.VideoURL
	}
	if upd.FramesPath != nil {
		j.FramesPath = upd.FramesPath
	}
	if upd.ResearchContext != nil {
		j.ResearchContext = upd.ResearchContext
	}
	return nil
}

type memStore struct {
	texts    map[string]string // name -> content
	promoted map[string]string // name -> src
	existing map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		texts:    map[string]string{},
		promoted: map[string]string{},
		existing: map[string]bool{},
	}
}

func (s *memStore) Promote(jobID, src, name string) (string, error) {
	s.promoted[name] = src
	s.existing[name] = true
	return filepath.Join("/data", jobID, name), nil
}

func (s *memStore) WriteText(jobID, name, content string) (string, error) {
	s.texts[name] = content
	s.existing[name] = true
	return filepath.Join("/data", jobID, name), nil
}

func (s *memStore) Path(jobID, name string) string {
	return filepath.Join("/data", jobID, name)
}

func (s *memStore) Exists(jobID, name string) bool {
	return s.existing[name]
}

type pushRecord struct {
	jobID   string
	seconds float64
	score   *float64
	success bool
}

type memTelemetry struct {
	pushes []pushRecord
}

func (m *memTelemetry) PushRun(jobID string, seconds float64, score *float64, success bool) {
	m.pushes = append(m.pushes, pushRecord{jobID, seconds, score, success})
}

// fakeNarrator returns canned content; errs force per-call failures.
type fakeNarrator struct {
	script      string
	transcript  string
	score       float64
	scriptErr   error
	reviewErr   error
	lastContext string
}

func (n *fakeNarrator) WriteScript(ctx context.Context, topic, style string, lengthSeconds int, researchContext string) (string, error) {
	n.lastContext = researchContext
	if n.scriptErr != nil {
		return "", n.scriptErr
	}
	return n.script, nil
}

func (n *fakeNarrator) WriteTranscript(ctx context.Context, script string) (string, error) {
	return n.transcript, nil
}

func (n *fakeNarrator) Review(ctx context.Context, script string) (float64, error) {
	if n.reviewErr != nil {
		return 0, n.reviewErr
	}
	return n.score, nil
}

type fakeResearcher struct {
	result entity.ResearchResult
	calls  int
}

func (r *fakeResearcher) Gather(ctx context.Context, topic string, limit int) entity.ResearchResult {
	r.calls++
	return r.result
}

type fakeVoicer struct {
	path     string
	err      error
	lastText string
}

func (v *fakeVoicer) Synthesize(ctx context.Context, jobID, text, voice string) (string, error) {
	v.lastText = text
	if v.err != nil {
		return "", v.err
	}
	return v.path, nil
}

type fakeIllustrator struct {
	path  string
	err   error
	parts []string
}

func (i *fakeIllustrator) RenderCover(ctx context.Context, jobID string, promptParts []string) (string, error) {
	i.parts = promptParts
	if i.err != nil {
		return "", i.err
	}
	return i.path, nil
}

type fakeMuxer struct {
	path      string
	err       error
	lastImage string
	lastAudio string
}

func (m *fakeMuxer) AssembleStatic(ctx context.Context, jobID, imagePath, audioPath string) (string, error) {
	m.lastImage = imagePath
	m.lastAudio = audioPath
	if m.err != nil {
		return "", m.err
	}
	return m.path, nil
}

var errBoom = errors.New("boom")

package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"video-essay-service/internal/entity"
	"video-essay-service/internal/service"
	"video-essay-service/internal/worker"
)

var errTransient = errors.New("transient failure")

type scriptStub struct {
	calls int
	errs  []error // error per attempt, nil past the end
}

func (s *scriptStub) Run(ctx context.Context, jobID string) error {
	s.calls++
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

type audioStub struct {
	calls     int
	lastVoice string
}

func (a *audioStub) Run(ctx context.Context, jobID, voice string) error {
	a.calls++
	a.lastVoice = voice
	return nil
}

type videoStub struct {
	calls int
}

func (v *videoStub) Run(ctx context.Context, jobID string) error {
	v.calls++
	return nil
}

type slowScript struct {
	calls int
}

func (s *slowScript) Run(ctx context.Context, jobID string) error {
	s.calls++
	<-ctx.Done()
	return ctx.Err()
}

func newProcessor(script worker.ScriptRunner) *worker.Processor {
	return worker.NewProcessor(script, &audioStub{}, &videoStub{}, time.Second, time.Millisecond)
}

func TestProcessor_RetriesOnceAfterTransientFailure(t *testing.T) {
	script := &scriptStub{errs: []error{errTransient}}
	p := newProcessor(script)

	err := p.Process(context.Background(), service.Task{JobID: "j1", Stage: entity.StageScript})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if script.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", script.calls)
	}
}

func TestProcessor_GivesUpAfterSecondFailure(t *testing.T) {
	script := &scriptStub{errs: []error{errTransient, errTransient}}
	p := newProcessor(script)

	err := p.Process(context.Background(), service.Task{JobID: "j1", Stage: entity.StageScript})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error surfaced, got %v", err)
	}
	if script.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", script.calls)
	}
}

func TestProcessor_NeverRetriesUnknownJob(t *testing.T) {
	script := &scriptStub{errs: []error{entity.ErrJobNotFound}}
	p := newProcessor(script)

	err := p.Process(context.Background(), service.Task{JobID: "missing", Stage: entity.StageScript})
	if !errors.Is(err, entity.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if script.calls != 1 {
		t.Fatalf("expected single attempt, got %d", script.calls)
	}
}

func TestProcessor_TimeoutCountsAsFailureAndRetries(t *testing.T) {
	script := &slowScript{}
	p := worker.NewProcessor(script, &audioStub{}, &videoStub{}, 10*time.Millisecond, time.Millisecond)

	err := p.Process(context.Background(), service.Task{JobID: "j1", Stage: entity.StageScript})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if script.calls != 2 {
		t.Fatalf("expected timed-out attempt to be retried once, got %d attempts", script.calls)
	}
}

func TestProcessor_NoRetryWhenShuttingDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	script := &scriptStub{errs: []error{errTransient, errTransient}}
	p := newProcessor(script)

	// cancel between the failure and the retry decision
	cancel()

	err := p.Process(ctx, service.Task{JobID: "j1", Stage: entity.StageScript})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if script.calls != 1 {
		t.Fatalf("expected single attempt on shutdown, got %d", script.calls)
	}
}

func TestProcessor_DispatchesVoiceToAudioStage(t *testing.T) {
	audio := &audioStub{}
	p := worker.NewProcessor(&scriptStub{}, audio, &videoStub{}, time.Second, time.Millisecond)

	err := p.Process(context.Background(), service.Task{JobID: "j1", Stage: entity.StageAudio, Voice: "alloy"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if audio.calls != 1 || audio.lastVoice != "alloy" {
		t.Fatalf("expected one audio run with voice=alloy, got calls=%d voice=%q", audio.calls, audio.lastVoice)
	}
}

func TestProcessor_UnknownStageFails(t *testing.T) {
	p := newProcessor(&scriptStub{})

	err := p.Process(context.Background(), service.Task{JobID: "j1", Stage: entity.Stage("thumbnails")})
	if err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

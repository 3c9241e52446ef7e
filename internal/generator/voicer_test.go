package generator_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"video-essay-service/internal/generator"
)

type voicerStub struct {
	path  string
	err   error
	calls int
}

func (v *voicerStub) Synthesize(ctx context.Context, jobID, text, voice string) (string, error) {
	v.calls++
	if v.err != nil {
		return "", v.err
	}
	return v.path, nil
}

func TestVoicerChain_FirstBackendWins(t *testing.T) {
	primary := &voicerStub{path: "/tmp/primary.wav"}
	fallback := &voicerStub{path: "/tmp/fallback.wav"}
	chain := generator.NewVoicerChain(primary, fallback)

	path, err := chain.Synthesize(context.Background(), "j1", "hello", "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if path != "/tmp/primary.wav" {
		t.Fatalf("expected primary path, got %s", path)
	}
	if fallback.calls != 0 {
		t.Fatalf("expected fallback untouched, got %d calls", fallback.calls)
	}
}

func TestVoicerChain_FallsBackOnFailure(t *testing.T) {
	primary := &voicerStub{err: errors.New("server unreachable")}
	fallback := &voicerStub{path: "/tmp/fallback.wav"}
	chain := generator.NewVoicerChain(primary, fallback)

	path, err := chain.Synthesize(context.Background(), "j1", "hello", "")
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if path != "/tmp/fallback.wav" {
		t.Fatalf("expected fallback path, got %s", path)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected both backends tried once, got %d/%d", primary.calls, fallback.calls)
	}
}

func TestVoicerChain_AllBackendsFailing(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	chain := generator.NewVoicerChain(&voicerStub{err: errA}, &voicerStub{err: errB})

	_, err := chain.Synthesize(context.Background(), "j1", "hello", "")
	if err == nil {
		t.Fatal("expected error when every backend fails")
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected joined backend errors, got %v", err)
	}
}

func TestVoicerChain_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &voicerStub{err: errors.New("interrupted")}
	fallback := &voicerStub{path: "/tmp/fallback.wav"}
	chain := generator.NewVoicerChain(primary, fallback)

	_, err := chain.Synthesize(ctx, "j1", "hello", "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fallback.calls != 0 {
		t.Fatalf("expected no fallback after cancellation, got %d calls", fallback.calls)
	}
}

func TestHTTPVoicer_WritesWavToTempDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["voice"] != "alloy" {
			t.Errorf("expected requested voice forwarded, got %v", req["voice"])
		}
		if req["response_format"] != "wav" {
			t.Errorf("expected wav response format, got %v", req["response_format"])
		}
		w.Write([]byte("RIFFfakewav"))
	}))
	defer srv.Close()

	store := tempStore(t)
	v := generator.NewHTTPVoicer(srv.URL, "nova", 1.0, store)

	path, err := v.Synthesize(context.Background(), "j1", "hello world", "alloy")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "RIFFfakewav" {
		t.Fatalf("expected wav written, got %q err=%v", got, err)
	}
}

func TestHTTPVoicer_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice model missing", http.StatusBadGateway)
	}))
	defer srv.Close()

	v := generator.NewHTTPVoicer(srv.URL, "nova", 1.0, tempStore(t))

	_, err := v.Synthesize(context.Background(), "j1", "hello", "")
	if err == nil {
		t.Fatal("expected error from failing speech server")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

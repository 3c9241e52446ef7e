package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// TempDirer provides the per-job scratch directory voicers write into.
type TempDirer interface {
	TempDir(jobID string) (string, error)
}

// HTTPVoicer sends narration text to a Kokoro-style speech server and stores
// the returned wav in the job's temp directory.
type HTTPVoicer struct {
	baseURL string
	voice   string
	speed   float64
	store   TempDirer
	client  *http.Client
}

func NewHTTPVoicer(baseURL, defaultVoice string, speed float64, store TempDirer) *HTTPVoicer {
	return &HTTPVoicer{
		baseURL: strings.TrimRight(baseURL, "/"),
		voice:   defaultVoice,
		speed:   speed,
		store:   store,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

func (v *HTTPVoicer) Synthesize(ctx context.Context, jobID, text, voice string) (string, error) {
	if voice == "" {
		voice = v.voice
	}

	body, err := json.Marshal(speechRequest{
		Model:          "kokoro",
		Input:          text,
		Voice:          voice,
		Speed:          v.speed,
		ResponseFormat: "wav",
	})
	if err != nil {
		return "", fmt.Errorf("encode speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("speech server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	dir, err := v.store.TempDir(jobID)
	if err != nil {
		return "", err
	}
	audioPath := filepath.Join(dir, "audio.wav")

	out, err := os.Create(audioPath)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("write audio file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("finalise audio file: %w", err)
	}
	return audioPath, nil
}

// EspeakVoicer shells out to espeak-ng. It is the low-fidelity backend used
// when the speech server is unreachable.
type EspeakVoicer struct {
	bin   string
	store TempDirer
}

func NewEspeakVoicer(bin string, store TempDirer) *EspeakVoicer {
	if bin == "" {
		bin = "espeak-ng"
	}
	return &EspeakVoicer{bin: bin, store: store}
}

func (v *EspeakVoicer) Synthesize(ctx context.Context, jobID, text, _ string) (string, error) {
	dir, err := v.store.TempDir(jobID)
	if err != nil {
		return "", err
	}
	audioPath := filepath.Join(dir, "audio.wav")

	cmd := exec.CommandContext(ctx, v.bin, "-w", audioPath, text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("espeak synthesis: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return audioPath, nil
}

// VoicerChain tries each backend in order and returns the first success.
type VoicerChain struct {
	backends []Voicer
}

func NewVoicerChain(backends ...Voicer) *VoicerChain {
	return &VoicerChain{backends: backends}
}

func (c *VoicerChain) Synthesize(ctx context.Context, jobID, text, voice string) (string, error) {
	var errs []error
	for i, backend := range c.backends {
		path, err := backend.Synthesize(ctx, jobID, text, voice)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if i < len(c.backends)-1 {
			log.Printf("[voicer] backend %d failed, falling back: %v", i, err)
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", errors.New("voicer chain has no backends")
	}
	return "", fmt.Errorf("all voicer backends failed: %w", errors.Join(errs...))
}

package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	coverWidth  = 1280
	coverHeight = 720
)

// mergePrompt joins non-empty prompt fragments into one prompt string.
func mergePrompt(parts []string) string {
	var kept []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}

// DiffusionIllustrator calls a Stable-Diffusion-compatible txt2img endpoint.
// When the endpoint fails, it falls back to the configured secondary so a
// missing image server never blocks the video stage.
type DiffusionIllustrator struct {
	baseURL  string
	store    TempDirer
	client   *http.Client
	Fallback Illustrator
}

func NewDiffusionIllustrator(baseURL string, store TempDirer) *DiffusionIllustrator {
	return &DiffusionIllustrator{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

type txt2imgRequest struct {
	Prompt   string  `json:"prompt"`
	Steps    int     `json:"steps"`
	CFGScale float64 `json:"cfg_scale"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

func (il *DiffusionIllustrator) RenderCover(ctx context.Context, jobID string, promptParts []string) (string, error) {
	path, err := il.render(ctx, jobID, promptParts)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if il.Fallback != nil {
			log.Printf("[illustrator] diffusion render failed, using fallback: %v", err)
			return il.Fallback.RenderCover(ctx, jobID, promptParts)
		}
		return "", err
	}
	return path, nil
}

func (il *DiffusionIllustrator) render(ctx context.Context, jobID string, promptParts []string) (string, error) {
	body, err := json.Marshal(txt2imgRequest{
		Prompt:   mergePrompt(promptParts),
		Steps:    35,
		CFGScale: 7.5,
		Width:    coverWidth,
		Height:   coverHeight,
	})
	if err != nil {
		return "", fmt.Errorf("encode txt2img request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, il.baseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build txt2img request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := il.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("txt2img request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("image server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed txt2imgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode txt2img response: %w", err)
	}
	if len(parsed.Images) == 0 {
		return "", fmt.Errorf("image server returned no images")
	}

	raw, err := base64.StdEncoding.DecodeString(parsed.Images[0])
	if err != nil {
		return "", fmt.Errorf("decode image payload: %w", err)
	}

	dir, err := il.store.TempDir(jobID)
	if err != nil {
		return "", err
	}
	imagePath := filepath.Join(dir, "cover.png")
	if err := os.WriteFile(imagePath, raw, 0o644); err != nil {
		return "", fmt.Errorf("write cover image: %w", err)
	}
	return imagePath, nil
}

// PlaceholderIllustrator draws the prompt text onto a dark card. It keeps the
// pipeline runnable without any image model.
type PlaceholderIllustrator struct {
	store TempDirer
}

func NewPlaceholderIllustrator(store TempDirer) *PlaceholderIllustrator {
	return &PlaceholderIllustrator{store: store}
}

func (il *PlaceholderIllustrator) RenderCover(ctx context.Context, jobID string, promptParts []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir, err := il.store.TempDir(jobID)
	if err != nil {
		return "", err
	}
	imagePath := filepath.Join(dir, "cover.png")

	img := image.NewRGBA(image.Rect(0, 0, coverWidth, coverHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{30, 30, 30, 255}), image.Point{}, draw.Src)

	prompt := truncateRunes(mergePrompt(promptParts), 512)
	drawWrappedText(img, prompt, 40, 60)

	out, err := os.Create(imagePath)
	if err != nil {
		return "", fmt.Errorf("create placeholder image: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return "", fmt.Errorf("encode placeholder image: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("finalise placeholder image: %w", err)
	}
	return imagePath, nil
}

func drawWrappedText(img *image.RGBA, text string, x, y int) {
	face := basicfont.Face7x13
	maxChars := (coverWidth - 2*x) / 7
	if maxChars < 8 {
		maxChars = 8
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
	}

	words := strings.Fields(text)
	line := ""
	for _, word := range words {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if len(candidate) > maxChars && line != "" {
			drawer.Dot = fixed.P(x, y)
			drawer.DrawString(line)
			y += face.Height + 4
			line = word
			continue
		}
		line = candidate
	}
	if line != "" {
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(line)
	}
}

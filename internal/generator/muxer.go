package generator

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpegMuxer loops a still image over an audio track and encodes a video
// whose duration matches the audio.
type FFmpegMuxer struct {
	bin   string
	store TempDirer
}

func NewFFmpegMuxer(bin string, store TempDirer) *FFmpegMuxer {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegMuxer{bin: bin, store: store}
}

func (m *FFmpegMuxer) AssembleStatic(ctx context.Context, jobID, imagePath, audioPath string) (string, error) {
	if _, err := exec.LookPath(m.bin); err != nil {
		return "", fmt.Errorf("ffmpeg binary not found: %w", err)
	}

	dir, err := m.store.TempDir(jobID)
	if err != nil {
		return "", err
	}
	videoPath := filepath.Join(dir, "final.mp4")

	args := []string{
		"-y",
		"-loop", "1",
		"-i", imagePath,
		"-i", audioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		videoPath,
	}

	cmd := exec.CommandContext(ctx, m.bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg assembly: %w: %s", err, lastLines(string(out), 5))
	}
	return videoPath, nil
}

// lastLines keeps error messages readable; ffmpeg output can run to pages.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

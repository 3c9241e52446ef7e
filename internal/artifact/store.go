package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Canonical per-job artifact file names. Clients are guaranteed to find
// completed output at these locations, regardless of where a generator
// produced it first.
const (
	ScriptFile     = "script.txt"
	TranscriptFile = "transcript.txt"
	ImageFile      = "image.png"
	AudioFile      = "audio.wav"
	VideoFile      = "final.mp4"

	tempDirName   = "temp"
	framesDirName = "frames"
)

var ErrNotFound = errors.New("artifact not found")

// Store manages the filesystem area holding per-job artifacts. The root is
// shared across jobs but partitioned by job id directory.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifacts root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the artifacts root directory.
func (s *Store) Root() string {
	return s.root
}

// JobDir resolves the canonical directory for a job.
func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.root, jobID)
}

// Path resolves a canonical artifact location without checking existence.
func (s *Store) Path(jobID, name string) string {
	return filepath.Join(s.root, jobID, name)
}

// TempDir returns the per-job scratch directory generators write into,
// creating it when needed.
func (s *Store) TempDir(jobID string) (string, error) {
	dir := filepath.Join(s.root, jobID, tempDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	return dir, nil
}

// Promote copies a generator's output from its temporary location into the
// canonical per-job path. It copies rather than moves so a retried stage can
// still find the source, and it is a no-op when the generator already wrote
// to the canonical path.
func (s *Store) Promote(jobID, src, name string) (string, error) {
	dst := s.Path(jobID, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating job directory: %w", err)
	}

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("resolving source path: %w", err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return "", fmt.Errorf("resolving destination path: %w", err)
	}
	if absSrc == absDst {
		return dst, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("opening generator output: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating canonical artifact: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copying artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("finalising artifact: %w", err)
	}
	return dst, nil
}

// WriteText persists a text artifact at its canonical path.
func (s *Store) WriteText(jobID, name, content string) (string, error) {
	dst := s.Path(jobID, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating job directory: %w", err)
	}
	if err := os.WriteFile(dst, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing text artifact: %w", err)
	}
	return dst, nil
}

// Exists reports whether a canonical artifact file is present.
func (s *Store) Exists(jobID, name string) bool {
	info, err := os.Stat(s.Path(jobID, name))
	return err == nil && !info.IsDir()
}

// ListFrames returns the sorted file names under the job's frames directory.
func (s *Store) ListFrames(jobID string) ([]string, error) {
	dir := filepath.Join(s.root, jobID, framesDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading frames directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".png" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

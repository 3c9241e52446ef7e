package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"video-essay-service/internal/entity"
)

// ErrNotFound aliases the shared sentinel so callers can match either name.
var ErrNotFound = entity.ErrJobNotFound

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id               UUID PRIMARY KEY,
	topic            TEXT NOT NULL,
	style            TEXT NOT NULL,
	length           INT NOT NULL,
	status           TEXT NOT NULL,
	script_status    TEXT NOT NULL,
	audio_status     TEXT NOT NULL,
	video_status     TEXT NOT NULL,
	script           TEXT,
	transcript       TEXT,
	image_prompts    JSONB,
	research_context JSONB,
	review_score     DOUBLE PRECISION,
	generation_time  DOUBLE PRECISION,
	video_url        TEXT,
	audio_path       TEXT,
	frames_path      TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at       TIMESTAMPTZ,
	finished_at      TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS jobs_created_at_idx ON jobs (created_at DESC);
`

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *JobRepository) Create(ctx context.Context, topic, style string, length int, imagePrompts map[string][]string) (*entity.Job, error) {
	id := uuid.New().String()

	var promptsJSON []byte
	if imagePrompts != nil {
		b, err := json.Marshal(imagePrompts)
		if err != nil {
			return nil, fmt.Errorf("marshal image prompts: %w", err)
		}
		promptsJSON = b
	}

	const q = `
INSERT INTO jobs (id, topic, style, length, status, script_status, audio_status, video_status, image_prompts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := r.pool.Exec(ctx, q, id, topic, style, length,
		string(entity.StatusQueued),
		string(entity.StatusQueued),
		string(entity.StatusNotRequested),
		string(entity.StatusNotRequested),
		promptsJSON,
	)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

const jobColumns = `
id, topic, style, length, status, script_status, audio_status, video_status,
script, transcript, image_prompts, research_context, review_score, generation_time,
video_url, audio_path, frames_path, created_at, updated_at, started_at, finished_at
`

func (r *JobRepository) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`

	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func (r *JobRepository) List(ctx context.Context, limit int) ([]*entity.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT $1;`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) Update(ctx context.Context, id string, upd entity.JobUpdate) error {
	if upd.Empty() {
		return errors.New("empty update")
	}

	set := []string{"updated_at = now()"}
	args := []any{id}
	add := func(col string, val any) {
		args = append(args, val)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.ScriptStatus != nil {
		add("script_status", string(*upd.ScriptStatus))
	}
	if upd.AudioStatus != nil {
		add("audio_status", string(*upd.AudioStatus))
	}
	if upd.VideoStatus != nil {
		add("video_status", string(*upd.VideoStatus))
	}
	if upd.Script != nil {
		add("script", *upd.Script)
	}
	if upd.Transcript != nil {
		add("transcript", *upd.Transcript)
	}
	if upd.ImagePrompts != nil {
		b, err := json.Marshal(upd.ImagePrompts)
		if err != nil {
			return fmt.Errorf("marshal image prompts: %w", err)
		}
		add("image_prompts", b)
	}
	if upd.ResearchContext != nil {
		b, err := json.Marshal(upd.ResearchContext)
		if err != nil {
			return fmt.Errorf("marshal research context: %w", err)
		}
		add("research_context", b)
	}
	if upd.ReviewScore != nil {
		add("review_score", *upd.ReviewScore)
	}
	if upd.GenerationTime != nil {
		add("generation_time", *upd.GenerationTime)
	}
	if upd.VideoURL != nil {
		add("video_url", *upd.VideoURL)
	}
	if upd.AudioPath != nil {
		add("audio_path", *upd.AudioPath)
	}
	if upd.FramesPath != nil {
		add("frames_path", *upd.FramesPath)
	}
	if upd.StartedAt != nil {
		add("started_at", *upd.StartedAt)
	}
	if upd.FinishedAt != nil {
		add("finished_at", *upd.FinishedAt)
	}

	q := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $1;", strings.Join(set, ", "))
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetForRerender puts the job back at the start of the pipeline and clears
// everything downstream stages produced. Audio and video outputs are only
// meaningful relative to the script that produced them.
func (r *JobRepository) ResetForRerender(ctx context.Context, id string) error {
	const q = `
UPDATE jobs SET
	status = $2,
	script_status = $2,
	audio_status = $3,
	video_status = $3,
	audio_path = NULL,
	video_url = NULL,
	frames_path = NULL,
	transcript = NULL,
	updated_at = now()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, q, id, string(entity.StatusQueued), string(entity.StatusNotRequested))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job           entity.Job
		status        string
		scriptStatus  string
		audioStatus   string
		videoStatus   string
		promptsBytes  []byte
		researchBytes []byte
	)

	if err := row.Scan(
		&job.ID,
		&job.Topic,
		&job.Style,
		&job.Length,
		&status,
		&scriptStatus,
		&audioStatus,
		&videoStatus,
		&job.Script,
		&job.Transcript,
		&promptsBytes,
		&researchBytes,
		&job.ReviewScore,
		&job.GenerationTime,
		&job.VideoURL,
		&job.AudioPath,
		&job.FramesPath,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	); err != nil {
		return nil, err
	}

	job.Status = entity.StageStatus(status)
	job.ScriptStatus = entity.StageStatus(scriptStatus)
	job.AudioStatus = entity.StageStatus(audioStatus)
	job.VideoStatus = entity.StageStatus(videoStatus)

	if len(promptsBytes) > 0 {
		if err := json.Unmarshal(promptsBytes, &job.ImagePrompts); err != nil {
			return nil, fmt.Errorf("unmarshal image prompts: %w", err)
		}
	}
	if len(researchBytes) > 0 {
		var rc entity.ResearchResult
		if err := json.Unmarshal(researchBytes, &rc); err != nil {
			return nil, fmt.Errorf("unmarshal research context: %w", err)
		}
		job.ResearchContext = &rc
	}

	return &job, nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"video-essay-service/internal/entity"
)

// Task is the dispatch unit: one stage invocation for one job.
type Task struct {
	JobID string       `json:"job_id"`
	Stage entity.Stage `json:"stage"`
	Voice string       `json:"voice,omitempty"`
}

// TaskQueue is the full queue contract used by the worker process.
type TaskQueue interface {
	Enqueue(ctx context.Context, task Task) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (payload string, task Task, err error)
	Ack(ctx context.Context, payload string) error
	RequeueStale(ctx context.Context, maxPerLane int64) (int64, error)
}

type Lane struct {
	QueueKey      string
	ProcessingKey string
}

// redisTaskQueue implements a reliable queue over Redis lists with one lane
// per pipeline stage.
// Claim: BRPOPLPUSH lane.queue -> lane.processing
// Ack:   LREM from the processing list recorded in processingMapKey
type redisTaskQueue struct {
	rdb              *redis.Client
	processingMapKey string

	script Lane
	audio  Lane
	video  Lane
}

// NewRedisTaskQueue builds the stage lanes under the given key prefix.
func NewRedisTaskQueue(rdb *redis.Client, prefix string) TaskQueue {
	lane := func(stage entity.Stage) Lane {
		base := fmt.Sprintf("%s:%s", prefix, stage)
		return Lane{QueueKey: base, ProcessingKey: base + ":processing"}
	}
	return &redisTaskQueue{
		rdb:              rdb,
		processingMapKey: prefix + ":processing:map",
		script:           lane(entity.StageScript),
		audio:            lane(entity.StageAudio),
		video:            lane(entity.StageVideo),
	}
}

func (q *redisTaskQueue) laneByStage(stage entity.Stage) Lane {
	switch stage {
	case entity.StageAudio:
		return q.audio
	case entity.StageVideo:
		return q.video
	default:
		return q.script
	}
}

func (q *redisTaskQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	ln := q.laneByStage(task.Stage)
	return q.rdb.LPush(ctx, ln.QueueKey, payload).Err()
}

// ClaimBlocking polls the script/audio/video lanes with small blocking slots,
// so a single worker loop serves every stage.
func (q *redisTaskQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, Task, error) {
	// timeout <= 0 means loop forever, like a worker daemon
	forever := timeout <= 0
	deadline := time.Now().Add(timeout)

	slot := 1 * time.Second
	if !forever && timeout < slot {
		slot = timeout
	}

	for {
		if !forever && time.Now().After(deadline) {
			return "", Task{}, redis.Nil
		}

		for _, ln := range []Lane{q.script, q.audio, q.video} {
			wait := slot
			if !forever {
				remain := time.Until(deadline)
				if remain <= 0 {
					return "", Task{}, redis.Nil
				}
				if remain < wait {
					wait = remain
				}
			}

			payload, err := q.rdb.BRPopLPush(ctx, ln.QueueKey, ln.ProcessingKey, wait).Result()
			if err == nil {
				// remember which processing list holds this payload (for Ack)
				if hErr := q.rdb.HSet(ctx, q.processingMapKey, payload, ln.ProcessingKey).Err(); hErr != nil {
					return "", Task{}, hErr
				}
				var task Task
				if uErr := json.Unmarshal([]byte(payload), &task); uErr != nil {
					// poison entry: drop it from processing so it cannot loop
					_ = q.Ack(ctx, payload)
					return "", Task{}, fmt.Errorf("unmarshal task payload: %w", uErr)
				}
				return payload, task, nil
			}

			if errors.Is(err, redis.Nil) {
				continue
			}
			return "", Task{}, err
		}
	}
}

func (q *redisTaskQueue) Ack(ctx context.Context, payload string) error {
	processingKey, err := q.rdb.HGet(ctx, q.processingMapKey, payload).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// mapping missing (reaped or manual intervention): sweep all lanes
			_ = q.rdb.LRem(ctx, q.script.ProcessingKey, 1, payload).Err()
			_ = q.rdb.LRem(ctx, q.audio.ProcessingKey, 1, payload).Err()
			_ = q.rdb.LRem(ctx, q.video.ProcessingKey, 1, payload).Err()
			return nil
		}
		return err
	}

	if err := q.rdb.LRem(ctx, processingKey, 1, payload).Err(); err != nil {
		return err
	}
	_ = q.rdb.HDel(ctx, q.processingMapKey, payload).Err()
	return nil
}

// RequeueStale moves entries from processing back to their queue per lane.
// It is a simple reaper: at-least-once delivery when a worker dies mid-task.
func (q *redisTaskQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	var moved int64

	for _, ln := range []Lane{q.script, q.audio, q.video} {
		for i := int64(0); i < maxPerLane; i++ {
			payload, err := q.rdb.RPopLPush(ctx, ln.ProcessingKey, ln.QueueKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					break
				}
				return moved, err
			}
			if payload != "" {
				moved++
				_ = q.rdb.HDel(ctx, q.processingMapKey, payload).Err()
			}
		}
	}

	return moved, nil
}

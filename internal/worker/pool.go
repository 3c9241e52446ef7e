package worker

import (
	"context"
	"log"
	"time"

	"video-essay-service/internal/service"
)

type claimed struct {
	payload string
	task    service.Task
}

type Pool struct {
	queue      service.TaskQueue
	processor  *Processor
	workers    int
	claimDelay time.Duration
}

func NewPool(queue service.TaskQueue, processor *Processor, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
	}
}

func (p *Pool) Run(ctx context.Context) {
	log.Printf("worker pool started: workers=%d", p.workers)

	taskCh := make(chan claimed)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			for c := range taskCh {
				err := p.processor.Process(ctx, c.task)
				if err != nil {
					log.Printf("[worker-%d] process job %s stage %s error: %v", n, c.task.JobID, c.task.Stage, err)
				}

				// Ack either way: the stage disposition is already
				// persisted on the job record. If the worker died before
				// reaching here, the reaper returns the payload to its lane.
				if ackErr := p.queue.Ack(ctx, c.payload); ackErr != nil {
					log.Printf("[worker-%d] ack job %s error: %v", n, c.task.JobID, ackErr)
				}
			}
		}(i + 1)
	}

	// Listener: atomically claim from queue -> processing
	for {
		select {
		case <-ctx.Done():
			close(taskCh)
			log.Println("worker pool stopped")
			return
		default:
			payload, task, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// timeout/redis.Nil/ctx cancel, not fatal
				continue
			}
			select {
			case taskCh <- claimed{payload: payload, task: task}:
			case <-ctx.Done():
				close(taskCh)
				return
			}
		}
	}
}

// Package telemetry pushes per-run pipeline measurements to a Prometheus
// pushgateway. Pushes are fire-and-forget: a failed push is logged and never
// fails the job.
package telemetry

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Pusher struct {
	gateway string
	jobName string
}

func NewPusher(gateway string) *Pusher {
	return &Pusher{gateway: gateway, jobName: "video_pipeline"}
}

// PushRun records the outcome of one completed-or-failed stage run.
func (p *Pusher) PushRun(jobID string, seconds float64, reviewScore *float64, success bool) {
	if p == nil || p.gateway == "" {
		return
	}

	registry := prometheus.NewRegistry()

	genTime := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "video_generation_seconds",
		Help: "Time taken to generate a video in seconds",
	})
	successGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "video_generation_success",
		Help: "1 if the pipeline run completed successfully else 0",
	})
	registry.MustRegister(genTime, successGauge)

	genTime.Set(seconds)
	if success {
		successGauge.Set(1)
	}

	if reviewScore != nil {
		score := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "script_review_score",
			Help: "Reviewer score (0-100)",
		})
		registry.MustRegister(score)
		score.Set(*reviewScore)
	}

	if err := push.New(p.gateway, p.jobName).
		Grouping("job_id", jobID).
		Gatherer(registry).
		Push(); err != nil {
		log.Printf("[telemetry] push failed for job %s: %v", jobID, err)
	}
}

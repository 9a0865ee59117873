// Package metrics exposes prometheus collectors for job execution and
// stream delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsStarted counts launched jobs by kind.
	JobsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_jobs_started_total",
		Help: "Number of jobs launched, by kind.",
	}, []string{"kind"})

	// JobsFinished counts finished jobs by kind and terminal status.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_jobs_finished_total",
		Help: "Number of jobs finished, by kind and terminal status.",
	}, []string{"kind", "status"})

	// JobsRunning tracks the number of jobs currently running.
	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_jobs_running",
		Help: "Number of jobs currently in the running state.",
	})

	// EventsEmitted counts stream events emitted by the registry, by name.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_job_events_emitted_total",
		Help: "Number of job stream events emitted, by event name.",
	}, []string{"event"})

	// StreamClients tracks open SSE subscriptions.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_stream_clients",
		Help: "Number of open job stream subscriptions.",
	})

	// WatchersDropped counts watchers disconnected for falling behind.
	WatchersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_stream_watchers_dropped_total",
		Help: "Number of watchers dropped because their buffer filled.",
	})
)

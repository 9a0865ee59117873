// Package stream exposes the job registry's per-job event sequences over
// Server-Sent Events.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/metrics"
)

// SSE header constants.
const (
	headerContentType              = "Content-Type"
	headerCacheControl             = "Cache-Control"
	headerConnection               = "Connection"
	headerXAccelBuffering          = "X-Accel-Buffering"
	headerAccessControlAllowOrigin = "Access-Control-Allow-Origin"

	sseContentType = "text/event-stream"

	// DefaultHeartbeatInterval is how often a comment line keeps idle
	// connections alive through proxies.
	DefaultHeartbeatInterval = 15 * time.Second
)

// Watcher is the slice of the job registry the stream handler needs.
type Watcher interface {
	Watch(id string) (<-chan jobs.Event, func(), error)
}

// Handler returns a Gin handler for GET /jobs/stream/:id. It subscribes to
// the job's event sequence and streams one named SSE event per registry
// mutation until the terminal event has been flushed, after which the
// connection closes.
func Handler(watcher Watcher, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		events, cleanup, err := watcher.Watch(jobID)
		if err != nil {
			if errors.Is(err, jobs.ErrJobNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "subscription failed"})
			return
		}
		defer cleanup()

		setSSEHeaders(c.Writer)
		c.Writer.Flush()

		metrics.StreamClients.Inc()
		defer metrics.StreamClients.Dec()

		log.Debug("stream client connected",
			logger.String("job_id", jobID),
			logger.String("remote_addr", c.ClientIP()),
		)

		streamEvents(c, jobID, events, log)
	}
}

// streamEvents runs the delivery loop for one subscriber.
func streamEvents(c *gin.Context, jobID string, events <-chan jobs.Event, log logger.Logger) {
	ticker := time.NewTicker(DefaultHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				log.Debug("stream closed after terminal event", logger.String("job_id", jobID))
				return
			}
			if err := writeEvent(c.Writer, ev); err != nil {
				log.Debug("stream write failed (client likely disconnected)",
					logger.String("job_id", jobID),
					logger.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := writeHeartbeat(c.Writer); err != nil {
				log.Debug("stream heartbeat failed (client disconnected)",
					logger.String("job_id", jobID),
				)
				return
			}
		case <-c.Request.Context().Done():
			log.Debug("stream client request context cancelled", logger.String("job_id", jobID))
			return
		}
	}
}

// setSSEHeaders sets the standard SSE headers on a Gin response writer.
func setSSEHeaders(w gin.ResponseWriter) {
	w.Header().Set(headerContentType, sseContentType)
	w.Header().Set(headerCacheControl, "no-cache")
	w.Header().Set(headerConnection, "keep-alive")
	w.Header().Set(headerXAccelBuffering, "no")
	w.Header().Set(headerAccessControlAllowOrigin, "*")
}

// writeEvent writes one named event with the full snapshot as payload.
// Format: event: <name>\ndata: <JSON snapshot>\n\n
func writeEvent(w gin.ResponseWriter, ev jobs.Event) error {
	data, err := json.Marshal(ev.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Name); err != nil {
		return fmt.Errorf("write event name: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	w.Flush()
	return nil
}

// writeHeartbeat writes an SSE comment to keep the connection alive.
func writeHeartbeat(w gin.ResponseWriter) error {
	if _, err := fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	w.Flush()
	return nil
}

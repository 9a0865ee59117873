package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
)

// ErrStreamNotFound is returned by Subscribe when the server does not know
// the job id.
var ErrStreamNotFound = errors.New("client: job stream not found")

// maxEventSize bounds a single stream line.
const maxEventSize = 1 << 20

// View is the client-side mirror of one job, rebuilt from the event
// stream. Each event's full snapshot replaces the previous one, so a view
// is never a partial merge of two server states.
type View struct {
	// Snapshot is the last snapshot received from the stream.
	Snapshot jobs.Snapshot
	// Subscribed reports whether the stream is still expected to deliver
	// events. Terminal events and Close clear it; a transport failure
	// without resubscribe leaves it set, together with LastErr.
	Subscribed bool
	// LastErr is the most recent transport or decode failure.
	LastErr error
}

// PercentComplete derives a 0-100 completion figure. With an unknown
// total, a running job shows a nominal 1 percent so progress bars render
// as started.
func (v View) PercentComplete() int {
	if v.Snapshot.Total > 0 {
		pct := int(math.Round(float64(v.Snapshot.Done) / float64(v.Snapshot.Total) * 100))
		if pct > 100 {
			pct = 100
		}
		return pct
	}
	if v.Snapshot.Status == jobs.StatusRunning {
		return 1
	}
	return 0
}

// Subscription is a live attachment to one job's event stream. It owns a
// background reader goroutine until the stream ends or Close is called.
type Subscription struct {
	client *Client
	jobID  string
	logger logger.Logger

	mu   sync.Mutex
	view View

	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe attaches to a job's event stream and starts mirroring its
// state. The initial connection happens synchronously, so an unknown job
// id fails here rather than in the background.
func (c *Client) Subscribe(ctx context.Context, jobID string) (*Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := c.openStream(streamCtx, jobID)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{
		client: c,
		jobID:  jobID,
		logger: c.logger.With(logger.String("job_id", jobID)),
		view:   View{Subscribed: true},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(streamCtx, resp)
	return s, nil
}

// View returns the current mirrored state.
func (s *Subscription) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view
	v.Snapshot = s.view.Snapshot.Clone()
	return v
}

// Done is closed once the reader goroutine has stopped, whether by
// terminal event, unrecoverable transport failure, or Close.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close tears the subscription down locally. The job itself keeps
// running on the server.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
	s.mu.Lock()
	s.view.Subscribed = false
	s.mu.Unlock()
}

func (c *Client) openStream(ctx context.Context, jobID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/stream/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrStreamNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: HTTP %d", resp.StatusCode)
	}
	return resp, nil
}

func (s *Subscription) run(ctx context.Context, resp *http.Response) {
	defer close(s.done)

	attempt := 0
	for {
		terminal, err := s.consume(resp)
		if terminal {
			s.mu.Lock()
			s.view.Subscribed = false
			s.view.LastErr = nil
			s.mu.Unlock()
			return
		}

		if ctx.Err() != nil {
			// Torn down locally; Close reports this as unsubscribed.
			return
		}

		s.mu.Lock()
		s.view.LastErr = err
		s.mu.Unlock()

		cfg := s.client.resubscribe
		if cfg == nil {
			s.logger.Warn("job stream dropped", logger.Error(err))
			return
		}

		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(cfg.Delay(attempt)):
		}

		next, openErr := s.client.openStream(ctx, s.jobID)
		if openErr != nil {
			if errors.Is(openErr, ErrStreamNotFound) {
				// The server no longer knows the job; nothing to reattach to.
				s.mu.Lock()
				s.view.Subscribed = false
				s.view.LastErr = openErr
				s.mu.Unlock()
				return
			}
			resp = nil
			continue
		}
		attempt = 0
		resp = next
	}
}

// consume reads one stream connection to its end. It returns terminal=true
// once a terminal event arrived, otherwise the transport error that ended
// the connection.
func (s *Subscription) consume(resp *http.Response) (bool, error) {
	if resp == nil {
		return false, errors.New("no stream connection")
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)

	var eventName string
	var data strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() > 0 {
				if s.apply(eventName, data.String()) {
					return true, nil
				}
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read stream: %w", err)
	}
	return false, io.EOF
}

// apply folds one event into the view and reports whether it was terminal.
// A payload that does not decode is dropped; the previous view stands.
func (s *Subscription) apply(name, payload string) bool {
	var snap jobs.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		s.logger.Warn("dropping malformed stream payload",
			logger.String("event", name),
			logger.Error(err),
		)
		return false
	}

	s.mu.Lock()
	s.view.Snapshot = snap
	s.view.LastErr = nil
	s.mu.Unlock()

	// A terminal snapshot ends the stream even under a non-terminal event
	// name; the status is authoritative.
	return jobs.EventName(name).Terminal() || snap.Status.Terminal()
}

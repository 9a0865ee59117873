package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/4liaghaie/scraper-dashboard/internal/engine"
	"github.com/4liaghaie/scraper-dashboard/internal/jobs"
	"github.com/4liaghaie/scraper-dashboard/internal/logger"
	"github.com/4liaghaie/scraper-dashboard/internal/params"
)

// Launcher is the engine surface the handlers need.
type Launcher interface {
	Start(ctx context.Context, kind string, seed params.Values) (jobs.Snapshot, error)
	Cancel(id string) error
	CancelAll(kind string) int
	Kinds() []engine.Kind
}

// StatusReader reads job snapshots; satisfied by *jobs.Registry.
type StatusReader interface {
	Get(id string) (jobs.Snapshot, error)
	List() []jobs.Snapshot
}

// JobsHandler serves the job endpoints.
type JobsHandler struct {
	launcher Launcher
	status   StatusReader
	logger   logger.Logger
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(launcher Launcher, status StatusReader, log logger.Logger) *JobsHandler {
	return &JobsHandler{launcher: launcher, status: status, logger: log}
}

// startRequest is the POST /jobs/start body.
type startRequest struct {
	Kind   string        `json:"kind" binding:"required"`
	Params params.Values `json:"params"`
}

// kindInfo is one catalog entry of GET /jobs/kinds.
type kindInfo struct {
	Name   string              `json:"name"`
	Title  string              `json:"title,omitempty"`
	Params []params.Definition `json:"params"`
}

// Start launches a job and returns its queued snapshot.
func (h *JobsHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.launcher.Start(c.Request.Context(), req.Kind, req.Params)
	if err != nil {
		var verr *params.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "invalid parameters",
				"fields": verr.Fields,
			})
		case errors.Is(err, engine.ErrUnknownKind):
			respondNotFound(c, "job kind")
		case errors.Is(err, engine.ErrEngineUnavailable):
			respondError(c, http.StatusServiceUnavailable, "engine unavailable")
		default:
			h.logger.Error("job launch failed",
				logger.String("kind", req.Kind),
				logger.Error(err),
			)
			respondError(c, http.StatusInternalServerError, "launch failed")
		}
		return
	}

	c.JSON(http.StatusCreated, snap)
}

// Status returns the current snapshot of one job.
func (h *JobsHandler) Status(c *gin.Context) {
	snap, err := h.status.Get(c.Param("id"))
	if err != nil {
		respondNotFound(c, "job")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// List returns snapshots of all known jobs.
func (h *JobsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.List())
}

// Cancel requests cancellation of one job.
func (h *JobsHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.launcher.Cancel(id); err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			respondNotFound(c, "job")
		case errors.Is(err, jobs.ErrJobTerminal):
			respondError(c, http.StatusConflict, "job already finished")
		default:
			respondError(c, http.StatusInternalServerError, "cancel failed")
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "cancelling": true})
}

// CancelAll requests cancellation of every active job, or only those of
// the kind named in the query.
func (h *JobsHandler) CancelAll(c *gin.Context) {
	n := h.launcher.CancelAll(c.Query("kind"))
	c.JSON(http.StatusAccepted, gin.H{"cancelled": n})
}

// Kinds returns the launchable kind catalog with parameter schemas.
func (h *JobsHandler) Kinds(c *gin.Context) {
	kinds := h.launcher.Kinds()
	out := make([]kindInfo, 0, len(kinds))
	for _, k := range kinds {
		defs := k.Params
		if defs == nil {
			defs = []params.Definition{}
		}
		out = append(out, kindInfo{Name: k.Name, Title: k.Title, Params: defs})
	}
	c.JSON(http.StatusOK, out)
}

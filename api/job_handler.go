package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/jobq"
	"github.com/xraph/jobq/id"
	"github.com/xraph/jobq/job"
)

// defaultListLimit applies when a list request has no limit.
const defaultListLimit = 50

func (a *API) listJobs(c *gin.Context) {
	var req ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		a.fail(c, http.StatusBadRequest, err)
		return
	}

	status := job.StatusPending
	if req.Status != "" {
		parsed, err := job.ParseStatus(req.Status)
		if err != nil {
			a.fail(c, http.StatusBadRequest, err)
			return
		}
		status = parsed
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	jobs, err := a.manager.ListByTypeAndStatus(c.Request.Context(), req.Type, status, req.Offset, req.Limit)
	if err != nil {
		a.failErr(c, fmt.Errorf("list jobs: %w", err))
		return
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newJobResponse(j))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) getJob(c *gin.Context) {
	jobID, ok := a.jobIDParam(c)
	if !ok {
		return
	}

	j, err := a.manager.GetJob(c.Request.Context(), jobID)
	if err != nil {
		a.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(j))
}

func (a *API) enqueueJob(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.fail(c, http.StatusBadRequest, err)
		return
	}

	jobID, err := a.manager.Enqueue(c.Request.Context(), req.Type, req.Payload)
	if err != nil {
		a.failErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, EnqueueResponse{ID: jobID.String()})
}

func (a *API) requeueJob(c *gin.Context) {
	jobID, ok := a.jobIDParam(c)
	if !ok {
		return
	}

	newID, err := a.manager.Requeue(c.Request.Context(), jobID)
	if err != nil {
		a.failErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, EnqueueResponse{ID: newID.String()})
}

func (a *API) jobIDParam(c *gin.Context) (id.JobID, bool) {
	jobID, err := id.ParseJobID(c.Param("jobId"))
	if err != nil {
		a.fail(c, http.StatusBadRequest, fmt.Errorf("invalid job ID: %w", err))
		return id.Nil, false
	}
	return jobID, true
}

// failErr maps a domain error to an HTTP status.
func (a *API) failErr(c *gin.Context, err error) {
	var (
		unknown *jobq.UnknownTypeError
		store   *jobq.StoreError
	)
	switch {
	case errors.Is(err, jobq.ErrJobNotFound):
		a.fail(c, http.StatusNotFound, err)
	case errors.Is(err, jobq.ErrInvalidRange):
		a.fail(c, http.StatusBadRequest, err)
	case errors.As(err, &unknown):
		a.fail(c, http.StatusUnprocessableEntity, err)
	case errors.Is(err, jobq.ErrInvalidState):
		a.fail(c, http.StatusConflict, err)
	case errors.As(err, &store):
		a.fail(c, http.StatusServiceUnavailable, err)
	default:
		a.fail(c, http.StatusInternalServerError, err)
	}
}

func (a *API) fail(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		a.logger.Error("api request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

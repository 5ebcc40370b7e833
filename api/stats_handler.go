package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// stats serves per-type counts. The optional window query parameter caps
// each count.
func (a *API) stats(c *gin.Context) {
	window := 0
	if w := c.Query("window"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			a.fail(c, http.StatusBadRequest, errInvalidWindow)
			return
		}
		window = n
	}

	types, err := a.manager.Stats(c.Request.Context(), window)
	if err != nil {
		a.failErr(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{Types: types})
}

// health serves the monitor's most recent scan.
func (a *API) health(c *gin.Context) {
	if a.monitor == nil {
		a.fail(c, http.StatusNotFound, errNoMonitor)
		return
	}

	types, at := a.monitor.Last()
	resp := HealthResponse{Types: types}
	if !at.IsZero() {
		resp.ScannedAt = &at
	}
	c.JSON(http.StatusOK, resp)
}

// Package handler serves readiness/liveness checks for Kubernetes, load
// balancers, and CI.
package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler serves /healthz backed by a database ping.
type Handler struct {
	db *sql.DB
}

// NewHandler returns a health handler pinging the given db. db may be nil;
// the check then reports only process liveness.
func NewHandler(db *sql.DB) *Handler {
	return &Handler{db: db}
}

// Check returns 200 when the process and its database are reachable, 503
// otherwise.
func (h *Handler) Check(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

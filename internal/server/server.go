// Package server exposes the bridge daemon's read-only status API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boymaas/atomic-bridge/bridge"
	"github.com/boymaas/atomic-bridge/internal/metrics"
)

// SnapshotFunc returns the in-flight swaps per direction.
type SnapshotFunc func() map[string][]bridge.SwapSnapshot

// New builds the status API router. All endpoints are read-only; swap
// mutation stays inside the coordinator loop.
func New(environment string, snapshot SnapshotFunc, m *metrics.Metrics) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if m != nil {
		router.Use(m.Middleware())
		router.GET("/metrics", m.Handler())
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/swaps", func(c *gin.Context) {
		swaps := snapshot()
		total := 0
		for _, s := range swaps {
			total += len(s)
		}
		c.JSON(http.StatusOK, gin.H{
			"total": total,
			"swaps": swaps,
		})
	})

	return router
}

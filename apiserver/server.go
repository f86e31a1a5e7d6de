// Package apiserver is the admin/status HTTP surface: health, the
// ExecutionSummary snapshot, Prometheus scrape, and a manual kill-switch
// toggle. Routes are methods on a Server struct, gin.H handler responses.
package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qtsw2exec/killswitch"
	"qtsw2exec/summary"
)

// Server wires the admin surface's dependencies.
type Server struct {
	summary    *summary.Summary
	killSwitch *killswitch.KillSwitch
	router     *gin.Engine
}

// New builds the gin router and registers routes. Callers run it with
// router.Run(addr) or embed it in an http.Server.
func New(sum *summary.Summary, ks *killswitch.KillSwitch) *Server {
	s := &Server{summary: sum, killSwitch: ks, router: gin.New()}
	s.router.Use(gin.Recovery())

	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/summary", s.handleSummary)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(sum.Registry(), promhttp.HandlerOpts{})))
	s.router.POST("/kill-switch", s.handleSetKillSwitch)

	return s
}

// Router exposes the underlying gin engine for tests and for embedding
// in an *http.Server.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.summary.Snapshot())
}

func (s *Server) handleSetKillSwitch(c *gin.Context) {
	var req struct {
		Enabled bool   `json:"enabled"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := killswitch.Set(s.killSwitch.Path(), req.Enabled, req.Reason); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": req.Enabled})
}

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/roomwatt/internal/identity"
)

// RegisterDevRoutes adds development-only scheduler triggers.
func (s *Server) RegisterDevRoutes() {
	if s.cfg.IsProduction() {
		return
	}

	dev := s.engine.Group("/dev", s.BearerAuth())
	dev.POST("/scheduler/run-once", s.DevRunSchedulerOnce)
}

func (s *Server) DevRunSchedulerOnce(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	if !actor.Is(identity.RoleOwner) {
		AbortWithError(c, ErrForbidden)
		return
	}
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if err := s.scheduler.RunOnce(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"message": "scheduler run completed with errors",
			"errors":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "scheduler run completed successfully",
	})
}

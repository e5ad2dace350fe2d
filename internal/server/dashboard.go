package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) OwnerDashboard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	resp, err := s.reportingSvc.OwnerDashboard(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TenantDashboard(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	resp, err := s.reportingSvc.TenantDashboard(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

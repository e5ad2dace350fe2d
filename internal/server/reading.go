package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reportingdomain "github.com/smallbiznis/roomwatt/internal/reporting/domain"
	usagedomain "github.com/smallbiznis/roomwatt/internal/usage/domain"
)

type monthPageQuery struct {
	Month string `form:"month"`
	Page  int    `form:"page,default=1"`
}

func (s *Server) RecordReading(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req usagedomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	c.Set("room_id", req.RoomID)

	resp, err := s.usageSvc.Record(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListReadings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var filter reportingdomain.ReadingFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.reportingSvc.ReadingHistory(c.Request.Context(), actor, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListMyReadings(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var query monthPageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.reportingSvc.TenantReadingHistory(c.Request.Context(), actor, query.Month, query.Page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
)

type assignOccupantRequest struct {
	OccupantID string `json:"occupant_id"`
}

type setSwitchRequest struct {
	On *bool `json:"on" binding:"required"`
}

func (s *Server) ListRooms(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	resp, err := s.roomSvc.List(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateRoom(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req roomdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.roomSvc.Create(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetRoom(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	resp, err := s.roomSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRoom(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req roomdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	req.ID = c.Param("id")

	resp, err := s.roomSvc.Update(c.Request.Context(), actor, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRoom(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	if err := s.roomSvc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) AssignOccupant(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req assignOccupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.roomSvc.AssignOccupant(c.Request.Context(), actor, c.Param("id"), req.OccupantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetSwitch(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	switchNo, err := strconv.Atoi(strings.TrimSpace(c.Param("switch")))
	if err != nil {
		AbortWithError(c, roomdomain.ErrInvalidSwitch)
		return
	}

	var req setSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.roomSvc.SetSwitch(c.Request.Context(), actor, c.Param("id"), switchNo, *req.On)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetSwitches is polled by room devices for the desired relay states.
func (s *Server) GetSwitches(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	resp, err := s.roomSvc.Switches(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

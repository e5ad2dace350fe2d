package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/roomwatt/internal/authorization"
	"github.com/smallbiznis/roomwatt/internal/identity"
	roomdomain "github.com/smallbiznis/roomwatt/internal/room/domain"
	"github.com/smallbiznis/roomwatt/internal/usage/liveevents"
)

const liveHeartbeatInterval = 15 * time.Second

// StreamRoomReadings pushes readings of one room to the dashboard as server
// sent events.
func (s *Server) StreamRoomReadings(c *gin.Context) {
	if s.liveEvents == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	roomID := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(roomID)
	if err != nil || id == 0 {
		AbortWithError(c, roomdomain.ErrInvalidID)
		return
	}
	c.Set("room_id", roomID)

	if err := s.authorizeRoomStream(c.Request.Context(), actor, id); err != nil {
		AbortWithError(c, err)
		return
	}

	subscription, backlog, err := s.liveEvents.Subscribe(roomID)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}

	for _, event := range backlog {
		if err := writeLiveReadingEvent(writer, roomID, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(liveHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-subscription.Events():
			if !open {
				return
			}
			if err := writeLiveReadingEvent(writer, roomID, event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// authorizeRoomStream lets owners watch any room and tenants only their own.
func (s *Server) authorizeRoomStream(ctx context.Context, actor identity.Actor, roomID snowflake.ID) error {
	if actor.Is(identity.RoleTenant) {
		if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectReading, authorization.ActionReadingViewOwn); err != nil {
			return err
		}
		room, err := s.roomSvc.GetByOccupant(ctx, actor.ID)
		if err != nil {
			return err
		}
		if room.ID != roomID {
			return authorization.ErrForbidden
		}
		return nil
	}

	if err := s.authzSvc.Authorize(ctx, actor, authorization.ObjectReading, authorization.ActionReadingViewAll); err != nil {
		return err
	}
	_, err := s.roomSvc.GetByID(ctx, roomID)
	return err
}

func writeLiveReadingEvent(w io.Writer, roomID string, event liveevents.LiveEvent) error {
	payload := event
	if payload.RoomID == "" {
		payload.RoomID = roomID
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: reading\ndata: %s\n\n", data)
	return err
}

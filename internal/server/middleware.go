package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/roomwatt/internal/identity"
)

const bearerPrefix = "bearer "

// BearerAuth resolves the caller from the Authorization header and stores it
// on the request context.
func (s *Server) BearerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" || s.verifier == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.verifier.Verify(raw)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(identity.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

func actorFrom(c *gin.Context) (identity.Actor, bool) {
	actor, err := identity.FromContext(c.Request.Context())
	if err != nil {
		AbortWithError(c, ErrUnauthorized)
		return identity.Actor{}, false
	}
	return actor, true
}

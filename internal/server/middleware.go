package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/orgstore/internal/auth/domain"
)

const contextPrincipalKey = "principal"

// AuthRequired resolves the bearer token to a principal and stores it on the
// context. Requests without a valid credential never reach the handler.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authsvc.Authenticate(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) *authdomain.Principal {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil
	}
	principal, ok := value.(*authdomain.Principal)
	if !ok {
		return nil
	}
	return principal
}

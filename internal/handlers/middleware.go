package handlers

import (
	"cancionero/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// OwnerRequired only lets through a session whose identity is the :name in
// the path.
func (h *Handler) OwnerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := services.RequireOwnership(sessions.Default(c), c.Param("name")); err != nil {
			h.fail(c, err, "", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

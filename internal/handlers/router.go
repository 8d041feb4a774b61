package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func (h *Handler) SetupRouter(templatePath string, staticPath string) *gin.Engine {
	r := gin.Default()

	if templatePath != "" {
		r.LoadHTMLGlob(templatePath)
		h.templatesEnabled = true
	}
	if staticPath != "" {
		r.Static("/static", staticPath)
	}

	store := cookie.NewStore([]byte(h.cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 14,
		HttpOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("cancionero_session", store))

	r.GET("/health", h.Health)

	// Accounts
	r.GET("/", h.ShowLogin)
	r.POST("/", h.HandleLogin)
	r.GET("/register/", h.ShowRegister)
	r.POST("/register/", h.HandleRegister)
	r.GET("/logout/", h.Logout)
	r.POST("/logout/", h.Logout)

	// Public catalog
	r.GET("/canciones/publica/", h.ListPublicSongs)
	r.GET("/canciones/publica/:id/", h.ShowPublicSong)

	// Owner routes
	owner := r.Group("/canciones/u/:name")
	owner.Use(h.OwnerRequired())
	{
		owner.GET("/", h.ListFavorites)
		owner.GET("/crear/", h.ShowCreateSong)
		owner.POST("/crear/", h.HandleCreateSong)
		owner.GET("/:id/editar/", h.ShowEditSong)
		owner.POST("/:id/editar/", h.HandleEditSong)
		owner.GET("/borrar/:id/", h.RemoveFavoriteNoop)
		owner.POST("/borrar/:id/", h.HandleRemoveFavorite)
		owner.POST("/cuenta/borrar/", h.DeleteAccount)
	}

	return r
}

// Health reports the database and, when configured, the cache.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "healthy", "database": "up", "cache": "disabled"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.logger.Error("Health check failed", "component", "database", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = "down"
	}

	if h.rdb != nil {
		body["cache"] = "up"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			// the catalog falls back to the database
			body["cache"] = "down"
		}
	}

	c.JSON(status, body)
}

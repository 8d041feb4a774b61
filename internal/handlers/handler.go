package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"cancionero/internal/config"
	"cancionero/internal/repository"
	"cancionero/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Handler struct {
	cfg              config.Config
	logger           *slog.Logger
	db               *gorm.DB
	rdb              *redis.Client
	accountService   *services.AccountService
	favoriteService  *services.FavoriteService
	catalogService   *services.CatalogService
	templatesEnabled bool
}

func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	rdb *redis.Client,
	accountService *services.AccountService,
	favoriteService *services.FavoriteService,
	catalogService *services.CatalogService,
) *Handler {
	return &Handler{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		rdb:             rdb,
		accountService:  accountService,
		favoriteService: favoriteService,
		catalogService:  catalogService,
	}
}

func listPath(name string) string {
	return "/canciones/u/" + url.PathEscape(name) + "/"
}

// render writes the page through its template, or as JSON when no
// templates are loaded. Pending flashes are consumed into the page data.
func (h *Handler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	session := sessions.Default(c)
	if flashes := session.Flashes(); len(flashes) > 0 {
		data["Flashes"] = flashes
		if err := session.Save(); err != nil {
			h.logger.Error("Failed to save session", "error", err)
		}
	}

	if h.templatesEnabled {
		c.HTML(status, name, data)
		return
	}
	c.JSON(status, data)
}

func (h *Handler) flashRedirect(c *gin.Context, message, location string) {
	session := sessions.Default(c)
	session.AddFlash(message)
	if err := session.Save(); err != nil {
		h.logger.Error("Failed to save session", "error", err)
	}
	c.Redirect(http.StatusFound, location)
}

// userMessage drops the sentinel prefix from a wrapped service error.
func userMessage(err error) string {
	if _, msg, ok := strings.Cut(err.Error(), ": "); ok {
		return msg
	}
	return err.Error()
}

// fail maps a service error to its response. Form errors re-render page
// with data, which should carry the submitted input.
func (h *Handler) fail(c *gin.Context, err error, page string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		h.flashRedirect(c, "You must log in to access this page.", "/")
	case errors.Is(err, services.ErrForbidden):
		h.flashRedirect(c, "You are not allowed to access another user's songs.", "/")
	case errors.Is(err, services.ErrValidation):
		data["Error"] = userMessage(err)
		h.render(c, http.StatusBadRequest, page, data)
	case errors.Is(err, services.ErrDuplicate):
		data["Error"] = userMessage(err)
		h.render(c, http.StatusConflict, page, data)
	case errors.Is(err, repository.ErrInvalidCredentials):
		data["Error"] = "Incorrect user name or password."
		h.render(c, http.StatusUnauthorized, page, data)
	case errors.Is(err, services.ErrNotFound):
		h.render(c, http.StatusNotFound, "error.html", gin.H{"Error": "Not found"})
	default:
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		h.render(c, http.StatusInternalServerError, "error.html", gin.H{"Error": "Internal server error"})
	}
}

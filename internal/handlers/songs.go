package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"cancionero/internal/models"
	"cancionero/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SongForm is the create/edit form. es_publica is a checkbox, so any of
// "on", "true" or "1" means public. Blank titles and the year range are
// checked by the service.
type SongForm struct {
	Title    string `form:"titulo" json:"titulo" binding:"required,max=200"`
	Artist   string `form:"artista" json:"artista" binding:"max=100"`
	Album    string `form:"album" json:"album" binding:"max=100"`
	Year     string `form:"ano_lanzamiento" json:"ano_lanzamiento"`
	IsPublic string `form:"es_publica" json:"es_publica"`
}

func (f SongForm) input(ip string) services.SongInput {
	public := false
	switch f.IsPublic {
	case "on", "true", "1":
		public = true
	}
	return services.SongInput{
		Title:     f.Title,
		Artist:    f.Artist,
		Album:     f.Album,
		Year:      f.Year,
		IsPublic:  public,
		IPAddress: ip,
	}
}

func formFromSong(song *models.Song) SongForm {
	form := SongForm{
		Title:  song.Title,
		Artist: song.Artist,
		Album:  song.Album,
	}
	if song.ReleaseYear != nil {
		form.Year = strconv.Itoa(*song.ReleaseYear)
	}
	if song.IsPublic {
		form.IsPublic = "on"
	}
	return form
}

func songIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) ListFavorites(c *gin.Context) {
	name := c.Param("name")
	entries, err := h.favoriteService.List(c.Request.Context(), sessions.Default(c), name)
	if err != nil {
		h.fail(c, err, "", nil)
		return
	}
	h.render(c, http.StatusOK, "list.html", gin.H{
		"User":      name,
		"Favorites": entries,
	})
}

func (h *Handler) ShowCreateSong(c *gin.Context) {
	h.render(c, http.StatusOK, "song_form.html", gin.H{
		"User": c.Param("name"),
		"Form": SongForm{},
	})
}

func (h *Handler) HandleCreateSong(c *gin.Context) {
	name := c.Param("name")
	var form SongForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "song_form.html", gin.H{"User": name, "Form": form, "Error": "Invalid input: " + err.Error()})
		return
	}

	res, err := h.favoriteService.Create(c.Request.Context(), sessions.Default(c), name, form.input(c.ClientIP()))
	if err != nil {
		h.fail(c, err, "song_form.html", gin.H{"User": name, "Form": form})
		return
	}

	msg := fmt.Sprintf("Song '%s' added to your favorites.", res.Song.Title)
	if res.AlreadyFavorited {
		msg = fmt.Sprintf("Song '%s' is already in your favorites.", res.Song.Title)
	}
	h.flashRedirect(c, msg, listPath(name))
}

func (h *Handler) ShowEditSong(c *gin.Context) {
	name := c.Param("name")
	id, ok := songIDParam(c)
	if !ok {
		h.fail(c, services.ErrNotFound, "", nil)
		return
	}

	song, err := h.favoriteService.View(c.Request.Context(), sessions.Default(c), name, id)
	if err != nil {
		h.fail(c, err, "", nil)
		return
	}
	h.render(c, http.StatusOK, "song_form.html", gin.H{
		"User":   name,
		"SongID": song.ID,
		"Form":   formFromSong(song),
	})
}

func (h *Handler) HandleEditSong(c *gin.Context) {
	name := c.Param("name")
	id, ok := songIDParam(c)
	if !ok {
		h.fail(c, services.ErrNotFound, "", nil)
		return
	}

	var form SongForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "song_form.html", gin.H{"User": name, "SongID": id, "Form": form, "Error": "Invalid input: " + err.Error()})
		return
	}

	song, err := h.favoriteService.Edit(c.Request.Context(), sessions.Default(c), name, id, form.input(c.ClientIP()))
	if err != nil {
		h.fail(c, err, "song_form.html", gin.H{"User": name, "SongID": id, "Form": form})
		return
	}

	h.flashRedirect(c, fmt.Sprintf("Song '%s' updated.", song.Title), listPath(name))
}

// RemoveFavoriteNoop answers a GET on the delete route without deleting.
func (h *Handler) RemoveFavoriteNoop(c *gin.Context) {
	c.Redirect(http.StatusFound, listPath(c.Param("name")))
}

func (h *Handler) HandleRemoveFavorite(c *gin.Context) {
	name := c.Param("name")
	id, ok := songIDParam(c)
	if !ok {
		h.fail(c, services.ErrNotFound, "", nil)
		return
	}

	song, err := h.favoriteService.Remove(c.Request.Context(), sessions.Default(c), name, id, c.ClientIP())
	if err != nil {
		h.fail(c, err, "", nil)
		return
	}

	h.flashRedirect(c, fmt.Sprintf("Song '%s' removed from your favorites.", song.Title), listPath(name))
}

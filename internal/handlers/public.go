package handlers

import (
	"net/http"

	"cancionero/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListPublicSongs(c *gin.Context) {
	songs, err := h.catalogService.ListPublic(c.Request.Context())
	if err != nil {
		h.fail(c, err, "", nil)
		return
	}
	h.render(c, http.StatusOK, "public_list.html", gin.H{"Songs": songs})
}

func (h *Handler) ShowPublicSong(c *gin.Context) {
	id, ok := songIDParam(c)
	if !ok {
		h.fail(c, services.ErrNotFound, "", nil)
		return
	}

	song, err := h.catalogService.GetPublicDetail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "", nil)
		return
	}
	h.render(c, http.StatusOK, "public_detail.html", gin.H{"Song": song})
}

package handlers

import (
	"fmt"
	"net/http"

	"cancionero/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type LoginForm struct {
	Name     string `form:"nombre" binding:"required,max=100"`
	Password string `form:"pass" binding:"required,max=72"`
}

type RegisterForm struct {
	Name     string `form:"nombre" binding:"required,max=100"`
	Password string `form:"pass" binding:"required,min=3,max=72"`
}

// ShowLogin sends an already logged in visitor straight to their list.
func (h *Handler) ShowLogin(c *gin.Context) {
	if name, err := services.RequireSession(sessions.Default(c)); err == nil {
		c.Redirect(http.StatusFound, listPath(name))
		return
	}
	h.render(c, http.StatusOK, "index.html", nil)
}

func (h *Handler) HandleLogin(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "index.html", gin.H{"Name": form.Name, "Error": "Invalid input: " + err.Error()})
		return
	}

	user, err := h.accountService.Login(c.Request.Context(), sessions.Default(c), form.Name, form.Password, c.ClientIP())
	if err != nil {
		h.fail(c, err, "index.html", gin.H{"Name": form.Name})
		return
	}

	h.flashRedirect(c, fmt.Sprintf("Welcome back, %s!", user.Name), listPath(user.Name))
}

func (h *Handler) ShowRegister(c *gin.Context) {
	h.render(c, http.StatusOK, "register.html", nil)
}

func (h *Handler) HandleRegister(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		h.render(c, http.StatusBadRequest, "register.html", gin.H{"Name": form.Name, "Error": "Invalid input: " + err.Error()})
		return
	}

	if _, err := h.accountService.Register(c.Request.Context(), form.Name, form.Password, c.ClientIP()); err != nil {
		h.fail(c, err, "register.html", gin.H{"Name": form.Name})
		return
	}

	h.flashRedirect(c, "Account registered. You can now log in.", "/")
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.accountService.Logout(c.Request.Context(), sessions.Default(c), c.ClientIP()); err != nil {
		h.fail(c, err, "", nil)
		return
	}
	h.flashRedirect(c, "You have logged out.", "/")
}

// DeleteAccount removes the owner and every song only they held.
func (h *Handler) DeleteAccount(c *gin.Context) {
	name := c.Param("name")
	if _, err := h.accountService.DeleteAccount(c.Request.Context(), sessions.Default(c), name, c.ClientIP()); err != nil {
		h.fail(c, err, "", nil)
		return
	}
	h.flashRedirect(c, "Your account has been deleted.", "/")
}

package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Auth.CookieName, token, maxAge, "/", "", h.cfg.IsProduction(), true)
}

func (h *Handler) startSession(c *gin.Context, status int, session *service.Session) {
	h.setSessionCookie(c, session.Token, int(h.cfg.Auth.TokenTTL.Seconds()))
	respond(c, status, session)
}

// staffLogin handles POST /api/auth/staff/login
func (h *Handler) staffLogin(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.accounts.LoginStaff(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, http.StatusOK, session)
}

func (h *Handler) customerLogin(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.accounts.LoginCustomer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, http.StatusOK, session)
}

func (h *Handler) registerCustomer(c *gin.Context) {
	var req service.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.accounts.RegisterCustomer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.startSession(c, http.StatusCreated, session)
}

func (h *Handler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	respond(c, http.StatusOK, gin.H{"loggedOut": true})
}

// me returns the account behind the current token
func (h *Handler) me(c *gin.Context) {
	claims := claimsFrom(c)
	ctx := c.Request.Context()

	var (
		account interface{}
		err     error
	)
	if claims.Role == models.RoleCustomer {
		account, err = h.accounts.GetCustomer(ctx, claims.ID)
	} else {
		account, err = h.accounts.GetStaff(ctx, claims.ID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"role":    claims.Role,
		"account": account,
	})
}

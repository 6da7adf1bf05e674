// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/pkg/errutil"
)

const sessionCookieName = auth.SessionCookieName

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Contact  string `json:"contact"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type userResponse struct {
	Username string `json:"username"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type contactResponse struct {
	Username string `json:"username"`
	Contact  string `json:"contact"`
}

var errBadRequest = errorBody{Code: "INVALID_INPUT", Message: "request body must be JSON"}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBadRequest)
		return
	}

	err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.Contact)
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, errorBody{Code: string(verr.Kind), Message: verr.Message})
		case errors.Is(err, auth.ErrDuplicateUsername):
			c.JSON(http.StatusConflict, errorBody{Code: "USERNAME_TAKEN", Message: "that username is already taken"})
		default:
			h.storeError(c, "registration failed", err)
		}
		return
	}

	c.JSON(http.StatusCreated, userResponse{Username: req.Username})
}

// Login handles POST /api/auth/login and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errBadRequest)
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, errorBody{
				Code:    "INVALID_CREDENTIALS",
				Message: "invalid username or password",
			})
			return
		}
		h.storeError(c, "login failed", err)
		return
	}

	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, userResponse{Username: req.Username})
}

// Logout handles POST /api/auth/logout. The cookie is cleared even when the
// store could not revoke the session.
func (h *Handler) Logout(c *gin.Context) {
	token, _ := c.Cookie(sessionCookieName) //nolint:errcheck // absent cookie is an empty token
	h.clearSessionCookie(c)

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		h.storeError(c, "logout failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Session handles GET /api/auth/session.
func (h *Handler) Session(c *gin.Context) {
	username, ok := h.currentUser(c)
	c.JSON(http.StatusOK, sessionResponse{Authenticated: ok, Username: username})
}

// Contact handles GET /api/users/:username/contact for signed-in users.
func (h *Handler) Contact(c *gin.Context) {
	username := c.Param("username")
	contact, err := h.auth.Contact(c.Request.Context(), username)
	if err != nil {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "contact lookup failed", err)
	}
	c.JSON(http.StatusOK, contactResponse{Username: username, Contact: contact})
}

func (h *Handler) storeError(c *gin.Context, msg string, err error) {
	errutil.LogErrorContext(c.Request.Context(), h.logger, msg, err)
	if errors.Is(err, auth.ErrStoreUnavailable) {
		c.JSON(http.StatusServiceUnavailable, errorBody{
			Code:    "STORE_UNAVAILABLE",
			Message: "service temporarily unavailable, try again later",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"})
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, token, int(h.auth.SessionTTL().Seconds()), "/", "", h.secure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", h.secure, true)
}

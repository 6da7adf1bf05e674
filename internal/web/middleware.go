// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lostfound/lostfound/pkg/errutil"
)

// ContextUserKey holds the signed-in username on the gin context.
const ContextUserKey = "auth.user"

const unmatchedRoute = "unmatched"

// observe logs each request and counts it by route template.
func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		if h.recorder != nil {
			h.recorder.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status))
		}
		h.logger.DebugContext(c.Request.Context(), "request served",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// RequireSession rejects requests without a live session. A session the
// store cannot confirm is treated as anonymous, but its cookie is kept.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := h.currentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
				Code:    "UNAUTHORIZED",
				Message: "sign in to continue",
			})
			return
		}
		c.Set(ContextUserKey, username)
		c.Next()
	}
}

// currentUser restores the session behind the request cookie. Invalid and
// expired tokens have their cookie cleared.
func (h *Handler) currentUser(c *gin.Context) (string, bool) {
	token, err := c.Cookie(sessionCookieName)
	if err != nil || token == "" {
		return "", false
	}

	username, ok, err := h.auth.RestoreSession(c.Request.Context(), token)
	if err != nil {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "session restore failed", err)
		return "", false
	}
	if !ok {
		h.clearSessionCookie(c)
		return "", false
	}
	return username, true
}

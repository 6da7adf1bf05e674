// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package web exposes the auth service as a JSON API over gin. The session
// token travels in the session_token cookie; handlers never see the store.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// AuthService is the subset of auth.Service the handlers depend on.
type AuthService interface {
	Register(ctx context.Context, username, password, contact string) error
	Login(ctx context.Context, username, password string) (string, error)
	RestoreSession(ctx context.Context, token string) (string, bool, error)
	Logout(ctx context.Context, token string) error
	Contact(ctx context.Context, username string) (string, error)
	SessionTTL() time.Duration
}

// RequestRecorder counts served requests. observability.Metrics implements it.
type RequestRecorder interface {
	RecordHTTPRequest(method, route, status string)
}

// Options configures the router.
type Options struct {
	// CORSOrigins lists browser origins allowed to call the API with
	// credentials. Empty disables CORS handling.
	CORSOrigins []string

	// SecureCookies marks the session cookie Secure. Enable behind TLS.
	SecureCookies bool

	Logger   *slog.Logger
	Recorder RequestRecorder
}

// Handler serves the auth API.
type Handler struct {
	auth     AuthService
	secure   bool
	logger   *slog.Logger
	recorder RequestRecorder
}

// NewHandler creates a Handler around svc.
func NewHandler(svc AuthService, opts Options) *Handler {
	h := &Handler{
		auth:     svc,
		secure:   opts.SecureCookies,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// NewRouter builds the gin engine with all routes and middleware attached.
func NewRouter(svc AuthService, opts Options) *gin.Engine {
	h := NewHandler(svc, opts)

	router := gin.New()
	router.Use(gin.Recovery(), h.observe())

	if len(opts.CORSOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = opts.CORSOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
		router.Use(cors.New(corsConfig))
	}

	h.Routes(router)
	return router
}

// Routes registers the API under /api.
func (h *Handler) Routes(router gin.IRouter) {
	api := router.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", h.Register)
	authRoutes.POST("/login", h.Login)
	authRoutes.POST("/logout", h.Logout)
	authRoutes.GET("/session", h.Session)

	users := api.Group("/users")
	users.Use(h.RequireSession())
	users.GET("/:username/contact", h.Contact)
}

// NewHTTPServer wraps router in an http.Server with conservative timeouts.
func NewHTTPServer(addr string, router http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

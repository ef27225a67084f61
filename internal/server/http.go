// Package server assembles the HTTP surface: routes, middleware chain, and
// the operational endpoints.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	authhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/auth/handler"
	healthhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/health/handler"
	"github.com/rh-aiservices-bu/litemaas-sub010/internal/server/middleware"
	sessionhandler "github.com/rh-aiservices-bu/litemaas-sub010/internal/session/handler"
)

// Deps are the wired handlers and middleware the router mounts.
type Deps struct {
	Gate     *middleware.Gate
	Auth     *authhandler.Handler
	Sessions *sessionhandler.Handler
	Health   *healthhandler.Handler
	Logger   *zap.Logger
}

// NewRouter builds the gin engine with the full route table. The caller owns
// the returned engine's lifecycle.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(logger), middleware.RequestLogger(logger))

	r.GET("/healthz", d.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/auth")
	{
		auth.GET("/login", d.Auth.LoginURL)
		auth.POST("/login", d.Auth.Login)
		auth.POST("/refresh", d.Auth.Refresh)

		protected := auth.Group("")
		protected.Use(d.Gate.RequireAuth())
		{
			protected.POST("/logout", d.Auth.Logout)
			protected.GET("/me", d.Auth.Me)
			protected.GET("/sessions", d.Sessions.List)
			protected.DELETE("/sessions", d.Sessions.RevokeOthers)
			protected.DELETE("/sessions/:id", d.Sessions.Revoke)
		}
	}

	return r
}

// NewHTTPServer wraps the engine in an http.Server with sane timeouts.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

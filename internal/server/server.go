// Package server provides the HTTP shim exposing the Tool Facade over a
// minimal, explicitly non-normative echo-based transport (spec.md §1
// leaves the wire dialect undefined; SPEC_FULL.md §6.6 stands this up as
// one illustrative option alongside the MCP stdio server in cmd/server).
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/memohai/memoh/internal/sessionauth"
	"github.com/memohai/memoh/internal/toolfacade"
)

// Server is the HTTP server (Echo) exposing /health and /tools/:name.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// NewServer builds the Echo server with recovery, request logging and
// session extraction, routing every spec.md §6 operation registered on
// registry to POST /tools/:name.
func NewServer(log *slog.Logger, addr, jwtSecret string, registry *toolfacade.ToolRegistry) *Server {
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	}))
	e.Use(sessionauth.Middleware(jwtSecret))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
	})

	e.POST("/tools/:name", func(c echo.Context) error {
		name := c.Param("name")
		_, handler, ok := registry.Lookup(name)
		if !ok {
			return c.JSON(http.StatusNotFound, toolfacade.BuildToolErrorResult("unknown tool: "+name))
		}
		var args map[string]any
		if err := c.Bind(&args); err != nil {
			return c.JSON(http.StatusBadRequest, toolfacade.BuildToolErrorResult(err.Error()))
		}
		session := toolfacade.ToolSessionContext{SessionID: sessionauth.FromContext(c)}
		result, toolErr := handler(c.Request().Context(), session, args)
		if toolErr != nil {
			return c.JSON(http.StatusOK, toolfacade.BuildToolErrorResult(toolErr.Error()))
		}
		return c.JSON(http.StatusOK, toolfacade.BuildToolSuccessResult(result))
	})

	return &Server{
		echo:   e,
		addr:   addr,
		logger: log.With(slog.String("component", "server")),
	}
}

// Start starts the HTTP server (blocks until shutdown).
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

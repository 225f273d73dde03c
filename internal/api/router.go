package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opensandbox/marimoproxy/internal/auth"
	"github.com/opensandbox/marimoproxy/internal/metrics"
	"github.com/opensandbox/marimoproxy/internal/process"
	"github.com/opensandbox/marimoproxy/internal/proxy"
	"github.com/opensandbox/marimoproxy/pkg/types"
)

// Converter runs marimo convert.
type Converter interface {
	Convert(ctx context.Context, input, output string) (*types.ProcessResult, error)
}

// ServerOpts holds the optional parts of the server.
type ServerOpts struct {
	// Prefix is prepended to every route ("/" when empty).
	Prefix string

	// States finds the marimo process state for restarts. Nil means the
	// proxy was never set up and restarts answer 503.
	States process.Lookup

	// Proxy serves the marimo editor under its base URL.
	Proxy *proxy.MarimoProxy

	// ServeMetrics exposes /metrics on the main listener.
	ServeMetrics bool
}

// Server holds the API server dependencies.
type Server struct {
	echo      *echo.Echo
	converter Converter
	states    process.Lookup
}

// NewServer creates a new API server with all routes configured.
func NewServer(conv Converter, token string, opts *ServerOpts) *Server {
	if opts == nil {
		opts = &ServerOpts{}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		converter: conv,
		states:    opts.States,
	}

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(metrics.EchoMiddleware())

	// Health check (no auth)
	e.GET(Route(opts.Prefix, "health"), func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	requireToken := auth.TokenMiddleware(token)

	// Tools
	tools := e.Group(Route(opts.Prefix, "marimo-tools"), requireToken)
	tools.POST("/convert", s.convert)
	tools.POST("/restart", s.restart)

	if opts.ServeMetrics {
		e.GET(Route(opts.Prefix, "metrics"), echo.WrapHandler(metrics.Handler()), requireToken)
	}

	// Editor
	if opts.Proxy != nil {
		opts.Proxy.Register(e, requireToken)
	}

	return s
}

// Route joins a service prefix and a relative route.
func Route(prefix, rel string) string {
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(rel, "/")
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Close immediately closes the server.
func (s *Server) Close() error {
	return s.echo.Close()
}

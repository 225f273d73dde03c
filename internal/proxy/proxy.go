package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/opensandbox/marimoproxy/internal/executable"
)

// Upstream yields the address of a running marimo, starting one if needed.
type Upstream interface {
	EnsureRunning(ctx context.Context) (string, error)
}

// MarimoProxy reverse-proxies everything under the marimo base URL to the
// marimo process. marimo is started with the same --base-url, so paths are
// forwarded unchanged.
type MarimoProxy struct {
	baseURL  string
	upstream Upstream
}

// New creates a MarimoProxy for requests under baseURL.
func New(baseURL string, upstream Upstream) *MarimoProxy {
	return &MarimoProxy{
		baseURL:  strings.TrimRight(baseURL, "/"),
		upstream: upstream,
	}
}

// Register mounts the proxy on e for the base URL and everything below it.
func (p *MarimoProxy) Register(e *echo.Echo, m ...echo.MiddlewareFunc) {
	e.Any(p.baseURL, p.Handle, m...)
	e.Any(p.baseURL+"/*", p.Handle, m...)
}

// Handle ensures marimo is running and forwards the request to it.
// Websocket upgrades pass through httputil.ReverseProxy unchanged.
func (p *MarimoProxy) Handle(c echo.Context) error {
	req := c.Request()

	// Startup can outlive a browser's patience; don't let a cancelled request
	// abort a spawn other requests are waiting on.
	startCtx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), 5*time.Minute)
	defer cancel()

	addr, err := p.upstream.EnsureRunning(startCtx)
	if err != nil {
		log.Error().Err(err).Str("path", req.URL.Path).Msg("proxy: marimo not available")
		return serveUpstreamUnavailable(c, startupMessage(err))
	}

	target := &url.URL{Scheme: "http", Host: addr}
	rp := httputil.NewSingleHostReverseProxy(target)

	var proxyErr error
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		proxyErr = err
	}
	rp.ServeHTTP(c.Response(), req)

	if proxyErr != nil && !c.Response().Committed {
		log.Warn().Err(proxyErr).Str("addr", addr).Msg("proxy: upstream error")
		return serveUpstreamUnavailable(c, "marimo is not responding yet")
	}
	return nil
}

func startupMessage(err error) string {
	if errors.Is(err, executable.ErrNotFound) {
		return err.Error()
	}
	return "marimo failed to start: " + err.Error()
}

package proxy

import (
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// placeholderHTML is the waiting page shown to browsers when marimo isn't
// reachable yet. It auto-refreshes every 3 seconds so the editor appears as
// soon as it comes up.
const placeholderHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <meta http-equiv="refresh" content="3">
  <title>Starting marimo…</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      min-height: 100vh;
      display: flex;
      align-items: center;
      justify-content: center;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
      background: #fafafa;
      color: #27272a;
    }
    .container {
      text-align: center;
      max-width: 480px;
      padding: 2rem;
    }
    .spinner {
      width: 40px;
      height: 40px;
      margin: 0 auto 1.5rem;
      border: 3px solid #e4e4e7;
      border-top-color: #0d9488;
      border-radius: 50%%;
      animation: spin 0.8s linear infinite;
    }
    @keyframes spin { to { transform: rotate(360deg); } }
    h1 {
      font-size: 1.25rem;
      font-weight: 600;
      margin-bottom: 0.75rem;
    }
    p {
      font-size: 0.875rem;
      color: #71717a;
      line-height: 1.6;
    }
    .detail {
      margin-top: 1.5rem;
      font-size: 0.75rem;
      color: #a1a1aa;
      font-family: "SF Mono", SFMono-Regular, Consolas, "Liberation Mono", Menlo, monospace;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="spinner"></div>
    <h1>Starting marimo…</h1>
    <p>This page will refresh until the editor is ready.</p>
    <div class="detail">%s</div>
  </div>
</body>
</html>`

// wantsBrowserResponse checks if the request Accept header indicates a browser
// (i.e. prefers text/html over JSON).
func wantsBrowserResponse(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html")
}

// serveUpstreamUnavailable returns either the placeholder page (for
// browsers) or a JSON error (for API clients / curl).
func serveUpstreamUnavailable(c echo.Context, detail string) error {
	if wantsBrowserResponse(c.Request()) {
		return c.HTML(http.StatusBadGateway, fmt.Sprintf(placeholderHTML, html.EscapeString(detail)))
	}
	return c.JSON(http.StatusBadGateway, map[string]string{
		"error": detail,
	})
}

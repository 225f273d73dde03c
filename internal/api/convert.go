package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/opensandbox/marimoproxy/pkg/types"
)

// convert handles POST marimo-tools/convert.
// Body: {"input": "notebook.ipynb", "output": "notebook.py"}
func (s *Server) convert(c echo.Context) error {
	var req types.ConvertRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return c.JSON(http.StatusBadRequest, types.ToolFailure{
			Error: "invalid request body: " + err.Error(),
		})
	}

	if req.Input == "" || req.Output == "" {
		return c.JSON(http.StatusBadRequest, types.ToolFailure{
			Error: "Missing input or output path",
		})
	}

	// marimo runs to completion even if the client goes away, so the output
	// file is never left half written.
	ctx := context.WithoutCancel(c.Request().Context())
	result, err := s.converter.Convert(ctx, req.Input, req.Output)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, types.ToolFailure{
			Error: err.Error(),
		})
	}

	if result.ExitCode != 0 {
		return c.JSON(http.StatusInternalServerError, types.ToolFailure{
			Error: result.Message(),
		})
	}

	return c.JSON(http.StatusOK, types.ToolResponse{
		Success: true,
		Output:  req.Output,
	})
}

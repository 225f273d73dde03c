// Package marimo runs one-shot marimo commands.
package marimo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opensandbox/marimoproxy/internal/config"
	"github.com/opensandbox/marimoproxy/internal/executable"
	"github.com/opensandbox/marimoproxy/internal/metrics"
	"github.com/opensandbox/marimoproxy/pkg/types"
)

// Converter turns Jupyter notebooks into marimo notebooks by shelling out to
// `marimo convert`. Settings are resolved on every call so environment
// changes are picked up without a restart.
type Converter struct {
	Override *config.Override
	Resolver config.Resolver
	Locator  executable.Locator
}

// NewConverter creates a Converter that applies o on top of the environment.
func NewConverter(o *config.Override) *Converter {
	return &Converter{Override: o}
}

// Convert runs `marimo convert <input> -o <output>` and waits for it.
// A non-zero exit is reported through the result, not the error. The error
// is set only when marimo cannot be located (wrapping executable.ErrNotFound)
// or cannot be started.
func (c *Converter) Convert(ctx context.Context, input, output string) (*types.ProcessResult, error) {
	settings := c.Resolver.Resolve(c.Override)
	argv, err := c.Locator.Command(settings)
	if err != nil {
		metrics.ConvertsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}

	args := append(argv[1:len(argv):len(argv)], "convert", input, "-o", output)
	cmd := exec.CommandContext(ctx, argv[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	metrics.ConvertDuration.Observe(time.Since(start).Seconds())

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			metrics.ConvertsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("start %s: %w", argv[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	result := &types.ProcessResult{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if exitCode != 0 {
		metrics.ConvertsTotal.WithLabelValues("failed").Inc()
		log.Warn().Str("input", input).Int("exit_code", exitCode).Msg("marimo convert failed")
	} else {
		metrics.ConvertsTotal.WithLabelValues("ok").Inc()
		log.Info().Str("input", input).Str("output", output).Msg("marimo convert finished")
	}
	return result, nil
}

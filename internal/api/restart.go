package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/opensandbox/marimoproxy/internal/metrics"
	"github.com/opensandbox/marimoproxy/internal/process"
	"github.com/opensandbox/marimoproxy/pkg/types"
)

// restartTimeout bounds how long a restart waits for marimo to exit before
// the kill is escalated.
const restartTimeout = 10 * time.Second

// restart handles POST marimo-tools/restart. It stops the current marimo
// process and clears it from the state so the next proxied request spawns a
// new one.
func (s *Server) restart(c echo.Context) error {
	var st *process.State
	ok := false
	if s.states != nil {
		st, ok = s.states.State()
	}
	if !ok || st == nil {
		metrics.RestartsTotal.WithLabelValues("unavailable").Inc()
		return c.JSON(http.StatusServiceUnavailable, types.ToolFailure{
			Error: "Proxy not initialized yet",
		})
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), restartTimeout)
	defer cancel()

	killed, err := stopProcess(ctx, st)
	if err != nil {
		metrics.RestartsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("restart failed")
		return c.JSON(http.StatusInternalServerError, types.ToolFailure{
			Error: err.Error(),
		})
	}

	if killed {
		metrics.RestartsTotal.WithLabelValues("killed").Inc()
	} else {
		metrics.RestartsTotal.WithLabelValues("cleared").Inc()
	}
	log.Info().Bool("killed", killed).Msg("marimo process cleared, next request spawns a new one")
	return c.JSON(http.StatusOK, types.ToolResponse{
		Success: true,
		Message: "Server restarting",
	})
}

// stopProcess runs the stop sequence under the state lock and reports
// whether a process was killed. A panic inside it is returned as an error;
// the lock is released either way.
func stopProcess(ctx context.Context, st *process.State) (killed bool, err error) {
	st.Lock()
	defer st.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	killed = st.Stop(ctx)
	metrics.ProcessRunning.Set(0)
	return killed, nil
}

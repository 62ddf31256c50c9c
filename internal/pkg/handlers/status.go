package handlers

import (
	"net/http"
	"time"

	"github.com/jake-scott/contxt-cli/internal/pkg/controlsim"
	"github.com/jake-scott/contxt-cli/internal/pkg/logging"
	"github.com/jake-scott/contxt-cli/version"
)

/*
 * Read-only views of a running simulator:
 *   GET /status   the tracked components and their timers
 *   GET /healthz  liveness of the process
 */

// Snapshotter is implemented by controlsim.Simulator
type Snapshotter interface {
	Snapshot() []controlsim.ComponentStatus
}

type statusResponse struct {
	Instance   string                       `json:"instance"`
	Version    string                       `json:"version"`
	Time       time.Time                    `json:"time"`
	Components []controlsim.ComponentStatus `json:"components"`
}

type statusHandler struct {
	sim Snapshotter
	now func() time.Time
}

func NewStatusHandler(sim Snapshotter) statusHandler {
	return statusHandler{
		sim: sim,
		now: time.Now,
	}
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, statusResponse{
		Instance:   logging.InstanceID(),
		Version:    version.Version,
		Time:       h.now().UTC(),
		Components: h.sim.Snapshot(),
	})
}

type healthHandler struct{}

func NewHealthHandler() healthHandler {
	return healthHandler{}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

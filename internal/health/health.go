// Package health reports whether the thermostat received its first device update.
package health

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/clambin/enhanced-thermostat/internal/supervisor"
)

// StatusReader returns the thermostat's state. *supervisor.Supervisor implements it.
type StatusReader interface {
	Status() supervisor.Status
}

// Refresher asks the device to report its state. Devices that poll (like tado) implement it.
type Refresher interface {
	Refresh()
}

type Health struct {
	StatusReader
	Refresher Refresher
	logger    *slog.Logger
}

func New(r StatusReader, logger *slog.Logger) *Health {
	return &Health{
		StatusReader: r,
		logger:       logger,
	}
}

// ServeHTTP returns 503 until the device reported its state. Afterwards, it returns the current status as JSON.
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := h.Status()
	if !status.Ready() {
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		if h.Refresher != nil {
			h.Refresher.Refresh()
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(status); err != nil {
		h.logger.Error("failed to encode status", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

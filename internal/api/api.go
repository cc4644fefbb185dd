// Package api serves the thermostat's REST API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/supervisor"
	"github.com/clambin/go-common/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Thermostat is the part of the Supervisor the API exposes.
type Thermostat interface {
	Status() supervisor.Status
	SetTemperature(ctx context.Context, temperature float64) error
	SetHVACMode(ctx context.Context, mode climate.HVACMode) error
	ResumeSchedule(ctx context.Context) error
}

type handler struct {
	thermostat Thermostat
	logger     *slog.Logger
}

// New returns the API's router. If health is not nil, it is served on /health.
func New(t Thermostat, health http.Handler, logger *slog.Logger) http.Handler {
	h := handler{thermostat: t, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger, slog.LevelDebug, middleware.DefaultRequestLogFormatter))

	if health != nil {
		r.Method(http.MethodGet, "/health", health)
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.status)
		r.Get("/runtime", h.runtime)
		r.Get("/runtime/today", h.today)
		r.Get("/runtime/{day}", h.day)
		r.Put("/temperature", h.setTemperature)
		r.Put("/mode", h.setMode)
		r.Post("/schedule/resume", h.resume)
	})
	return r
}

func (h handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.thermostat.Status())
}

func (h handler) runtime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.thermostat.Status().Runtime)
}

func (h handler) today(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.thermostat.Status().Today)
}

func (h handler) day(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid day %q: expected YYYY-MM-DD", day))
		return
	}
	runtime := h.thermostat.Status().Runtime
	totals, ok := runtime[day]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no runtime recorded for %s", day))
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

type temperatureRequest struct {
	Temperature *float64 `json:"temperature"`
}

func (h handler) setTemperature(w http.ResponseWriter, r *http.Request) {
	var req temperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.Temperature == nil || math.IsNaN(*req.Temperature) || math.IsInf(*req.Temperature, 0) {
		writeError(w, http.StatusBadRequest, errors.New("missing or invalid temperature"))
		return
	}
	h.accepted(w, h.thermostat.SetTemperature(r.Context(), *req.Temperature))
}

type modeRequest struct {
	Mode climate.HVACMode `json:"hvac_mode"`
}

func (h handler) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.Mode == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing hvac_mode"))
		return
	}
	h.accepted(w, h.thermostat.SetHVACMode(r.Context(), req.Mode))
}

func (h handler) resume(w http.ResponseWriter, r *http.Request) {
	h.accepted(w, h.thermostat.ResumeSchedule(r.Context()))
}

// accepted reports the outcome of a request. Device commands are executed in the background, so success is 202.
func (h handler) accepted(w http.ResponseWriter, err error) {
	if err != nil {
		h.logger.Warn("request not processed", "err", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

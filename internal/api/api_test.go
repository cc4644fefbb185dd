package api_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/clambin/enhanced-thermostat/internal/api"
	"github.com/clambin/enhanced-thermostat/internal/climate"
	"github.com/clambin/enhanced-thermostat/internal/ledger"
	"github.com/clambin/enhanced-thermostat/internal/supervisor"
	"github.com/stretchr/testify/assert"
)

func TestAPI(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		err      error
		wantCode int
		wantBody string
		wantCall string
	}{
		{
			name:     "status",
			method:   http.MethodGet,
			target:   "/api/status",
			wantCode: http.StatusOK,
			wantBody: `"name":"living room"`,
		},
		{
			name:     "runtime",
			method:   http.MethodGet,
			target:   "/api/runtime",
			wantCode: http.StatusOK,
			wantBody: `{"2024-01-01":{"heating_hours":1.5,"cooling_hours":0}}`,
		},
		{
			name:     "today",
			method:   http.MethodGet,
			target:   "/api/runtime/today",
			wantCode: http.StatusOK,
			wantBody: `{"heating_hours":1.5,"cooling_hours":0}`,
		},
		{
			name:     "day",
			method:   http.MethodGet,
			target:   "/api/runtime/2024-01-01",
			wantCode: http.StatusOK,
			wantBody: `{"heating_hours":1.5,"cooling_hours":0}`,
		},
		{
			name:     "unknown day",
			method:   http.MethodGet,
			target:   "/api/runtime/2023-01-01",
			wantCode: http.StatusNotFound,
		},
		{
			name:     "invalid day",
			method:   http.MethodGet,
			target:   "/api/runtime/yesterday",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "set temperature",
			method:   http.MethodPut,
			target:   "/api/temperature",
			body:     `{"temperature":21.5}`,
			wantCode: http.StatusAccepted,
			wantCall: "temperature=21.5",
		},
		{
			name:     "set temperature: missing",
			method:   http.MethodPut,
			target:   "/api/temperature",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "set temperature: invalid body",
			method:   http.MethodPut,
			target:   "/api/temperature",
			body:     `21.5`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "set temperature: supervisor not running",
			method:   http.MethodPut,
			target:   "/api/temperature",
			body:     `{"temperature":21.5}`,
			err:      context.DeadlineExceeded,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "set mode",
			method:   http.MethodPut,
			target:   "/api/mode",
			body:     `{"hvac_mode":"cool"}`,
			wantCode: http.StatusAccepted,
			wantCall: "mode=cool",
		},
		{
			name:     "set mode: invalid",
			method:   http.MethodPut,
			target:   "/api/mode",
			body:     `{"hvac_mode":"dry"}`,
			wantCode: http.StatusBadRequest,
			wantBody: `invalid hvac mode`,
		},
		{
			name:     "set mode: missing",
			method:   http.MethodPut,
			target:   "/api/mode",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "resume schedule",
			method:   http.MethodPost,
			target:   "/api/schedule/resume",
			wantCode: http.StatusAccepted,
			wantCall: "resume",
		},
		{
			name:     "wrong method",
			method:   http.MethodGet,
			target:   "/api/temperature",
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			name:     "health",
			method:   http.MethodGet,
			target:   "/health",
			wantCode: http.StatusOK,
			wantBody: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			th := fakeThermostat{err: tt.err}
			health := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
			h := api.New(&th, health, slog.New(slog.DiscardHandler))

			resp := httptest.NewRecorder()
			h.ServeHTTP(resp, httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantBody != "" {
				assert.Contains(t, resp.Body.String(), tt.wantBody)
			}
			if tt.wantCall != "" {
				assert.Equal(t, []string{tt.wantCall}, th.calls)
			}
		})
	}
}

type fakeThermostat struct {
	err   error
	lock  sync.Mutex
	calls []string
}

func (f *fakeThermostat) Status() supervisor.Status {
	return supervisor.Status{
		Name:    "living room",
		Today:   ledger.DayTotals{HeatingHours: 1.5},
		Runtime: ledger.Ledger{"2024-01-01": {HeatingHours: 1.5}},
	}
}

func (f *fakeThermostat) SetTemperature(_ context.Context, temperature float64) error {
	return f.record(climate.SetTemperature(temperature).String())
}

func (f *fakeThermostat) SetHVACMode(_ context.Context, mode climate.HVACMode) error {
	return f.record(climate.SetMode(mode).String())
}

func (f *fakeThermostat) ResumeSchedule(_ context.Context) error {
	return f.record("resume")
}

func (f *fakeThermostat) record(call string) error {
	if f.err != nil {
		return f.err
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls = append(f.calls, call)
	return nil
}

func TestAPI_RequestLogging(t *testing.T) {
	var out bytes.Buffer
	h := api.New(&fakeThermostat{}, nil, slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Contains(t, out.String(), "/api/status")
}

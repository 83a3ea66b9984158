package controller

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPDeps are the collaborators of the controller HTTP surface. MQTT and
// Recorder feed /readyz and may be nil.
type HTTPDeps struct {
	History        HistoryStore
	Hub            http.Handler
	Auth           *Authenticator
	MQTT           mqtt.Client
	Recorder       *InfluxRecorder
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         *log.Logger
}

type httpAPI struct {
	deps HTTPDeps
}

// NewHTTPHandler serves health, metrics, the history API and /ws.
func NewHTTPHandler(d HTTPDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	h := &httpAPI{deps: d}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/readyz", h.ready)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if d.Auth != nil {
			r.Use(d.Auth.Middleware)
		}
		r.Get("/api/sensor-data/history", h.history)
		r.Get("/api/sensor-data/history/period", h.historyPeriod)
		if d.Hub != nil {
			r.Handle("/ws", d.Hub)
		}
	})
	return r
}

// GET /api/sensor-data/history
func (h *httpAPI) history(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	recs, err := h.deps.History.Latest(ctx, HistoryLimit)
	if err != nil {
		h.deps.Logger.Printf("controller: history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server error", "details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GET /api/sensor-data/history/period?period=24h|7d|30d
func (h *httpAPI) historyPeriod(w http.ResponseWriter, r *http.Request) {
	window, err := ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": InvalidPeriodMessage})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	recs, err := h.deps.History.Since(ctx, window)
	if err != nil {
		h.deps.Logger.Printf("controller: period history: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Server error", "details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// GET /readyz: 200 solo se MQTT è connesso e non ci sono errori di scrittura recenti.
func (h *httpAPI) ready(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Ready         bool    `json:"ready"`
		MQTTConnected bool    `json:"mqtt_connected"`
		LastWriteErrS float64 `json:"last_write_error_age_sec"`
	}
	st := resp{
		MQTTConnected: h.deps.MQTT != nil && h.deps.MQTT.IsConnectionOpen(),
		LastWriteErrS: h.deps.Recorder.LastErrorAge().Seconds(),
	}
	st.Ready = st.MQTTConnected && h.deps.Recorder.LastErrorAge() > 30*time.Second
	status := http.StatusOK
	if !st.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package predictor

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model"
)

const maxBodyBytes = 64 << 10

// HTTPConfig configures the predictor HTTP surface.
type HTTPConfig struct {
	AllowedOrigins []string // CORS origins for /predict
	Gatherer       prometheus.Gatherer
	Logger         *log.Logger
}

type httpAPI struct {
	pipeline *Pipeline
	metrics  *Metrics
	logger   *log.Logger
}

// NewHTTPHandler returns the router serving /predict, /healthz, /readyz and /metrics.
func NewHTTPHandler(p *Pipeline, m *Metrics, cfg HTTPConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	h := &httpAPI{pipeline: p, metrics: m, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Get("/readyz", h.ready)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/predict", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		r.Post("/", h.predict)
	})
	return r
}

// POST /predict  body {"h":..,"t":..,"m":..}
func (h *httpAPI) predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.pipeline.Ready() {
		h.metrics.Observe("http", model.IrrigationDecision{}, ErrServiceUnavailable)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: UnavailableMessage})
		return
	}

	var body any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: unexpected data after top-level value"})
		return
	}
	payload, ok := body.(map[string]any)
	if !ok && body != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "request body must be a JSON object"})
		return
	}

	decision, err := h.pipeline.Decide(payload)
	h.metrics.Observe("http", decision, err)
	if err != nil {
		status := HTTPStatus(err)
		h.logger.Printf("predictor: POST /predict -> %d (%s) [%dms]", status, ErrorMessage(err), time.Since(start).Milliseconds())
		writeJSON(w, status, ErrorResponse{Error: ErrorMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, NewResponse(decision))
}

func (h *httpAPI) ready(w http.ResponseWriter, _ *http.Request) {
	type resp struct {
		Ready bool `json:"ready"`
	}
	ready := h.pipeline.Ready()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp{Ready: ready})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

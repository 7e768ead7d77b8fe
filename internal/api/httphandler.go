package api

import (
	"errors"
	"io"
	"net/http"
	"notigate/internal/types"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Service *Service
	Metrics http.Handler
	Limiter *Limiter
}

func NewHandler(svc *Service, metricsHandler http.Handler, limiter *Limiter) *Handler {
	return &Handler{
		Service: svc,
		Metrics: metricsHandler,
		Limiter: limiter,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/notifications/decide", h.Limiter.Wrap(http.HandlerFunc(h.handleDecide)))
	mux.HandleFunc("GET /v1/rules", h.handleGetRules)
	mux.HandleFunc("POST /v1/rules", h.handleSetRules)
	mux.HandleFunc("GET /v1/users/{user_id}/history", h.handleHistory)
	mux.HandleFunc("GET /v1/metrics", h.handleSummary)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	event, err := ParseEvent(body)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := h.Service.Process(r.Context(), event)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		log.WithError(err).Warn("failed to write response")
	}
}

func (h *Handler) handleGetRules(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Service.Rules(r.Context())
	if err != nil {
		writeError(w, types.Err(types.ErrDataStoreAccess, err, ""))
		return
	}
	_ = writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) handleSetRules(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	cfg, err := ParseRules(body)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Service.ReplaceRules(r.Context(), cfg)
	if err != nil {
		if !errors.Is(err, types.ErrInvalidRuleConfig) {
			err = types.Err(types.ErrDataStoreAccess, err, "")
		}
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := h.Service.History(r.Context(), r.PathValue("user_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, hist)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Service.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, sum)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer func() {
		_ = r.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return nil, false
	}
	if len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// writeError maps typed errors to status codes. Anything untyped is a 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		_ = writeJSON(w, http.StatusBadRequest, map[string]any{"error": types.ErrInvalidEvent.Error(), "fields": ve.Fields})
	case errors.Is(err, types.ErrInvalidEvent), errors.Is(err, types.ErrInvalidRuleConfig):
		_ = writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	default:
		log.WithError(err).Error("request failed")
		_ = writeJSON(w, http.StatusInternalServerError, map[string]any{"error": types.ErrDataStoreAccess.Error()})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

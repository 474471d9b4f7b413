package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yunabot/dispatch-gateway/internal/admission"
	"github.com/yunabot/dispatch-gateway/internal/dispatch"
	"github.com/yunabot/dispatch-gateway/internal/genparams"
	"github.com/yunabot/dispatch-gateway/internal/registry"
	"github.com/yunabot/dispatch-gateway/internal/sdapi"
	"github.com/yunabot/dispatch-gateway/internal/selector"
)

// GenerateRequest is the JSON body of a generation call.
type GenerateRequest struct {
	RequesterID string  `json:"requester_id"`
	Prompt      string  `json:"prompt"`
	Quality     string  `json:"quality"`
	Ratio       string  `json:"ratio"`
	Steps       int     `json:"steps"`
	CfgScale    float64 `json:"cfg_scale"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type backendStatus struct {
	Address     string    `json:"address"`
	Alive       bool      `json:"alive"`
	LastChecked time.Time `json:"last_checked"`
}

// GatewayHandler exposes the dispatch gateway over HTTP, standing in for
// the chat command surface.
type GatewayHandler struct {
	logger   *slog.Logger
	gateway  *dispatch.Gateway
	registry *registry.Registry
	jobCost  int64
}

func NewGatewayHandler(logger *slog.Logger, gateway *dispatch.Gateway, reg *registry.Registry, jobCost int64) *GatewayHandler {
	return &GatewayHandler{
		logger:   logger,
		gateway:  gateway,
		registry: reg,
		jobCost:  jobCost,
	}
}

// Generate handles POST /generate. The first generated image is returned
// as image/png; failures map to distinct status codes so the caller can
// react differently to a broke requester and a dead pool.
func (h *GatewayHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RequesterID == "" || req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "requester_id and prompt are required")
		return
	}

	h.logger.Info("received generation request",
		slog.String("requester", req.RequesterID),
		slog.String("quality", req.Quality),
		slog.String("ratio", req.Ratio))

	result, err := h.gateway.Submit(r.Context(), dispatch.JobRequest{
		RequesterID: req.RequesterID,
		Params:      buildParams(req),
		Cost:        h.jobCost,
	})
	if err != nil {
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Job-ID", result.ID.String())
	w.Header().Set("X-Backend-Server", result.Backend)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Images[0])
}

// Backends handles GET /backends with a liveness snapshot of the pool.
func (h *GatewayHandler) Backends(w http.ResponseWriter, r *http.Request) {
	endpoints := h.registry.Endpoints()

	statuses := make([]backendStatus, 0, len(endpoints))
	for _, ep := range endpoints {
		statuses = append(statuses, backendStatus{
			Address:     ep.Address(),
			Alive:       ep.Alive(),
			LastChecked: ep.LastChecked(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func buildParams(req GenerateRequest) sdapi.Params {
	pair := genparams.Enhance(req.Prompt, req.Quality)
	size := genparams.Ratio(req.Ratio)

	params := sdapi.DefaultParams(pair.Prompt)
	params.NegativePrompt = pair.NegativePrompt
	params.Width = size.Width
	params.Height = size.Height

	if req.Steps > 0 {
		params.Steps = req.Steps
	}
	if req.CfgScale > 0 {
		params.CfgScale = req.CfgScale
	}

	return params
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, admission.ErrAlreadyInFlight):
		return http.StatusConflict, "a generation is already in flight for this requester"
	case errors.Is(err, admission.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient funds for a generation"
	case errors.Is(err, selector.ErrNoBackendAvailable):
		return http.StatusServiceUnavailable, "no backend available"
	default:
		var backendErr *dispatch.BackendError
		if errors.As(err, &backendErr) {
			return http.StatusBadGateway, backendErr.Error()
		}
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message})
}

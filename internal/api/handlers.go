package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"secretpass/config"
	"secretpass/internal/secrets"
	"secretpass/internal/store"
	"secretpass/web"
)

const notFoundMessage = "This secret does not exist or has already been viewed."

type Handler struct {
	secrets *secrets.Service
	config  *config.Config
	logger  *zap.Logger
}

func NewHandler(svc *secrets.Service, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		secrets: svc,
		config:  cfg,
		logger:  logger,
	}
}

type CreateRequest struct {
	Secret    string `json:"secret"`
	ExpiresIn int64  `json:"expiresIn,omitempty"` // milliseconds
}

type CreateResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type RevealResponse struct {
	Secret    string `json:"secret"`
	CreatedAt int64  `json:"createdAt"` // unix milliseconds
}

type HealthResponse struct {
	Status        string  `json:"status"`
	ActiveSecrets int     `json:"activeSecrets"`
	Uptime        float64 `json:"uptime"` // seconds
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Health is the liveness probe. It never touches the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HealthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.secrets.HealthStatus(r.Context())
	if err != nil {
		h.error(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	h.json(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		ActiveSecrets: status.LiveSecrets,
		Uptime:        status.Uptime.Seconds(),
	})
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	// JSON escaping can double the size of the payload.
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.config.Secrets.MaxContentBytes+1024)

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.error(w, http.StatusRequestEntityTooLarge, "secret is too large")
			return
		}
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if int64(len(req.Secret)) > h.config.Secrets.MaxContentBytes {
		h.error(w, http.StatusRequestEntityTooLarge, "secret is too large")
		return
	}

	secret, err := h.secrets.CreateSecret(r.Context(), req.Secret, req.ExpiresIn)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	h.json(w, http.StatusOK, CreateResponse{
		ID:        secret.ID,
		URL:       h.config.Server.BaseURL + "/view.html?id=" + secret.ID,
		ExpiresAt: secret.ExpiresAt(),
	})
}

func (h *Handler) RevealSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	secret, err := h.secrets.RetrieveSecret(r.Context(), id)
	if err != nil {
		h.handleStoreError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.json(w, http.StatusOK, RevealResponse{
		Secret:    secret.Content,
		CreatedAt: secret.CreatedAt.UnixMilli(),
	})
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) ViewPage(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "view.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		h.logger.Error("reading embedded file", zap.String("file", filename), zap.Error(err))
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(content)
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

func (h *Handler) handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		h.error(w, http.StatusBadRequest, "Secret cannot be empty")
	case errors.Is(err, store.ErrNotFound):
		h.json(w, http.StatusNotFound, ErrorResponse{
			Error:   "Secret not found",
			Message: notFoundMessage,
		})
	default:
		h.logger.Error("store operation failed",
			zap.Error(err),
			zap.String("request_id", requestIDFrom(r)),
		)
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}

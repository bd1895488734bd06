package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/akirachix/mlimizone-backend/internal/observability"
	"github.com/akirachix/mlimizone-backend/internal/service"
	"github.com/akirachix/mlimizone-backend/internal/ussd"
)

const maxCallbackBytes = 1 << 20

// USSD answers one hop of a USSD conversation.
type USSD interface {
	Handle(ctx context.Context, req ussd.Request) ussd.Response
}

// CallbackHandler applies or queues a raw payment gateway callback.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, payload []byte) (service.Outcome, error)
}

// Handler handles HTTP requests for the application.
type Handler struct {
	ussd      USSD
	callbacks CallbackHandler
}

func NewHandler(u USSD, callbacks CallbackHandler) *Handler {
	return &Handler{
		ussd:      u,
		callbacks: callbacks,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/ussd", h.handleUSSD)
	r.Post("/payment/callback", h.handlePaymentCallback)
}

// NewRouter wires the middleware stack and the routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) handleUSSD(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		log.Warn("Invalid USSD request body", "err", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req := ussd.Request{
		SessionID:   r.PostFormValue("sessionId"),
		ServiceCode: r.PostFormValue("serviceCode"),
		Phone:       r.PostFormValue("phoneNumber"),
		Text:        r.PostFormValue("text"),
	}
	if req.SessionID == "" {
		http.Error(w, "missing sessionId", http.StatusBadRequest)
		return
	}

	resp := h.ussd.Handle(r.Context(), req)
	log.Debug("USSD response", "session_id", req.SessionID, "end", resp.End)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, resp.String())
}

type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// handlePaymentCallback always acknowledges so the gateway stops redelivering.
func (h *Handler) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context())

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		log.Error("Failed to read payment callback", "err", err)
	} else if outcome, err := h.callbacks.HandleCallback(r.Context(), payload); err != nil {
		log.Error("Failed to handle payment callback", "err", err)
	} else {
		log.Info("Payment callback handled", "outcome", outcome)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}

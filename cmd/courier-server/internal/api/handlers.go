// Package api provides the HTTP handlers of the courier server.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/coregx/courier"
)

// CallerHeader carries the authenticated user id, set by the authenticating proxy.
const CallerHeader = "X-Authenticated-User"

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	publisher     *courier.Publisher
	subscriptions *courier.SubscriptionManager
	db            Pinger
	logger        courier.Logger
}

// NewHandler creates a new API handler.
func NewHandler(
	publisher *courier.Publisher,
	subscriptions *courier.SubscriptionManager,
	db Pinger,
	logger courier.Logger,
) *Handler {
	return &Handler{
		publisher:     publisher,
		subscriptions: subscriptions,
		db:            db,
		logger:        logger,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a success response.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Router builds the route table. metrics may be nil.
func (h *Handler) Router(metrics http.Handler, requestLogger func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if requestLogger != nil {
		r.Use(requestLogger)
	}
	r.Use(middleware.Recoverer)

	r.Get("/health_check", h.HandleHealth)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Post("/subscriptions", h.HandleSubscribe)
	r.Get("/subscriptions/confirm", h.HandleConfirm)

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireCaller)
		r.Post("/newsletters", h.HandlePublish)
	})
	return r
}

type callerKey struct{}

// requireCaller rejects requests without a valid caller id.
func requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(CallerHeader)))
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Authentication required", "UNAUTHENTICATED")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, id.String())))
	})
}

func callerFrom(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// HandlePublish handles POST /admin/newsletters.
//
// The form carries title, text_content, html_content and idempotency_key. The
// response is the stored response of the first request made with that key.
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form", courier.ErrCodeValidation)
		return
	}

	snapshot, err := h.publisher.Publish(r.Context(), callerFrom(r.Context()), courier.PublishRequest{
		Title:          r.PostForm.Get("title"),
		TextContent:    r.PostForm.Get("text_content"),
		HTMLContent:    r.PostForm.Get("html_content"),
		IdempotencyKey: r.PostForm.Get("idempotency_key"),
	})
	if err != nil {
		h.respondServiceError(w, "Failed to publish newsletter issue", err)
		return
	}

	if err := snapshot.Render(w); err != nil {
		h.logger.Warnf("Failed to write publish response: %v", err)
	}
}

// HandleSubscribe handles POST /subscriptions with form fields email and name.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid form", courier.ErrCodeValidation)
		return
	}

	subscriber, err := h.subscriptions.Subscribe(r.Context(), courier.SubscribeRequest{
		Email: r.PostForm.Get("email"),
		Name:  r.PostForm.Get("name"),
	})
	if err != nil {
		h.respondServiceError(w, "Failed to subscribe", err)
		return
	}

	respondSuccess(w, http.StatusOK, subscriber, "Check your inbox to confirm the subscription")
}

// HandleConfirm handles GET /subscriptions/confirm?subscription_token=...
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("subscription_token")
	if token == "" {
		respondError(w, http.StatusBadRequest, "subscription_token is required", courier.ErrCodeValidation)
		return
	}

	if err := h.subscriptions.Confirm(r.Context(), token); err != nil {
		if courier.IsNoData(err) {
			respondError(w, http.StatusUnauthorized, "Unknown subscription token", courier.ErrCodeNoData)
			return
		}
		h.respondServiceError(w, "Failed to confirm subscription", err)
		return
	}

	respondSuccess(w, http.StatusOK, nil, "Subscription confirmed")
}

// HandleHealth handles GET /health_check.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Errorf("Health check failed: %v", err)
		respondError(w, http.StatusServiceUnavailable, "Database unavailable", courier.ErrCodeDatabase)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// respondServiceError maps a library error to a status. Details of server-side
// failures are logged, not returned.
func (h *Handler) respondServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case courier.IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error(), courier.ErrCodeValidation)
	case courier.IsInFlight(err):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusConflict, "A request with this idempotency key is still being processed", courier.ErrCodeInFlight)
	case courier.IsTransportUnavailable(err):
		w.Header().Set("Retry-After", "30")
		respondError(w, http.StatusServiceUnavailable, "Email delivery is temporarily unavailable", courier.ErrCodeTransportUnavailable)
	default:
		h.logger.Errorf("%s: error.message=%q error.cause_chain=%q",
			message, err.Error(), strings.Join(courier.CauseChain(err), " <- "))
		respondError(w, http.StatusInternalServerError, message, "INTERNAL_ERROR")
	}
}

func respondError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"foodlink/internal/notification"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/platform/middleware"
	"foodlink/internal/transport/http/shared"
	id "foodlink/pkg/domain"
	"foodlink/pkg/requestcontext"
)

// Service defines the notification operations the handler exposes. Every
// operation is scoped to the authenticated account.
type Service interface {
	List(ctx context.Context, accountID id.AccountID, unreadOnly bool) ([]*notification.Notification, error)
	UnreadCount(ctx context.Context, accountID id.AccountID) (int, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID, accountID id.AccountID) error
	MarkAllRead(ctx context.Context, accountID id.AccountID) error
}

// Handler handles notification endpoints.
type Handler struct {
	logger        *slog.Logger
	notifications Service
	metrics       *metrics.Metrics
	validator     middleware.TokenValidator
}

// New creates a notification Handler.
func New(notifications Service, logger *slog.Logger, metrics *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:        logger,
		notifications: notifications,
		metrics:       metrics,
		validator:     validator,
	}
}

// Register registers the notification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	nr := chi.NewRouter()
	nr.Use(middleware.Recovery(h.logger))
	nr.Use(middleware.RequestID)
	nr.Use(middleware.RequestTime)
	nr.Use(middleware.Logger(h.logger))
	nr.Use(middleware.Latency(h.metrics))
	nr.Use(middleware.RequireAuth(h.validator, h.logger))

	nr.Get("/notifications", h.handleList)
	nr.Get("/notifications/unread-count", h.handleUnreadCount)
	nr.Post("/notifications/{notificationID}/read", h.handleMarkRead)
	nr.Post("/notifications/read-all", h.handleMarkAllRead)

	r.Mount("/", nr)
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unreadOnly := r.URL.Query().Get("unread") == "true"

	ns, err := h.notifications.List(ctx, requestcontext.ActorID(ctx), unreadOnly)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]notificationResponse, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationResponse{
			ID:        n.ID.String(),
			Message:   n.Message,
			Severity:  string(n.Severity),
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.notifications.UnreadCount(ctx, requestcontext.ActorID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.notifications.MarkRead(ctx, notificationID, requestcontext.ActorID(ctx)); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.notifications.MarkAllRead(ctx, requestcontext.ActorID(ctx)); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

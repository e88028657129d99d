package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"foodlink/internal/account"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/platform/middleware"
	"foodlink/internal/proxy"
	"foodlink/internal/transport/http/shared"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/requestcontext"
)

// Service defines the delegate operations the handler exposes.
type Service interface {
	Request(ctx context.Context, participantID id.ParticipantID, name, phone, email string) (*proxy.Delegate, error)
	Decide(ctx context.Context, delegateID id.DelegateID, approve bool, actorID id.AccountID) (*proxy.Delegate, error)
	Delete(ctx context.Context, delegateID id.DelegateID, participantID id.ParticipantID) error
	List(ctx context.Context, participantID id.ParticipantID) ([]*proxy.Delegate, error)
}

// Handler handles proxy delegate endpoints.
type Handler struct {
	logger    *slog.Logger
	delegates Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a delegate Handler.
func New(delegates Service, logger *slog.Logger, metrics *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		delegates: delegates,
		metrics:   metrics,
		validator: validator,
	}
}

// Register registers the delegate routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	pr := chi.NewRouter()
	pr.Use(middleware.Recovery(h.logger))
	pr.Use(middleware.RequestID)
	pr.Use(middleware.RequestTime)
	pr.Use(middleware.Logger(h.logger))
	pr.Use(middleware.Latency(h.metrics))
	pr.Use(middleware.RequireAuth(h.validator, h.logger))

	pr.Post("/participants/{participantID}/delegates", h.handleRequest)
	pr.Get("/participants/{participantID}/delegates", h.handleList)
	pr.Delete("/participants/{participantID}/delegates/{delegateID}", h.handleDelete)
	pr.With(middleware.RequireRole(string(account.RoleAdmin), h.logger)).
		Post("/delegates/{delegateID}/decision", h.handleDecide)

	r.Mount("/", pr)
}

type delegateResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status"`
}

func toDelegateResponse(d *proxy.Delegate) delegateResponse {
	return delegateResponse{
		ID:     d.ID.String(),
		Name:   d.Name,
		Phone:  d.Phone,
		Email:  d.Email,
		Status: string(d.Status),
	}
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	d, err := h.delegates.Request(ctx, participantID, req.Name, req.Phone, req.Email)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toDelegateResponse(d))
}

func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	d, err := h.delegates.Decide(ctx, delegateID, req.Approve, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "delegate decision failed",
			"delegate_id", delegateID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toDelegateResponse(d))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	delegateID, err := id.ParseDelegateID(chi.URLParam(r, "delegateID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.delegates.Delete(ctx, delegateID, participantID); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	ds, err := h.delegates.List(r.Context(), participantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]delegateResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDelegateResponse(d))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

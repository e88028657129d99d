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
	"foodlink/internal/registry"
	"foodlink/internal/transport/http/shared"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/requestcontext"
)

// Service defines the verification operations the handler exposes.
type Service interface {
	Approve(ctx context.Context, participantID id.ParticipantID, locationPrefix string, actorID id.AccountID) (*registry.VerificationDecision, error)
	Reject(ctx context.Context, participantID id.ParticipantID, reason string, actorID id.AccountID) (*registry.VerificationDecision, error)
	FlagForReview(ctx context.Context, participantID id.ParticipantID, reason string) error
	ListPending(ctx context.Context) ([]*registry.Participant, error)
}

// Handler handles participant verification endpoints.
type Handler struct {
	logger       *slog.Logger
	registry     Service
	metrics      *metrics.Metrics
	validator    middleware.TokenValidator
	numberPrefix string
}

// New creates a verification Handler. numberPrefix is the default location
// prefix applied when an approval request does not name one.
func New(registry Service, logger *slog.Logger, metrics *metrics.Metrics, validator middleware.TokenValidator, numberPrefix string) *Handler {
	return &Handler{
		logger:       logger,
		registry:     registry,
		metrics:      metrics,
		validator:    validator,
		numberPrefix: numberPrefix,
	}
}

// Register registers the verification routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	rr := chi.NewRouter()
	rr.Use(middleware.Recovery(h.logger))
	rr.Use(middleware.RequestID)
	rr.Use(middleware.RequestTime)
	rr.Use(middleware.Logger(h.logger))
	rr.Use(middleware.Latency(h.metrics))
	rr.Use(middleware.RequireAuth(h.validator, h.logger))
	rr.Use(middleware.RequireRole(string(account.RoleAdmin), h.logger))

	rr.Get("/registry/pending", h.handleListPending)
	rr.Post("/registry/participants/{participantID}/approve", h.handleApprove)
	rr.Post("/registry/participants/{participantID}/reject", h.handleReject)
	rr.Post("/registry/participants/{participantID}/flag", h.handleFlag)

	r.Mount("/", rr)
}

type decisionResponse struct {
	ParticipantID string `json:"participant_id"`
	Approved      bool   `json:"approved"`
	Number        string `json:"number,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Prefix string `json:"prefix"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}
	if req.Prefix == "" {
		req.Prefix = h.numberPrefix
	}

	decision, err := h.registry.Approve(ctx, participantID, req.Prefix, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "approve failed",
			"participant_id", participantID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, decisionResponse{
		ParticipantID: decision.ParticipantID.String(),
		Approved:      true,
		Number:        decision.Number,
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	decision, err := h.registry.Reject(ctx, participantID, req.Reason, requestcontext.ActorID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, decisionResponse{
		ParticipantID: decision.ParticipantID.String(),
		Approved:      false,
		Reason:        decision.Reason,
	})
}

func (h *Handler) handleFlag(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.registry.FlagForReview(ctx, participantID, req.Reason); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type participantResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Number      string `json:"number,omitempty"`
	NoShowCount int    `json:"no_show_count"`
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.registry.ListPending(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]participantResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, participantResponse{
			ID:          p.ID.String(),
			Status:      string(p.Status),
			Number:      p.Number,
			NoShowCount: p.NoShowCount,
		})
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"foodlink/internal/attendance"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/platform/middleware"
	"foodlink/internal/transport/http/shared"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/requestcontext"
)

// Service defines the attendance operations the handler exposes.
type Service interface {
	LogNoShow(ctx context.Context, participantID id.ParticipantID, reason string, actorID id.AccountID) (*attendance.NoShowEvent, error)
	History(ctx context.Context, participantID id.ParticipantID) ([]*attendance.NoShowEvent, error)
}

// Handler handles no-show endpoints.
type Handler struct {
	logger     *slog.Logger
	attendance Service
	metrics    *metrics.Metrics
	validator  middleware.TokenValidator
}

// New creates an attendance Handler.
func New(attendance Service, logger *slog.Logger, metrics *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:     logger,
		attendance: attendance,
		metrics:    metrics,
		validator:  validator,
	}
}

// Register registers the attendance routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(middleware.Recovery(h.logger))
	ar.Use(middleware.RequestID)
	ar.Use(middleware.RequestTime)
	ar.Use(middleware.Logger(h.logger))
	ar.Use(middleware.Latency(h.metrics))
	ar.Use(middleware.RequireAuth(h.validator, h.logger))

	ar.Post("/participants/{participantID}/no-shows", h.handleLogNoShow)
	ar.Get("/participants/{participantID}/no-shows", h.handleHistory)

	r.Mount("/", ar)
}

type noShowResponse struct {
	ID               string    `json:"id"`
	Count            int       `json:"count"`
	ThresholdReached bool      `json:"threshold_reached"`
	ActionTaken      string    `json:"action_taken,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

func toNoShowResponse(e *attendance.NoShowEvent) noShowResponse {
	return noShowResponse{
		ID:               e.ID.String(),
		Count:            e.Count,
		ThresholdReached: e.ThresholdReached,
		ActionTaken:      e.ActionTaken,
		CreatedAt:        e.CreatedAt,
	}
}

func (h *Handler) handleLogNoShow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	event, err := h.attendance.LogNoShow(ctx, participantID, req.Reason, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "no-show logging failed",
			"participant_id", participantID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toNoShowResponse(event))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	events, err := h.attendance.History(r.Context(), participantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]noShowResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toNoShowResponse(e))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

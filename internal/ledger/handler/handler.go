package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"foodlink/internal/ledger"
	"foodlink/internal/platform/metrics"
	"foodlink/internal/platform/middleware"
	"foodlink/internal/transport/http/shared"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/requestcontext"
)

// Service defines the ledger operations the handler exposes.
type Service interface {
	Record(ctx context.Context, participantID id.ParticipantID, volunteerID id.AccountID, quantity float64, itemDescription string, signed bool, notes string) (*ledger.DistributionRecord, error)
	History(ctx context.Context, participantID id.ParticipantID) ([]*ledger.DistributionRecord, error)
}

// Handler handles distribution ledger endpoints.
type Handler struct {
	logger    *slog.Logger
	ledger    Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a ledger Handler.
func New(ledger Service, logger *slog.Logger, metrics *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		ledger:    ledger,
		metrics:   metrics,
		validator: validator,
	}
}

// Register registers the ledger routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	lr := chi.NewRouter()
	lr.Use(middleware.Recovery(h.logger))
	lr.Use(middleware.RequestID)
	lr.Use(middleware.RequestTime)
	lr.Use(middleware.Logger(h.logger))
	lr.Use(middleware.Latency(h.metrics))
	lr.Use(middleware.RequireAuth(h.validator, h.logger))

	lr.Post("/participants/{participantID}/distributions", h.handleRecord)
	lr.Get("/participants/{participantID}/distributions", h.handleHistory)

	r.Mount("/", lr)
}

type recordResponse struct {
	ID              string    `json:"id"`
	Quantity        float64   `json:"quantity"`
	ItemDescription string    `json:"item_description,omitempty"`
	Signed          bool      `json:"signed"`
	Notes           string    `json:"notes,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
}

func toRecordResponse(r *ledger.DistributionRecord) recordResponse {
	return recordResponse{
		ID:              r.ID.String(),
		Quantity:        r.Quantity,
		ItemDescription: r.ItemDescription,
		Signed:          r.Signed,
		Notes:           r.Notes,
		RecordedAt:      r.Timestamp,
	}
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req struct {
		Quantity        float64 `json:"quantity"`
		ItemDescription string  `json:"item_description"`
		Signed          bool    `json:"signed"`
		Notes           string  `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.ledger.Record(ctx, participantID, requestcontext.ActorID(ctx),
		req.Quantity, req.ItemDescription, req.Signed, req.Notes)
	if err != nil {
		h.logger.WarnContext(ctx, "distribution record failed",
			"participant_id", participantID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	records, err := h.ledger.History(r.Context(), participantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	shared.WriteJSON(w, http.StatusOK, out)
}

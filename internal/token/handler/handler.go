package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"foodlink/internal/platform/metrics"
	"foodlink/internal/platform/middleware"
	"foodlink/internal/token"
	tokenservice "foodlink/internal/token/service"
	"foodlink/internal/transport/http/shared"
	id "foodlink/pkg/domain"
	dErrors "foodlink/pkg/domain-errors"
	"foodlink/pkg/requestcontext"
)

// Service defines the token operations the handler exposes.
type Service interface {
	Issue(ctx context.Context, participantID id.ParticipantID, proxyID *id.DelegateID, actorID id.AccountID) (*token.IdentityToken, string, error)
	Validate(ctx context.Context, sessionID id.SessionID) (*tokenservice.ValidationResult, error)
	ValidateSigned(ctx context.Context, signed string) (*tokenservice.ValidationResult, error)
	Cancel(ctx context.Context, sessionID id.SessionID, actorID id.AccountID) error
}

// Handler handles check-in token endpoints.
type Handler struct {
	logger    *slog.Logger
	tokens    Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a token Handler.
func New(tokens Service, logger *slog.Logger, metrics *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		tokens:    tokens,
		metrics:   metrics,
		validator: validator,
	}
}

// Register registers the token routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	tr := chi.NewRouter()
	tr.Use(middleware.Recovery(h.logger))
	tr.Use(middleware.RequestID)
	tr.Use(middleware.RequestTime)
	tr.Use(middleware.Logger(h.logger))
	tr.Use(middleware.Latency(h.metrics))
	tr.Use(middleware.RequireAuth(h.validator, h.logger))

	tr.Post("/tokens", h.handleIssue)
	tr.Post("/tokens/validate", h.handleValidate)
	tr.Post("/tokens/{sessionID}/cancel", h.handleCancel)

	r.Mount("/", tr)
}

type issueRequest struct {
	ParticipantID string `json:"participant_id"`
	ProxyID       string `json:"proxy_id,omitempty"`
}

type issueResponse struct {
	SessionID string    `json:"session_id"`
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	participantID, err := id.ParseParticipantID(req.ParticipantID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var proxyID *id.DelegateID
	if req.ProxyID != "" {
		pid, err := id.ParseDelegateID(req.ProxyID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		proxyID = &pid
	}

	issued, payload, err := h.tokens.Issue(ctx, participantID, proxyID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "token issue failed",
			"participant_id", participantID.String(),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, issueResponse{
		SessionID: issued.SessionID.String(),
		Payload:   payload,
		ExpiresAt: issued.ExpiresAt,
	})
}

type validateRequest struct {
	// SessionID validates a raw session id scanned at a staffed station.
	SessionID string `json:"session_id,omitempty"`
	// Payload validates a signed payload presented from a participant device.
	Payload string `json:"payload,omitempty"`
}

type validateResponse struct {
	ParticipantID string `json:"participant_id"`
	Number        string `json:"number"`
	ProxyID       string `json:"proxy_id,omitempty"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	var (
		res *tokenservice.ValidationResult
		err error
	)
	switch {
	case req.Payload != "":
		res, err = h.tokens.ValidateSigned(ctx, req.Payload)
	case req.SessionID != "":
		var sessionID id.SessionID
		if sessionID, err = id.ParseSessionID(req.SessionID); err == nil {
			res, err = h.tokens.Validate(ctx, sessionID)
		}
	default:
		err = dErrors.New(dErrors.CodeBadRequest, "session_id or payload is required")
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := validateResponse{
		ParticipantID: res.Participant.ID.String(),
		Number:        res.Participant.Number,
	}
	if res.Token.ProxyID != nil {
		resp.ProxyID = res.Token.ProxyID.String()
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.tokens.Cancel(ctx, sessionID, requestcontext.ActorID(ctx)); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

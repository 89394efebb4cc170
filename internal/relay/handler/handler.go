package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"whisper/internal/message/models"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/httputil"
	"whisper/pkg/requestcontext"
)

// Service defines the submission operation exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, rawRecipient string, rawText string) (*models.Receipt, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the anonymous submission endpoint.
func (h *Handler) Register(r chi.Router) {
	r.Post("/u/{recipientID}/messages", h.HandleSubmit)
}

// SubmitRequest is the body of an anonymous submission. Blank text is
// rejected by the service as empty_message, not here.
type SubmitRequest struct {
	Text string `json:"text" validate:"max=10000"`
}

func (r *SubmitRequest) Normalize() {}

func (r *SubmitRequest) Validate() error {
	return httputil.ValidateStruct(r)
}

type SubmitResponse struct {
	MessageID   string    `json:"message_id"`
	RecipientID string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// HandleSubmit handles POST /u/{recipientID}/messages.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	receipt, err := h.service.Submit(ctx, chi.URLParam(r, "recipientID"), req.Text)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "unexpected submit failure",
				"request_id", requestID,
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, SubmitResponse{
		MessageID:   receipt.MessageID.String(),
		RecipientID: string(receipt.RecipientID),
		CreatedAt:   receipt.CreatedAt,
	})
}

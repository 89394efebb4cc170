package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"whisper/internal/identity/models"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/httputil"
	"whisper/pkg/requestcontext"
)

// Service defines the identity operations exposed over HTTP.
type Service interface {
	GetProfile(ctx context.Context, rawID string) (*models.Profile, error)
	ShareLink(userID id.RecipientID) string
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the anonymous profile lookup.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/u/{recipientID}", h.HandleGetProfile)
}

// RegisterOwner mounts endpoints that require an authenticated owner.
func (h *Handler) RegisterOwner(r chi.Router) {
	r.Get("/me/share-link", h.HandleShareLink)
}

type ProfileResponse struct {
	RecipientID string `json:"recipient_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

type ShareLinkResponse struct {
	RecipientID string `json:"recipient_id"`
	URL         string `json:"url"`
}

// HandleGetProfile handles GET /u/{recipientID}.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.service.GetProfile(ctx, chi.URLParam(r, "recipientID"))
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) && !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "failed to load profile",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ProfileResponse{
		RecipientID: string(profile.ID),
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
	})
}

// HandleShareLink handles GET /me/share-link.
func (h *Handler) HandleShareLink(w http.ResponseWriter, r *http.Request) {
	userID := requestcontext.UserID(r.Context())
	if userID.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ShareLinkResponse{
		RecipientID: string(userID),
		URL:         h.service.ShareLink(userID),
	})
}

package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"whisper/internal/report/models"
	dErrors "whisper/pkg/domain-errors"
	"whisper/pkg/platform/httputil"
	"whisper/pkg/requestcontext"
)

// Service defines the report operation exposed over HTTP.
type Service interface {
	BuildReport(ctx context.Context) ([]*models.JoinedRow, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the report. The router must require a report capability.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/report", h.HandleReport)
}

type RowResponse struct {
	MessageID    string    `json:"message_id"`
	RecipientID  string    `json:"recipient_id"`
	Text         string    `json:"text"`
	SenderIP     string    `json:"sender_ip"`
	SenderClient string    `json:"sender_client"`
	CreatedAt    time.Time `json:"created_at"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatar_url"`
	Orphaned     bool      `json:"orphaned"`
}

type ReportResponse struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Total       int           `json:"total"`
	Orphaned    int           `json:"orphaned"`
	Rows        []RowResponse `json:"rows"`
}

// HandleReport handles GET /admin/report.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if requestcontext.OperatorID(ctx) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "console capability required"))
		return
	}

	rows, err := h.service.BuildReport(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := ReportResponse{
		GeneratedAt: requestcontext.Now(ctx).UTC(),
		Total:       len(rows),
		Orphaned:    lo.CountBy(rows, func(row *models.JoinedRow) bool { return row.Orphaned }),
		Rows: lo.Map(rows, func(row *models.JoinedRow, _ int) RowResponse {
			return RowResponse{
				MessageID:    row.MessageID.String(),
				RecipientID:  string(row.RecipientID),
				Text:         row.Text,
				SenderIP:     row.Provenance.IP,
				SenderClient: row.Provenance.Client,
				CreatedAt:    row.CreatedAt,
				DisplayName:  row.DisplayName,
				Email:        row.Email,
				AvatarURL:    row.AvatarURL,
				Orphaned:     row.Orphaned,
			}
		}),
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

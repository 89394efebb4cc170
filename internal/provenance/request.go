package provenance

import (
	"context"

	"whisper/internal/message/models"
	"whisper/pkg/requestcontext"
)

// RequestLookup reads the client address captured by the metadata middleware.
type RequestLookup struct{}

func (RequestLookup) Lookup(ctx context.Context) (models.Provenance, error) {
	ip := requestcontext.ClientIP(ctx)
	if ip == "" {
		return models.Provenance{}, ErrLookupFailed
	}
	return models.Provenance{
		IP:     ip,
		Client: ClientSummary(requestcontext.UserAgent(ctx)),
	}, nil
}

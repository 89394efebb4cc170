package provenance

import (
	"context"
	"errors"

	"whisper/internal/message/models"
)

// Chain tries each lookup in order and returns the first success.
type Chain []Lookup

func (c Chain) Lookup(ctx context.Context) (models.Provenance, error) {
	errs := make([]error, 0, len(c))
	for _, l := range c {
		p, err := l.Lookup(ctx)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return models.Provenance{}, ErrLookupFailed
	}
	return models.Provenance{}, errors.Join(errs...)
}

package testutil

import (
	"net/http"

	id "whisper/pkg/domain"
	"whisper/pkg/requestcontext"
)

// WithUserID marks the request as authenticated for recipient, the way
// auth.RequireAuth would. Invalid ids are ignored.
func WithUserID(req *http.Request, recipient string) *http.Request {
	parsed, err := id.ParseRecipientID(recipient)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
}

// WithOperator marks the request as carrying a console capability for operator.
func WithOperator(req *http.Request, operator string) *http.Request {
	return req.WithContext(requestcontext.WithOperatorID(req.Context(), operator))
}

// WithClient attaches client metadata the way metadata.ClientMetadata would.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}

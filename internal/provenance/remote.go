package provenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"whisper/internal/message/models"
	"whisper/pkg/platform/circuit"
	"whisper/pkg/requestcontext"
)

// maxEchoBody bounds the echo service response.
const maxEchoBody = 4 << 10

// RemoteLookup asks an IP echo service (ipify's {"ip": "..."} format) for the
// caller's public address. It suits deployments where the server runs on the
// sender's network edge. An open breaker fails fast.
type RemoteLookup struct {
	url     string
	client  *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type RemoteOption func(*RemoteLookup)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteLookup) {
		if c != nil {
			r.client = c
		}
	}
}

func WithBreaker(b *circuit.Breaker) RemoteOption {
	return func(r *RemoteLookup) {
		if b != nil {
			r.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) RemoteOption {
	return func(r *RemoteLookup) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRemoteLookup(url string, opts ...RemoteOption) *RemoteLookup {
	r := &RemoteLookup{
		url:     url,
		client:  http.DefaultClient,
		breaker: circuit.New("provenance-remote"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type echoResponse struct {
	IP string `json:"ip"`
}

func (r *RemoteLookup) Lookup(ctx context.Context) (models.Provenance, error) {
	if !r.breaker.Allow() {
		return models.Provenance{}, fmt.Errorf("%w: circuit %s open", ErrLookupFailed, r.breaker.Name())
	}
	ip, err := r.fetch(ctx)
	if err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "provenance circuit opened", "breaker", r.breaker.Name(), "error", err)
		}
		return models.Provenance{}, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "provenance circuit closed", "breaker", r.breaker.Name())
	}
	return models.Provenance{
		IP:     ip,
		Client: ClientSummary(requestcontext.UserAgent(ctx)),
	}, nil
}

func (r *RemoteLookup) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("build echo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("echo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("echo service returned %d", resp.StatusCode)
	}
	var body echoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxEchoBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode echo response: %w", err)
	}
	if net.ParseIP(body.IP) == nil {
		return "", fmt.Errorf("echo service returned invalid ip %q", body.IP)
	}
	return body.IP, nil
}

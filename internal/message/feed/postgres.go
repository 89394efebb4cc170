package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
)

// NotifyChannel is the LISTEN/NOTIFY channel shared by all instances.
const NotifyChannel = "inbox_messages"

// MessageLoader resolves a notification to the stored message.
type MessageLoader interface {
	FindByID(ctx context.Context, messageID id.MessageID) (*models.Message, error)
}

// Postgres relays NOTIFY events into a local Hub. When the listener
// reconnects every local subscription is dropped, since notifications sent
// while disconnected are lost.
type Postgres struct {
	db       *sql.DB
	loader   MessageLoader
	listener *pq.Listener
	hub      *Hub
	logger   *slog.Logger

	wg   sync.WaitGroup
	stop chan struct{}
}

type PostgresOption func(*Postgres)

func WithPostgresLogger(logger *slog.Logger) PostgresOption {
	return func(p *Postgres) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPostgres opens a dedicated listener connection on dsn.
func NewPostgres(db *sql.DB, dsn string, loader MessageLoader, opts ...PostgresOption) (*Postgres, error) {
	p := &Postgres{
		db:     db,
		loader: loader,
		logger: slog.Default(),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.hub = NewHub(WithHubLogger(p.logger))

	p.listener = pq.NewListener(dsn, 100*time.Millisecond, 10*time.Second, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			p.logger.Warn("inbox listener event", "event", int(ev), "error", err)
		}
	})
	if err := p.listener.Listen(NotifyChannel); err != nil {
		_ = p.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	p.wg.Add(1)
	go p.run()
	return p, nil
}

func (p *Postgres) Publish(ctx context.Context, msg *models.Message) error {
	payload, err := json.Marshal(notification{ID: msg.ID, RecipientID: msg.RecipientID})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify %s: %w: %w", NotifyChannel, sentinel.ErrUnavailable, err)
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, recipient id.RecipientID) (<-chan *models.Message, error) {
	return p.hub.Subscribe(ctx, recipient)
}

// Close stops the listener and closes all subscriptions.
func (p *Postgres) Close() error {
	close(p.stop)
	err := p.listener.Close()
	p.wg.Wait()
	_ = p.hub.Close()
	return err
}

func (p *Postgres) run() {
	defer p.wg.Done()
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-p.stop:
			return
		case n, ok := <-p.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnected; anything sent meanwhile is gone.
				p.hub.DropAll()
				continue
			}
			p.dispatch(n.Extra)
		case <-ping.C:
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.logger.Warn("inbox listener ping failed", "error", err)
				}
			}()
		}
	}
}

func (p *Postgres) dispatch(payload string) {
	var ref notification
	if err := json.Unmarshal([]byte(payload), &ref); err != nil {
		p.logger.Warn("dropping undecodable notification", "error", err)
		return
	}
	if p.hub.Subscribers(ref.RecipientID) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := p.loader.FindByID(ctx, ref.ID)
	if err != nil {
		p.logger.Warn("failed to load notified message",
			"message_id", ref.ID,
			"error", err,
		)
		return
	}
	_ = p.hub.Publish(ctx, msg)
}

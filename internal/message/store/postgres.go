package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
	txcontext "whisper/pkg/platform/tx"
)

// Postgres persists messages in the messages table. The seq column is the
// arrival order; created_at is assigned by the database.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectMessage = `SELECT seq, id, recipient_id, text, sender_ip, sender_client, created_at FROM messages`

func (s *Postgres) Append(ctx context.Context, draft models.Draft) (*models.Message, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	msg := newMessage(draft, 0, time.Time{})
	query := `
		INSERT INTO messages (id, recipient_id, text, sender_ip, sender_client)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq, created_at
	`
	err := s.querier(ctx).QueryRowContext(ctx, query,
		uuid.UUID(msg.ID), string(msg.RecipientID), msg.Text, msg.Provenance.IP, msg.Provenance.Client,
	).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		return nil, unavailable("append message", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

func (s *Postgres) ListByRecipient(ctx context.Context, recipient id.RecipientID) ([]*models.Message, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, selectMessage+` WHERE recipient_id = $1 ORDER BY seq`, string(recipient))
	if err != nil {
		return nil, unavailable("list messages by recipient", err)
	}
	return scanMessages(rows)
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.Message, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, selectMessage+` ORDER BY seq`)
	if err != nil {
		return nil, unavailable("list messages", err)
	}
	return scanMessages(rows)
}

// FindByID loads a single message; the postgres feed uses it to resolve
// notifications.
func (s *Postgres) FindByID(ctx context.Context, messageID id.MessageID) (*models.Message, error) {
	row := s.querier(ctx).QueryRowContext(ctx, selectMessage+` WHERE id = $1`, uuid.UUID(messageID))
	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner) (*models.Message, error) {
	var (
		msg       models.Message
		messageID uuid.UUID
		recipient string
	)
	err := row.Scan(&msg.Seq, &messageID, &recipient, &msg.Text, &msg.Provenance.IP, &msg.Provenance.Client, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("find message: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("scan message", err)
	}
	msg.ID = id.MessageID(messageID)
	msg.RecipientID = id.RecipientID(recipient)
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate messages", err)
	}
	return out, nil
}

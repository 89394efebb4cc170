package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"whisper/internal/identity/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
	txcontext "whisper/pkg/platform/tx"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectUser = `SELECT id, display_name, avatar_url, email, last_seen FROM users`

func (s *Postgres) FindByID(ctx context.Context, userID id.RecipientID) (*models.User, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectUser+` WHERE id = $1`, string(userID))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w: %w", sentinel.ErrUnavailable, err)
	}
	return u, nil
}

func (s *Postgres) ListAll(ctx context.Context) ([]*models.User, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, selectUser+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w: %w", sentinel.ErrUnavailable, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w: %w", sentinel.ErrUnavailable, err)
	}
	return out, nil
}

func (s *Postgres) Save(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	var lastSeen sql.NullTime
	if !u.LastSeen.IsZero() {
		lastSeen = sql.NullTime{Time: u.LastSeen, Valid: true}
	}
	query := `
		INSERT INTO users (id, display_name, avatar_url, email, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			email = EXCLUDED.email,
			last_seen = EXCLUDED.last_seen
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, string(u.ID), u.DisplayName, u.AvatarURL, u.Email, lastSeen); err != nil {
		return fmt.Errorf("save user: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u        models.User
		userID   string
		lastSeen sql.NullTime
	)
	if err := row.Scan(&userID, &u.DisplayName, &u.AvatarURL, &u.Email, &lastSeen); err != nil {
		return nil, err
	}
	u.ID = id.RecipientID(userID)
	if lastSeen.Valid {
		u.LastSeen = lastSeen.Time.UTC()
	}
	return &u, nil
}

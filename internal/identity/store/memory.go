package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"whisper/internal/identity/models"
	id "whisper/pkg/domain"
	"whisper/pkg/email"
	"whisper/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.RWMutex
	users map[id.RecipientID]*models.User
	order []id.RecipientID
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.RecipientID]*models.User)}
}

func (s *InMemory) FindByID(_ context.Context, userID id.RecipientID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	c := *u
	return &c, nil
}

// ListAll returns users in insertion order.
func (s *InMemory) ListAll(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.order))
	for _, uid := range s.order {
		c := *s.users[uid]
		out = append(out, &c)
	}
	return out, nil
}

// Save inserts or replaces a user.
func (s *InMemory) Save(_ context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; !exists {
		s.order = append(s.order, u.ID)
	}
	c := *u
	s.users[u.ID] = &c
	return nil
}

// Saver is the write side shared by every user store.
type Saver interface {
	Save(ctx context.Context, u *models.User) error
}

// LoadSeed reads a JSON array of users from path and saves each one. Users
// are saved in id order so repeated loads are deterministic. A user without a
// display name gets one derived from their email address.
func LoadSeed(ctx context.Context, path string, store Saver) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read user seed: %w", err)
	}
	var users []*models.User
	if err := json.Unmarshal(data, &users); err != nil {
		return 0, fmt.Errorf("decode user seed: %w", err)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	for _, u := range users {
		if strings.TrimSpace(u.DisplayName) == "" {
			u.DisplayName = email.DisplayName(u.Email)
		}
		if err := store.Save(ctx, u); err != nil {
			return 0, fmt.Errorf("seed user %q: %w", u.ID, err)
		}
	}
	return len(users), nil
}

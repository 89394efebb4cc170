package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
)

// Key layout:
//
//	m:<seq>              message JSON, seq zero-padded so keys sort in arrival order
//	r:<recipient>:<seq>  empty index entry pointing at m:<seq>
const (
	messagePrefix   = "m:"
	recipientPrefix = "r:"
	sequenceKey     = "seq:messages"
	sequenceBand    = 100
)

// Badger persists messages in an embedded badger database.
type Badger struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *slog.Logger

	mu    sync.Mutex
	clock monotonic
}

type BadgerOption func(*Badger)

func WithBadgerClock(clock Clock) BadgerOption {
	return func(s *Badger) {
		if clock != nil {
			s.clock.now = clock
		}
	}
}

func WithBadgerLogger(logger *slog.Logger) BadgerOption {
	return func(s *Badger) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// OpenBadger opens (or creates) the database at path.
func OpenBadger(path string) (*badger.DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}

// NewBadger takes ownership of the sequence lease; call Close before closing db.
func NewBadger(db *badger.DB, opts ...BadgerOption) (*Badger, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBand)
	if err != nil {
		return nil, fmt.Errorf("lease message sequence: %w", err)
	}
	s := &Badger{
		db:     db,
		seq:    seq,
		logger: slog.Default(),
		clock:  monotonic{now: time.Now},
	}
	for _, opt := range opts {
		opt(s)
	}
	if last, err := s.lastCreatedAt(); err == nil {
		s.clock.last = last
	}
	return s, nil
}

// Close returns unused sequence numbers to the database.
func (s *Badger) Close() error {
	return s.seq.Release()
}

func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, seq))
}

func recipientKey(recipient id.RecipientID, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", recipientPrefix, recipient, seq))
}

func (s *Badger) Append(_ context.Context, draft models.Draft) (*models.Message, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.seq.Next()
	if err != nil {
		return nil, unavailable("append message", err)
	}
	msg := newMessage(draft, n+1, s.clock.next())
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(msg.Seq), data); err != nil {
			return err
		}
		return txn.Set(recipientKey(msg.RecipientID, msg.Seq), nil)
	})
	if err != nil {
		return nil, unavailable("append message", err)
	}
	return msg, nil
}

func (s *Badger) ListByRecipient(_ context.Context, recipient id.RecipientID) ([]*models.Message, error) {
	var out []*models.Message
	prefix := []byte(recipientPrefix + string(recipient) + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			var seq uint64
			if _, err := fmt.Sscanf(string(key[len(prefix):]), "%d", &seq); err != nil {
				return fmt.Errorf("corrupt index key %q: %w", key, err)
			}
			item, err := txn.Get(messageKey(seq))
			if err != nil {
				return fmt.Errorf("load message %d: %w", seq, err)
			}
			msg, err := decodeItem(item)
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list messages by recipient", err)
	}
	return out, nil
}

func (s *Badger) ListAll(_ context.Context) ([]*models.Message, error) {
	var out []*models.Message
	prefix := []byte(messagePrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			msg, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list messages", err)
	}
	return out, nil
}

// lastCreatedAt reads the newest stored timestamp so a restarted process
// keeps CreatedAt non-decreasing.
func (s *Badger) lastCreatedAt() (time.Time, error) {
	var last time.Time
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks to the largest key <= the seek key.
		it.Seek([]byte(messagePrefix + "~"))
		if !it.ValidForPrefix([]byte(messagePrefix)) {
			return sentinel.ErrNotFound
		}
		msg, err := decodeItem(it.Item())
		if err != nil {
			return err
		}
		last = msg.CreatedAt
		return nil
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return time.Time{}, err
	}
	if err != nil {
		s.logger.Warn("failed to read last message timestamp", "error", err)
	}
	return last, err
}

func decodeItem(item *badger.Item) (*models.Message, error) {
	var msg models.Message
	err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &msg)
	})
	if err != nil {
		return nil, fmt.Errorf("decode message %q: %w", item.Key(), err)
	}
	return &msg, nil
}

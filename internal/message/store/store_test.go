package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/suite"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	dErrors "whisper/pkg/domain-errors"
)

type messageStore interface {
	Append(ctx context.Context, draft models.Draft) (*models.Message, error)
	ListByRecipient(ctx context.Context, recipient id.RecipientID) ([]*models.Message, error)
	ListAll(ctx context.Context) ([]*models.Message, error)
}

// StoreContractSuite runs the same expectations against every embedded backend.
type StoreContractSuite struct {
	suite.Suite
	newStore func(t *testing.T, clock Clock) messageStore
	ctx      context.Context
}

func TestInMemoryStoreContract(t *testing.T) {
	suite.Run(t, &StoreContractSuite{
		newStore: func(_ *testing.T, clock Clock) messageStore {
			return NewInMemory(WithMemoryClock(clock))
		},
	})
}

func TestBadgerStoreContract(t *testing.T) {
	suite.Run(t, &StoreContractSuite{
		newStore: func(t *testing.T, clock Clock) messageStore {
			db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
			if err != nil {
				t.Fatalf("open badger: %v", err)
			}
			s, err := NewBadger(db, WithBadgerClock(clock))
			if err != nil {
				t.Fatalf("new badger store: %v", err)
			}
			t.Cleanup(func() {
				_ = s.Close()
				_ = db.Close()
			})
			return s
		},
	})
}

func (s *StoreContractSuite) SetupTest() {
	s.ctx = context.Background()
}

func draft(recipient, text string) models.Draft {
	return models.Draft{
		RecipientID: id.RecipientID(recipient),
		Text:        text,
		Provenance:  models.Provenance{IP: "198.51.100.7", Client: "Firefox on Linux"},
	}
}

func (s *StoreContractSuite) TestAppend() {
	s.Run("assigns id, timestamp and sequence", func() {
		st := s.newStore(s.T(), time.Now)
		msg, err := st.Append(s.ctx, draft("alice", "hello"))
		s.Require().NoError(err)
		s.False(msg.ID.IsNil())
		s.False(msg.CreatedAt.IsZero())
		s.Equal(uint64(1), msg.Seq)
		s.Equal("hello", msg.Text)
		s.Equal("198.51.100.7", msg.Provenance.IP)
	})

	s.Run("fills missing provenance with unknown", func() {
		st := s.newStore(s.T(), time.Now)
		msg, err := st.Append(s.ctx, models.Draft{RecipientID: "alice", Text: "hi"})
		s.Require().NoError(err)
		s.Equal(models.UnknownProvenance(), msg.Provenance)
	})

	s.Run("rejects empty text", func() {
		st := s.newStore(s.T(), time.Now)
		_, err := st.Append(s.ctx, draft("alice", "   "))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		all, err := st.ListAll(s.ctx)
		s.Require().NoError(err)
		s.Empty(all)
	})

	s.Run("timestamps never go backwards when the clock stalls", func() {
		frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		st := s.newStore(s.T(), func() time.Time { return frozen })

		first, err := st.Append(s.ctx, draft("alice", "one"))
		s.Require().NoError(err)
		second, err := st.Append(s.ctx, draft("alice", "two"))
		s.Require().NoError(err)
		s.True(second.CreatedAt.After(first.CreatedAt))
	})
}

func (s *StoreContractSuite) TestListing() {
	s.Run("lists by recipient in arrival order", func() {
		st := s.newStore(s.T(), time.Now)
		for _, d := range []models.Draft{draft("alice", "a1"), draft("bob", "b1"), draft("alice", "a2")} {
			_, err := st.Append(s.ctx, d)
			s.Require().NoError(err)
		}

		alice, err := st.ListByRecipient(s.ctx, "alice")
		s.Require().NoError(err)
		s.Require().Len(alice, 2)
		s.Equal("a1", alice[0].Text)
		s.Equal("a2", alice[1].Text)

		none, err := st.ListByRecipient(s.ctx, "carol")
		s.Require().NoError(err)
		s.Empty(none)
	})

	s.Run("recipient prefixes do not bleed into each other", func() {
		st := s.newStore(s.T(), time.Now)
		_, err := st.Append(s.ctx, draft("al", "short"))
		s.Require().NoError(err)
		_, err = st.Append(s.ctx, draft("alice", "long"))
		s.Require().NoError(err)

		al, err := st.ListByRecipient(s.ctx, "al")
		s.Require().NoError(err)
		s.Require().Len(al, 1)
		s.Equal("short", al[0].Text)
	})

	s.Run("list all returns every message in arrival order", func() {
		st := s.newStore(s.T(), time.Now)
		for _, d := range []models.Draft{draft("alice", "1"), draft("bob", "2"), draft("ghost", "3")} {
			_, err := st.Append(s.ctx, d)
			s.Require().NoError(err)
		}
		all, err := st.ListAll(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(all, 3)
		for i, m := range all {
			s.Equal(uint64(i+1), m.Seq)
		}
	})

	s.Run("repeated reads return identical messages", func() {
		st := s.newStore(s.T(), time.Now)
		_, err := st.Append(s.ctx, draft("alice", "stable"))
		s.Require().NoError(err)

		first, err := st.ListByRecipient(s.ctx, "alice")
		s.Require().NoError(err)
		first[0].Text = "tampered"

		second, err := st.ListByRecipient(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal("stable", second[0].Text)
	})
}

func (s *StoreContractSuite) TestConcurrentAppends() {
	st := s.newStore(s.T(), time.Now)
	const writers = 20

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Append(s.ctx, draft("alice", "concurrent"))
			s.NoError(err)
		}()
	}
	wg.Wait()

	all, err := st.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, writers)
	for i := 1; i < len(all); i++ {
		s.Less(all[i-1].Seq, all[i].Seq)
		s.False(all[i].CreatedAt.Before(all[i-1].CreatedAt))
	}
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	open := func() (*badger.DB, *Badger) {
		db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
		if err != nil {
			t.Fatalf("open badger: %v", err)
		}
		st, err := NewBadger(db)
		if err != nil {
			t.Fatalf("new badger store: %v", err)
		}
		return db, st
	}

	db, st := open()
	first, err := st.Append(context.Background(), draft("alice", "before restart"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = st.Close()
	_ = db.Close()

	db, st = open()
	defer db.Close()
	defer st.Close()

	second, err := st.Append(context.Background(), draft("alice", "after restart"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if second.Seq <= first.Seq {
		t.Fatalf("expected sequence to advance across restarts, got %d then %d", first.Seq, second.Seq)
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("expected non-decreasing timestamps across restarts")
	}

	msgs, err := st.ListByRecipient(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "before restart" {
		t.Fatalf("unexpected messages after reopen: %+v", msgs)
	}
}

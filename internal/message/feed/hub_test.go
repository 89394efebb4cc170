package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper/internal/message/models"
	id "whisper/pkg/domain"
	"whisper/pkg/platform/sentinel"
)

func message(recipient, text string) *models.Message {
	return &models.Message{ID: id.NewMessageID(), RecipientID: id.RecipientID(recipient), Text: text, CreatedAt: time.Now()}
}

func receive(t *testing.T, ch <-chan *models.Message) *models.Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertClosed(t *testing.T, ch <-chan *models.Message) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "expected channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestHub_DeliversToRecipientOnly(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	bob, err := hub.Subscribe(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, message("alice", "for alice")))

	assert.Equal(t, "for alice", receive(t, alice).Text)
	select {
	case msg := <-bob:
		t.Fatalf("bob received %q", msg.Text)
	default:
	}
}

func TestHub_FansOutToEverySubscriber(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	second, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Subscribers("alice"))

	require.NoError(t, hub.Publish(ctx, message("alice", "hello")))
	assert.Equal(t, "hello", receive(t, first).Text)
	assert.Equal(t, "hello", receive(t, second).Text)
}

func TestHub_ContextCancelClosesSubscription(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	cancel()

	assertClosed(t, ch)
	assert.Eventually(t, func() bool { return hub.Subscribers("alice") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_EvictsSlowSubscriber(t *testing.T) {
	hub := NewHub(WithBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, message("alice", "one")))
	require.NoError(t, hub.Publish(ctx, message("alice", "two")))

	assert.Equal(t, "one", receive(t, ch).Text)
	assertClosed(t, ch)
	assert.Zero(t, hub.Subscribers("alice"))
}

func TestHub_DropAllKeepsHubUsable(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	hub.DropAll()
	assertClosed(t, ch)

	again, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, hub.Publish(ctx, message("alice", "after drop")))
	assert.Equal(t, "after drop", receive(t, again).Text)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	ch, err := hub.Subscribe(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, hub.Close())
	assertClosed(t, ch)

	_, err = hub.Subscribe(ctx, "alice")
	assert.ErrorIs(t, err, sentinel.ErrClosed)
	assert.ErrorIs(t, hub.Publish(ctx, message("alice", "late")), sentinel.ErrClosed)
}

func TestCodec_RoundTrip(t *testing.T) {
	msg := message("alice", "hello")
	msg.Seq = 7
	msg.Provenance = models.Provenance{IP: "192.0.2.1", Client: "Safari on iOS"}
	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Microsecond)

	data, err := encodeMessage(msg)
	require.NoError(t, err)
	decoded, err := decodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper/internal/inbox/service"
	"whisper/internal/message/feed"
	"whisper/internal/message/models"
	"whisper/internal/message/store"
	id "whisper/pkg/domain"
	"whisper/pkg/testutil"
)

type fixture struct {
	router   chi.Router
	messages *store.InMemory
	hub      *feed.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	messages := store.NewInMemory()
	hub := feed.NewHub()
	t.Cleanup(func() { _ = hub.Close() })

	svc, err := service.New(messages, hub)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), "https://whisper.example").Register(r)
	return &fixture{router: r, messages: messages, hub: hub}
}

func (f *fixture) send(t *testing.T, recipient, text string) {
	t.Helper()
	msg, err := f.messages.Append(context.Background(), models.Draft{
		RecipientID: id.RecipientID(recipient),
		Text:        text,
		Provenance:  models.UnknownProvenance(),
	})
	require.NoError(t, err)
	require.NoError(t, f.hub.Publish(context.Background(), msg))
}

func TestHandleSnapshot(t *testing.T) {
	f := newFixture(t)
	f.send(t, "alice", "first")
	f.send(t, "alice", "second")
	f.send(t, "bob", "not alice's")

	t.Run("requires an authenticated owner", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/inbox", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("returns only the owner's messages newest first", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodGet, "/inbox", nil), "alice")
		rr := testutil.DoRequest(f.router, req)
		require.Equal(t, http.StatusOK, rr.Code)

		resp := testutil.UnmarshalResponse[InboxResponse](t, rr)
		require.Len(t, resp.Messages, 2)
		assert.Equal(t, "second", resp.Messages[0].Text)
		assert.Equal(t, "first", resp.Messages[1].Text)
		assert.NotContains(t, rr.Body.String(), "sender_ip")
	})
}

// authenticateAs stands in for the auth middleware in front of the stream.
func authenticateAs(owner string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, testutil.WithUserID(r, owner))
	})
}

func dial(t *testing.T, server *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/inbox/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	})
	return conn
}

func readView(t *testing.T, conn *websocket.Conn) InboxResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var view InboxResponse
	require.NoError(t, conn.ReadJSON(&view))
	return view
}

func TestHandleStream(t *testing.T) {
	testutil.Given(t, "an owner connected to the stream", func(t *testing.T) {
		f := newFixture(t)
		f.send(t, "alice", "before connect")
		server := httptest.NewServer(authenticateAs("alice", f.router))
		t.Cleanup(server.Close)

		conn := dial(t, server, nil)

		testutil.Then(t, "the first frame is the snapshot", func(t *testing.T) {
			view := readView(t, conn)
			assert.Equal(t, "alice", view.RecipientID)
			require.Len(t, view.Messages, 1)
			assert.Equal(t, "before connect", view.Messages[0].Text)
		})

		testutil.When(t, "a message arrives", func(t *testing.T) {
			f.send(t, "alice", "live")
			view := readView(t, conn)
			require.Len(t, view.Messages, 2)
			assert.Equal(t, "live", view.Messages[0].Text)
		})

		testutil.Then(t, "closing the socket releases the subscription", func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
			assert.Eventually(t, func() bool {
				return f.hub.Subscribers("alice") == 0
			}, 2*time.Second, 10*time.Millisecond)
		})
	})

	testutil.Given(t, "a cross-site origin", func(t *testing.T) {
		f := newFixture(t)
		server := httptest.NewServer(authenticateAs("alice", f.router))
		t.Cleanup(server.Close)

		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/inbox/stream"
		header := http.Header{"Origin": []string{"https://evil.example"}}
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	testutil.Given(t, "no authenticated owner", func(t *testing.T) {
		f := newFixture(t)
		rr := testutil.DoRequest(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/inbox/stream", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})
}

func TestSameOrigin(t *testing.T) {
	const host = "whisper.example"
	assert.True(t, sameOrigin("", "https://whisper.example", host))
	assert.True(t, sameOrigin("https://whisper.example", "https://whisper.example/", host))
	assert.False(t, sameOrigin("http://whisper.example", "https://whisper.example", host))
	assert.False(t, sameOrigin("https://evil.example", "https://whisper.example", "evil.example"))

	// no configured origin: same host only
	assert.True(t, sameOrigin("https://whisper.example", "", host))
	assert.True(t, sameOrigin("http://WHISPER.example", "", host))
	assert.False(t, sameOrigin("https://evil.example", "", host))
	assert.False(t, sameOrigin("null", "", host))
}

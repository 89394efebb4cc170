package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper/internal/identity/models"
	"whisper/internal/identity/service"
	"whisper/internal/identity/store"
	"whisper/pkg/testutil"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	users := store.NewInMemory()
	require.NoError(t, users.Save(context.Background(), &models.User{
		ID: "alice", DisplayName: "Alice", AvatarURL: "https://img.example/a.png", Email: "alice@example.com",
	}))
	svc, err := service.New(users, "https://whisper.example")
	require.NoError(t, err)

	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.RegisterOwner(r)
	return r
}

func TestHandleGetProfile(t *testing.T) {
	router := newRouter(t)

	testutil.Given(t, "a registered recipient", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/u/alice", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "alice@example.com")

		resp := testutil.UnmarshalResponse[ProfileResponse](t, rr)
		assert.Equal(t, "Alice", resp.DisplayName)
	})

	testutil.Given(t, "an unknown recipient", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/u/ghost", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	testutil.Given(t, "a malformed recipient id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/u/bad%20id", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})
}

func TestHandleShareLink(t *testing.T) {
	router := newRouter(t)

	t.Run("requires an authenticated owner", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/me/share-link", nil))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("returns the owner's link", func(t *testing.T) {
		req := testutil.WithUserID(testutil.NewJSONRequest(t, http.MethodGet, "/me/share-link", nil), "alice")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rr.Code)
		resp := testutil.UnmarshalResponse[ShareLinkResponse](t, rr)
		assert.Equal(t, "https://whisper.example/u/alice", resp.URL)
	})
}

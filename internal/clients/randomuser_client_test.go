package clients_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/illmade-knight/random-user/internal/clients"
	"github.com/illmade-knight/random-user/pkg/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onePage = `{"results": [{
  "gender": "female",
  "name": {"title": "Ms", "first": "Ella", "last": "Jones"},
  "login": {"uuid": "u-1"},
  "phone": "555",
  "email": "ella@example.com",
  "picture": {"large": "https://randomuser.me/l.jpg", "medium": "https://randomuser.me/m.jpg", "thumbnail": "https://randomuser.me/t.jpg"}
}]}`

func TestRandomUserClient(t *testing.T) {
	ctx := context.Background()

	// Arrange: Create a mock HTTP server to act as the randomuser API
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "test-seed", r.URL.Query().Get("seed"))
		assert.Equal(t, "30", r.URL.Query().Get("results"))

		switch r.URL.Query().Get("page") {
		case "1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(onePage))
		case "2":
			_, _ = w.Write([]byte(`{"error": "Uh oh"}`))
		default:
			http.Error(w, "bad gateway", http.StatusBadGateway)
		}
	}))
	defer mockServer.Close()

	client := clients.NewRandomUserClient(mockServer.URL+"/", "test-seed", 0, zerolog.Nop())

	t.Run("GetUsers - Success", func(t *testing.T) {
		// Act
		list, err := client.GetUsers(ctx, 1, 30)

		// Assert
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "u-1", list[0].ID)
		assert.Equal(t, "Ms Ella Jones", list[0].DisplayName)
	})

	t.Run("GetUsers - Parse Error", func(t *testing.T) {
		_, err := client.GetUsers(ctx, 2, 30)

		require.Error(t, err)
		assert.ErrorIs(t, err, users.ErrParse)
	})

	t.Run("FetchPage - Unexpected Status", func(t *testing.T) {
		_, err := client.FetchPage(ctx, 3, 30)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("FetchPage - Cancelled Context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.FetchPage(cancelled, 1, 30)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRandomUserClient_PageURL(t *testing.T) {
	client := clients.NewRandomUserClient("https://randomuser.me", "", 0, zerolog.Nop())

	assert.Equal(t,
		"https://randomuser.me/api/?page=4&results=30&seed=lightening-market",
		client.PageURL(4, 30))
}

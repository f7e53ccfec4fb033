package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getMe", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"id": 1, "username": "kaikatsu_bot"},
		})
	}))
	defer server.Close()

	c := NewClient(Config{Token: "TOKEN", BaseURL: server.URL})
	username, err := c.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "kaikatsu_bot", username)
}

func TestClient_Send(t *testing.T) {
	t.Run("posts chat id and text", func(t *testing.T) {
		var got sendMessageRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
		}))
		defer server.Close()

		c := NewClient(Config{Token: "TOKEN", BaseURL: server.URL})
		err := c.Send(context.Background(), 42, "満席になりました")
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.ChatID)
		assert.Equal(t, "満席になりました", got.Text)
	})

	t.Run("truncates overlong text", func(t *testing.T) {
		var got sendMessageRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
		}))
		defer server.Close()

		c := NewClient(Config{Token: "TOKEN", BaseURL: server.URL})
		err := c.Send(context.Background(), 42, strings.Repeat("あ", MaxMessageLength+500))
		require.NoError(t, err)
		assert.Equal(t, MaxMessageLength, len([]rune(got.Text)))
	})

	t.Run("api error carries code and description", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"ok":          false,
				"error_code":  403,
				"description": "Forbidden: bot was blocked by the user",
			})
		}))
		defer server.Close()

		c := NewClient(Config{Token: "TOKEN", BaseURL: server.URL})
		err := c.Send(context.Background(), 42, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sendMessage failed (code 403)")
		assert.Contains(t, err.Error(), "blocked")
	})
}

func TestClient_GetUpdates(t *testing.T) {
	var got getUpdatesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getUpdates", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{"update_id": 10, "message": map[string]any{
					"message_id": 1,
					"chat":       map[string]any{"id": 42, "type": "private"},
					"text":       "/on",
				}},
				{"update_id": 11},
			},
		})
	}))
	defer server.Close()

	c := NewClient(Config{Token: "TOKEN", BaseURL: server.URL})
	updates, err := c.GetUpdates(context.Background(), 10, 50*time.Second)
	require.NoError(t, err)

	assert.Equal(t, int64(10), got.Offset)
	assert.Equal(t, 50, got.Timeout)
	assert.Equal(t, []string{"message"}, got.AllowedUpdates)

	require.Len(t, updates, 2)
	assert.Equal(t, int64(10), updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/on", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[0].Message.Chat.ID)
	assert.Nil(t, updates[1].Message)
}

func TestClient_TokenRedaction(t *testing.T) {
	// No server behind this address, so the transport error embeds the
	// request URL. The token inside it must not leak.
	c := NewClient(Config{Token: "123456:SECRET", BaseURL: "http://127.0.0.1:1"})

	err := c.Send(context.Background(), 42, "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET")
	assert.Contains(t, err.Error(), "***")
}

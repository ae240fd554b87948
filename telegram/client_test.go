package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetUpdates(t *testing.T) {
	var gotPath string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": []map[string]any{
				{
					"update_id": 100,
					"message": map[string]any{
						"message_id": 1,
						"from":       map[string]any{"id": 7, "username": "alice"},
						"chat":       map[string]any{"id": 42, "type": "private"},
						"text":       "/start",
					},
				},
			},
		})
	}))
	defer server.Close()

	client := NewClient("token123", server.URL, 30*time.Second, nil)

	updates, err := client.GetUpdates(context.Background(), 99, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "/bottoken123/getUpdates", gotPath)
	assert.EqualValues(t, 99, gotPayload["offset"])
	assert.EqualValues(t, 30, gotPayload["timeout"])

	require.Len(t, updates, 1)
	assert.EqualValues(t, 100, updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.EqualValues(t, 42, updates[0].Message.Chat.ID)
}

func TestClient_SendMessage_WithKeyboard(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	}))
	defer server.Close()

	client := NewClient("token123", server.URL, time.Second, nil)

	keyboard := SingleColumnKeyboard([]string{"Batman", "Socrates"})
	err := client.SendMessage(context.Background(), 42, "pick one", keyboard)
	require.NoError(t, err)

	assert.EqualValues(t, 42, gotPayload["chat_id"])
	assert.Equal(t, "pick one", gotPayload["text"])
	require.Contains(t, gotPayload, "reply_markup")
}

func TestClient_SendMessage_OmitsKeyboardWhenNil(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	}))
	defer server.Close()

	client := NewClient("token123", server.URL, time.Second, nil)

	require.NoError(t, client.SendMessage(context.Background(), 42, "plain", nil))
	assert.NotContains(t, gotPayload, "reply_markup")
}

func TestClient_APIErrorSurfacesDescription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"description": "Bad Request: chat not found",
			"error_code":  400,
		})
	}))
	defer server.Close()

	client := NewClient("token123", server.URL, time.Second, nil)

	err := client.SendMessage(context.Background(), 42, "hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Contains(t, err.Error(), "400")
}

func TestSingleColumnKeyboard(t *testing.T) {
	kb := SingleColumnKeyboard([]string{"A", "B", "C"})
	require.Len(t, kb.InlineKeyboard, 3)
	for i, label := range []string{"A", "B", "C"} {
		require.Len(t, kb.InlineKeyboard[i], 1)
		assert.Equal(t, label, kb.InlineKeyboard[i][0].Text)
		assert.Equal(t, label, kb.InlineKeyboard[i][0].CallbackData)
	}
}

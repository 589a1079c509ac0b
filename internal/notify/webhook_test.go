package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/notify"
)

func dueSoonNotification() notify.Notification {
	due := "2025-06-15"
	return notify.Notification{
		EventID:   "evt-1",
		EventType: domain.EventTaskDueSoon,
		UserID:    "user-1",
		TaskID:    "task-1",
		Title:     "submit report",
		DueDate:   &due,
	}
}

func TestWebhookSender_Name(t *testing.T) {
	s := notify.NewWebhookSender("http://localhost/hook")
	assert.Equal(t, "webhook", s.Name())
}

func TestWebhookSender_Send_PostsJSON(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := notify.NewWebhookSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), dueSoonNotification()))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotContentType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "task-due-soon", payload["event_type"])
	assert.Equal(t, "task-1", payload["task_id"])
	assert.Equal(t, "user-1", payload["user_id"])
	assert.Equal(t, "2025-06-15", payload["due_date"])
}

func TestWebhookSender_Send_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := notify.NewWebhookSender(srv.URL)
	err := s.Send(context.Background(), dueSoonNotification())
	require.Error(t, err, "status 500 should produce an error")
}

func TestWebhookSender_Send_ConnectionRefused(t *testing.T) {
	s := notify.NewWebhookSender("http://127.0.0.1:1/hook")
	err := s.Send(context.Background(), dueSoonNotification())
	require.Error(t, err)
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// webhookBody is the JSON document POSTed to the configured endpoint.
type webhookBody struct {
	EventID   string  `json:"event_id"`
	EventType string  `json:"event_type"`
	UserID    string  `json:"user_id"`
	TaskID    string  `json:"task_id"`
	Title     string  `json:"title"`
	DueDate   *string `json:"due_date,omitempty"`
}

// WebhookSender POSTs notifications to a fixed HTTP endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a WebhookSender targeting the given URL.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *WebhookSender) Name() string { return "webhook" }

func (s *WebhookSender) Send(ctx context.Context, n Notification) error {
	ctx, span := otel.Tracer("notifier").Start(ctx, "sender.webhook")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.url", s.url),
		attribute.String("event.type", string(n.EventType)),
	)

	body, err := json.Marshal(webhookBody{
		EventID:   n.EventID,
		EventType: string(n.EventType),
		UserID:    n.UserID,
		TaskID:    n.TaskID,
		Title:     n.Title,
		DueDate:   n.DueDate,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request failed")
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "http call failed")
		return fmt.Errorf("webhook call to %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		err := fmt.Errorf("webhook %s returned status %d", s.url, resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status code")
		return err
	}
	return nil
}

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskcycle/taskcycle/internal/domain"
	"github.com/taskcycle/taskcycle/internal/events"
	"github.com/taskcycle/taskcycle/internal/kafka"
)

// uniqueGroup returns a consumer group ID unique to this test run to avoid
// cross-test offset interference on the shared broker.
func uniqueGroup(base string) string {
	return fmt.Sprintf("%s-%d", base, time.Now().UnixNano())
}

func uniqueTopic(base string) string {
	return fmt.Sprintf("%s-%d", base, time.Now().UnixNano())
}

func TestKafka_Publisher_EnvelopeRoundTrip(t *testing.T) {
	createTopic(t, events.Topic)

	producer := kafka.NewProducer(testKafkaBrokers)
	t.Cleanup(func() { producer.Close() }) //nolint:errcheck

	bus := events.NewPublisher(producer, slog.Default())

	due := "2026-03-09"
	env := events.New(domain.EventTaskDueSoon, domain.EventData{
		TaskID:  "task-rt-1",
		UserID:  "user-1",
		Title:   "water the plants",
		DueDate: &due,
	})

	ctx := context.Background()
	bus.Publish(ctx, env)

	consumer := kafka.NewConsumer(testKafkaBrokers, events.Topic, uniqueGroup("group-envelope"), slog.Default())
	t.Cleanup(func() { consumer.Close() }) //nolint:errcheck

	received := make(chan kafka.Message, 1)
	consumerCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	go func() {
		consumer.Subscribe(consumerCtx, func(_ context.Context, m kafka.Message) error { //nolint:errcheck
			received <- m
			cancel()
			return nil
		})
	}()

	select {
	case m := <-received:
		assert.Equal(t, env.Data.TaskID, string(m.Key), "messages are keyed by task ID")

		var got domain.Envelope
		require.NoError(t, json.Unmarshal(m.Value, &got))
		assert.Equal(t, env.EventID, got.EventID)
		assert.Equal(t, domain.EventTaskDueSoon, got.EventType)
		assert.Equal(t, "user-1", got.Data.UserID)
		require.NotNil(t, got.Data.DueDate)
		assert.Equal(t, due, *got.Data.DueDate)
	case <-consumerCtx.Done():
		t.Fatal("timed out waiting for published envelope")
	}
}

// TestKafka_Consumer_OffsetNotCommittedOnError verifies the at-least-once
// delivery guarantee: when a handler returns an error the offset is not
// committed, and a new consumer in the same group receives the message again.
func TestKafka_Consumer_OffsetNotCommittedOnError(t *testing.T) {
	topic := uniqueTopic("test-no-commit")
	groupID := uniqueGroup("group-no-commit")
	createTopic(t, topic)

	producer := kafka.NewProducer(testKafkaBrokers)
	t.Cleanup(func() { producer.Close() }) //nolint:errcheck

	ctx := context.Background()
	payload := []byte(`{"test":"redelivery"}`)
	require.NoError(t, producer.Publish(ctx, topic, "key-1", payload))

	// Consumer 1: returns error → offset NOT committed.
	consumer1 := kafka.NewConsumer(testKafkaBrokers, topic, groupID, slog.Default())
	ctx1, cancel1 := context.WithTimeout(ctx, 30*time.Second)

	seen := make(chan struct{}, 1)
	go func() {
		consumer1.Subscribe(ctx1, func(_ context.Context, _ kafka.Message) error { //nolint:errcheck
			seen <- struct{}{}
			cancel1()
			return errors.New("intentional failure — do not commit offset")
		})
	}()

	select {
	case <-seen:
	case <-ctx1.Done():
		t.Fatal("consumer1 timed out waiting for message")
	}

	// Give the consumer time to finish its error-handling path before closing.
	time.Sleep(300 * time.Millisecond)
	consumer1.Close() //nolint:errcheck

	// Consumer 2 (same group): should receive the same uncommitted message.
	consumer2 := kafka.NewConsumer(testKafkaBrokers, topic, groupID, slog.Default())
	t.Cleanup(func() { consumer2.Close() }) //nolint:errcheck

	redelivered := make(chan []byte, 1)
	ctx2, cancel2 := context.WithTimeout(ctx, 30*time.Second)
	defer cancel2()

	go func() {
		consumer2.Subscribe(ctx2, func(_ context.Context, m kafka.Message) error { //nolint:errcheck
			redelivered <- m.Value
			cancel2()
			return nil
		})
	}()

	select {
	case got := <-redelivered:
		assert.Equal(t, payload, got, "message should be redelivered after non-commit")
	case <-ctx2.Done():
		t.Fatal("message was NOT redelivered — offset may have been committed unexpectedly")
	}
}

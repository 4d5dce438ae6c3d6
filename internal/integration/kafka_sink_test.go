//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/reliefops/internal/adapter/kafka"
	"github.com/couchcryptid/reliefops/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testEventsTopic = "test-change-events"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka launches a single-broker Kafka container and returns its
// bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := kafkacontainer.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		kafkacontainer.WithClusterID("test-cluster"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestChangeEventSink verifies the writer delivers change events to Kafka
// with the expected key, headers, and payload.
func TestChangeEventSink(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	writer := kafka.NewWriter([]string{broker}, testEventsTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	recordedAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	events := []domain.ChangeEvent{
		{
			ID:          "ev-1",
			RecordedAt:  recordedAt,
			Kind:        domain.EventIncidentCreated,
			Severity:    domain.IncidentHigh,
			Title:       "Incident created",
			Description: "Weather Incident: Hurricane Warning (FL)",
			EntityType:  "incident",
			EntityID:    "inc-1",
			Link:        "/incidents/inc-1",
		},
		{
			ID:         "ev-2",
			RecordedAt: recordedAt.Add(time.Minute),
			Kind:       domain.EventShelterThreshold,
			Severity:   domain.IncidentCritical,
			Title:      "Shelter crossed 95% capacity",
			EntityType: "shelter",
			EntityID:   "fema-100",
		},
	}
	require.NoError(t, writer.Publish(ctx, events...))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]domain.ChangeEvent{}
	headersByID := map[string]map[string]string{}
	for len(received) < len(events) {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from events topic")

		var ev domain.ChangeEvent
		require.NoError(t, json.Unmarshal(msg.Value, &ev))
		require.Equal(t, ev.ID, string(msg.Key), "message key is the event id")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		received[ev.ID] = ev
		headersByID[ev.ID] = headers
	}

	incident := received["ev-1"]
	assert.Equal(t, domain.EventIncidentCreated, incident.Kind)
	assert.Equal(t, "inc-1", incident.EntityID)
	assert.Equal(t, "INCIDENT_CREATED", headersByID["ev-1"]["kind"])
	assert.Equal(t, recordedAt.Format(time.RFC3339), headersByID["ev-1"]["recorded_at"])

	shelter := received["ev-2"]
	assert.Equal(t, domain.EventShelterThreshold, shelter.Kind)
	assert.Equal(t, "fema-100", shelter.EntityID)
}

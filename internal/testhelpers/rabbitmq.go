package testhelpers

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// TestRabbitMQ represents a test broker with an open connection
type TestRabbitMQ struct {
	Conn    *amqp.Connection
	URL     string
	cleanup func()
}

// Close closes the connection and terminates the container
func (r *TestRabbitMQ) Close() {
	if r.cleanup != nil {
		r.cleanup()
	}
}

// NewTestRabbitMQ starts a RabbitMQ container and connects to it
func NewTestRabbitMQ(t *testing.T) *TestRabbitMQ {
	t.Helper()

	ctx := context.Background()

	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err, "Failed to start rabbitmq container")

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get amqp url")

	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err, "Failed to connect to rabbitmq")

	cleanup := func() {
		_ = conn.Close()
		if err := rabbitmqContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return &TestRabbitMQ{
		Conn:    conn,
		URL:     amqpURL,
		cleanup: cleanup,
	}
}

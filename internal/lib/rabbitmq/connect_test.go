package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRabbitMQ(ctx context.Context, t *testing.T) string {
	if url := os.Getenv("TEST_RABBITMQ_URL"); url != "" {
		return url
	}

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3-management",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor: wait.ForListeningPort("5672/tcp").
			WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rabbitmq container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestPublishToBillingExchange(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()

	conn, err := Connect(setupRabbitMQ(ctx, t), 10, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := SetupChannel(conn)
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "checkout.#", BillingExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	event := NewEvent("checkout.session.created", map[string]string{"sessionId": "cs_test"})
	require.NoError(t, NewPublisher(ch, BillingExchange).Publish(ctx, event))

	select {
	case d := <-deliveries:
		var got Event
		require.NoError(t, json.Unmarshal(d.Body, &got))
		require.Equal(t, event.ID, got.ID)
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

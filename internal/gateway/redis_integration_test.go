package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-lottery/internal/gateway"
	"ms-lottery/internal/logger"
)

// Spins up a real Redis and verifies a buyer subscribed to their dm channel
// receives the purchased codes.
func TestPrivateDeliveryOverRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	sub := client.Subscribe(ctx, "dm:alice")
	t.Cleanup(func() { sub.Close() })

	// Wait until the subscription is established before publishing.
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	gw := gateway.New(nil, testTopics(), client, nil, &logger.Logger{})
	require.NoError(t, gw.TicketsPurchasedPrivate("alice", "Enchanted Sword", []string{"ABCD1234", "EFEF5678"}))

	select {
	case msg := <-sub.Channel():
		var payload struct {
			Item  string   `json:"item"`
			Codes []string `json:"codes"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &payload))
		assert.Equal(t, "Enchanted Sword", payload.Item)
		assert.Equal(t, []string{"ABCD1234", "EFEF5678"}, payload.Codes)
	case <-time.After(5 * time.Second):
		t.Fatal("no private delivery received")
	}
}

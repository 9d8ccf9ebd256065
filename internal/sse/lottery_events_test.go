package sse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-lottery/internal/models"
	"ms-lottery/internal/sse"
)

func TestSubscribeAndEmit(t *testing.T) {
	emitter := sse.NewLotteryEventEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := emitter.Subscribe(ctx)
	assert.Equal(t, 1, emitter.ClientCount())

	emitter.Emit(sse.LotteryUpdate{Kind: "posted", Lottery: &models.LotterySummary{ID: "lot-1"}})

	select {
	case update := <-events:
		assert.Equal(t, "posted", update.Kind)
		require.NotNil(t, update.Lottery)
		assert.Equal(t, "lot-1", update.Lottery.ID)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestContextCancelDropsClient(t *testing.T) {
	emitter := sse.NewLotteryEventEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	emitter.Subscribe(ctx)
	require.Equal(t, 1, emitter.ClientCount())

	cancel()
	assert.Eventually(t, func() bool { return emitter.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSlowClientDoesNotBlockEmit(t *testing.T) {
	emitter := sse.NewLotteryEventEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	emitter.Subscribe(ctx) // never read

	done := make(chan struct{})
	go func() {
		// Well past the channel buffer size.
		for i := 0; i < 50; i++ {
			emitter.Emit(sse.LotteryUpdate{Kind: "sold"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a slow client")
	}
}

func TestEmitReachesAllClients(t *testing.T) {
	emitter := sse.NewLotteryEventEmitter()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := emitter.Subscribe(ctx)
	second := emitter.Subscribe(ctx)
	require.Equal(t, 2, emitter.ClientCount())

	emitter.Emit(sse.LotteryUpdate{Kind: "finalized"})

	for _, ch := range []chan sse.LotteryUpdate{first, second} {
		select {
		case update := <-ch:
			assert.Equal(t, "finalized", update.Kind)
		case <-time.After(time.Second):
			t.Fatal("client missed the update")
		}
	}
}

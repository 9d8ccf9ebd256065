package sse

import (
	"context"
	"sync"

	"ms-lottery/internal/models"
)

// LotteryUpdate is pushed to connected display clients whenever public
// lottery state changes: posted, tickets sold, finalized.
type LotteryUpdate struct {
	Kind    string                 `json:"kind"` // "posted", "sold", "finalized"
	Lottery *models.LotterySummary `json:"lottery,omitempty"`
	Outcome *models.Outcome        `json:"outcome,omitempty"`
}

// LotteryEventEmitter manages SSE connections and broadcasts lottery updates
// so the public display can re-render without polling.
type LotteryEventEmitter struct {
	clients     []chan LotteryUpdate
	clientMutex sync.RWMutex
}

// NewLotteryEventEmitter creates a new SSE event emitter for lottery updates
func NewLotteryEventEmitter() *LotteryEventEmitter {
	return &LotteryEventEmitter{}
}

// Subscribe adds a display client. The client is dropped automatically when
// its context is done.
func (e *LotteryEventEmitter) Subscribe(ctx context.Context) chan LotteryUpdate {
	clientChan := make(chan LotteryUpdate, 10)

	e.clientMutex.Lock()
	e.clients = append(e.clients, clientChan)
	e.clientMutex.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.removeClient(clientChan)
	}()

	return clientChan
}

// Emit broadcasts an update to all subscribed clients.
func (e *LotteryEventEmitter) Emit(update LotteryUpdate) {
	e.clientMutex.RLock()
	clients := make([]chan LotteryUpdate, len(e.clients))
	copy(clients, e.clients)
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		// Non-blocking send to avoid slowing down emitter if client is slow
		select {
		case clientChan <- update:
			// Successfully sent
		default:
			// Channel buffer full, skip this client for now
		}
	}
}

func (e *LotteryEventEmitter) removeClient(clientChan chan LotteryUpdate) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	for i, ch := range e.clients {
		if ch == clientChan {
			e.clients = append(e.clients[:i], e.clients[i+1:]...)
			close(clientChan)
			break
		}
	}
}

// ClientCount returns the number of connected display clients
func (e *LotteryEventEmitter) ClientCount() int {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()
	return len(e.clients)
}

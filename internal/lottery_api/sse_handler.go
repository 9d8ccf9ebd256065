package lottery_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-lottery/internal/logger"
	"ms-lottery/internal/sse"
)

// SSEHandler streams lottery updates to display clients
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.LotteryEventEmitter
}

func NewSSEHandler(log *logger.Logger, emitter *sse.LotteryEventEmitter) *SSEHandler {
	return &SSEHandler{
		Logger:       log,
		EventEmitter: emitter,
	}
}

// HandleLotteryEvents handles GET /api/lottery/events
func (h *SSEHandler) HandleLotteryEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Create a context that cancels when the client disconnects
	ctx := r.Context()
	eventChan := h.EventEmitter.Subscribe(ctx)

	// Send initial connection established message
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	h.Logger.Info("SSE", "Client connected to lottery events stream")

	for {
		select {
		case update, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", "Lottery events channel closed")
				return
			}

			jsonData, err := json.Marshal(update)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize lottery update: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", update.Kind, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", "Client disconnected from lottery events stream")
			return
		}
	}
}

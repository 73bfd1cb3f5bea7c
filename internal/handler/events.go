package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"convtree/internal/events"
	"convtree/internal/handler/sse"
)

// EventSource delivers bridged workspace events. *events.WatermillBridge implements it.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan *message.Message, error)
}

// EventsHandler streams the caller's workspace events over SSE
type EventsHandler struct {
	base
	source EventSource
	config *sse.Config
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(sessions Sessions, source EventSource, config *sse.Config, logger *slog.Logger) *EventsHandler {
	if config == nil {
		config = sse.DefaultConfig()
	}
	return &EventsHandler{
		base:   base{sessions: sessions, logger: logger},
		source: source,
		config: config,
	}
}

// Stream writes every event of the caller's workspace until the client leaves
// GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	// Loading the workspace attaches its bus to the bridge
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ownerID := ws.OwnerID()
	clientID := uuid.NewString()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	messages, err := h.source.Subscribe(ctx)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	stream, err := sse.NewStream(w)
	if err != nil {
		h.logger.Error("SSE not supported by response writer", "error", err)
		h.handleError(w, r, err)
		return
	}

	h.logger.Info("SSE client connected", "owner_id", ownerID, "client_id", clientID)
	defer h.logger.Info("SSE client disconnected", "owner_id", ownerID, "client_id", clientID)

	keepAlive := sse.NewTickerKeepAlive(h.config.KeepAliveInterval)
	pingerDone := keepAlive.Start(stream, h.logger)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingerDone:
			// A failed ping means the client is gone
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := h.forward(stream, ownerID, msg); err != nil {
				h.logger.Debug("SSE write failed", "client_id", clientID, "error", err)
				return
			}
		}
	}
}

// forward acks msg and writes it when it belongs to ownerID. The ack comes
// first so publishers never wait on this client's socket.
func (h *EventsHandler) forward(stream *sse.Stream, ownerID string, msg *message.Message) error {
	msg.Ack()

	if msg.Metadata.Get("owner_id") != ownerID {
		return nil
	}
	env, err := events.DecodeEnvelope(msg)
	if err != nil {
		h.logger.Warn("dropping malformed event", "message_id", msg.UUID, "error", err)
		return nil
	}
	return stream.WriteEvent(msg.UUID, env.Topic, env.Payload)
}

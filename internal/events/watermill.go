package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillTopic carries every workspace's events
const WatermillTopic = "convtree.events"

// Envelope is the wire form of a bus event on the watermill topic
type Envelope struct {
	Topic     string          `json:"topic"`
	OwnerID   string          `json:"owner_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// WatermillBridge mirrors workspace buses onto a gochannel pub/sub so that
// long-lived consumers (the SSE stream) can subscribe without holding a
// workspace lock.
//
// Publish waits for every subscriber to ack, which keeps each subscriber's
// stream in publish order. Subscribers ack on receipt, before any slow
// write, so a lagging client delays publishers by one channel handoff.
type WatermillBridge struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

// NewWatermillBridge creates the bridge and its in-process pub/sub
func NewWatermillBridge(logger *slog.Logger) *WatermillBridge {
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, NewWatermillLogger(logger))

	return &WatermillBridge{pubsub: pubsub, logger: logger}
}

// Attach forwards every event on bus, tagged with ownerID. The returned func detaches.
func (b *WatermillBridge) Attach(ownerID string, bus *Bus) (detach func()) {
	return bus.SubscribeAll(func(topic string, payload any) {
		if err := b.forward(ownerID, topic, payload); err != nil {
			b.logger.Warn("failed to forward event", "topic", topic, "owner_id", ownerID, "error", err)
		}
	})
}

func (b *WatermillBridge) forward(ownerID, topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	data, err := json.Marshal(Envelope{
		Topic:     topic,
		OwnerID:   ownerID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("owner_id", ownerID)
	msg.Metadata.Set("topic", topic)
	return b.pubsub.Publish(WatermillTopic, msg)
}

// Subscribe returns a channel of messages that closes when ctx ends.
// Consumers must Ack every message promptly; publishers wait on it.
func (b *WatermillBridge) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, WatermillTopic)
}

// Close shuts the pub/sub down, closing every subscriber channel
func (b *WatermillBridge) Close() error {
	return b.pubsub.Close()
}

// DecodeEnvelope parses a bridged message
func DecodeEnvelope(msg *message.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// WatermillSlogAdapter routes watermill's logs into slog
type WatermillSlogAdapter struct {
	logger *slog.Logger
}

// NewWatermillLogger wraps logger for watermill
func NewWatermillLogger(logger *slog.Logger) *WatermillSlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WatermillSlogAdapter{logger: logger.With("component", "watermill")}
}

func (w *WatermillSlogAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.logger.Error(msg, append(attrs(fields), "error", err)...)
}

func (w *WatermillSlogAdapter) Info(msg string, fields watermill.LogFields) {
	// watermill is chatty at info
	w.logger.Debug(msg, attrs(fields)...)
}

func (w *WatermillSlogAdapter) Debug(msg string, fields watermill.LogFields) {
	w.logger.Debug(msg, attrs(fields)...)
}

func (w *WatermillSlogAdapter) Trace(msg string, fields watermill.LogFields) {
	w.logger.Log(context.Background(), slog.LevelDebug-4, msg, attrs(fields)...)
}

func (w *WatermillSlogAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillSlogAdapter{logger: w.logger.With(attrs(fields)...)}
}

var _ watermill.LoggerAdapter = &WatermillSlogAdapter{}

func attrs(fields watermill.LogFields) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

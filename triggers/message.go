package triggers

import (
	"context"
	"log/slog"
	"time"

	"github.com/zoobzio/hookz"

	"github.com/zoobzio/chainz"
)

// Message is the unit the bus delivers: a payload published to a topic.
type Message struct {
	Timestamp time.Time
	Payload   any
	Topic     string
}

// Bus is an in-process publish/subscribe broker that runs a chain per
// delivered message. Delivery is asynchronous: Publish returns once the
// message is queued, and subscribed chains run on their own goroutines.
//
// The bus is single-process by contract; it is the wiring for chains that
// react to each other, not a durable queue.
type Bus struct {
	hooks *hookz.Hooks[Message]
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{hooks: hookz.New[Message]()}
}

// Subscribe runs the chain for every message published to topic. The message
// becomes a message context carrying the topic and payload. Failed results
// are logged at warn level; a nil logger falls back to slog.Default().
func (b *Bus) Subscribe(topic string, chain Runner, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := b.hooks.Hook(hookz.Key(topic), func(ctx context.Context, msg Message) error {
		result := chain.Run(ctx, chainz.NewMessageContext(msg.Topic, msg.Payload))
		if result.Failed() {
			logger.Warn("message chain failed",
				slog.String("chain", chain.Name()),
				slog.String("topic", msg.Topic),
				slog.String("error", result.Err().Error()))
		}
		return nil
	})
	return err
}

// Publish delivers payload to every chain subscribed to topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	return b.hooks.Emit(ctx, hookz.Key(topic), Message{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// Close shuts down the bus. Messages published after Close are not
// delivered.
func (b *Bus) Close() error {
	b.hooks.Close()
	return nil
}

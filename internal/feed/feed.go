// Package feed carries message-created events between the store write path
// and live conversation views over NATS.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/neuropayx/parley/internal/chat"
)

// MessageSubject returns the per-conversation subject new-message events are
// published on.
func MessageSubject(conversationID string) string {
	return fmt.Sprintf("parley.conversation.%s.message", conversationID)
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

// PublishMessage announces a newly stored message on its conversation subject.
func (c *Client) PublishMessage(m chat.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.conn.Publish(MessageSubject(m.ConversationID.String()), payload)
}

// Subscribe attaches a handler to one conversation's new-message events and
// returns a cancellable handle. Malformed payloads are dropped at the
// boundary. The returned Subscription must be cancelled when the owning view
// closes, or the connection leaks.
func (c *Client) Subscribe(conversationID string, handler func(chat.Message)) (*Subscription, error) {
	subject := MessageSubject(conversationID)
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		m, err := chat.DecodeMessage(msg.Data)
		if err != nil {
			c.logger.Warn("dropping malformed feed event", "subject", msg.Subject, "error", err)
			return
		}
		handler(m)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.logger.Debug("subscribed", "subject", subject)
	return &Subscription{sub: sub}, nil
}

func (c *Client) Close() {
	c.conn.Close()
}

// Subscription is a live attachment to one conversation's event stream.
type Subscription struct {
	sub *nats.Subscription
}

// Cancel tears the subscription down. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
		s.sub = nil
	}
}

package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConversationKind distinguishes the three conversation flavors sharing one
// message log shape.
type ConversationKind string

const (
	KindSupport   ConversationKind = "support"
	KindCommunity ConversationKind = "community"
	KindDirect    ConversationKind = "direct"
)

// SenderType tags message authorship for support sessions, where one side is
// an anonymous visitor rather than an account.
type SenderType string

const (
	SenderUser    SenderType = "user"
	SenderVisitor SenderType = "visitor"
	SenderAgent   SenderType = "agent"
)

// Conversation is an opaque identifier scoping a message log. Once created it
// is immutable and is the sole join key for its messages.
type Conversation struct {
	ID        uuid.UUID        `json:"id"`
	Kind      ConversationKind `json:"kind"`
	CreatedAt time.Time        `json:"created_at"`
}

// Message is an immutable log entry in a conversation. The id and creation
// timestamp are assigned by the store on insert.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	SenderType     SenderType `json:"sender_type"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
}

var (
	ErrEmptyBody     = errors.New("message body is empty")
	ErrMissingID     = errors.New("message id is missing")
	ErrMissingConvID = errors.New("conversation id is missing")
	ErrMissingSender = errors.New("sender is missing")
	ErrZeroTimestamp = errors.New("created_at is missing")
)

// Validate checks that all non-optional fields carry usable values. Records
// arriving from the change feed or the store boundary must pass before they
// reach a log.
func (m Message) Validate() error {
	if m.ID == uuid.Nil {
		return ErrMissingID
	}
	if m.ConversationID == uuid.Nil {
		return ErrMissingConvID
	}
	if m.SenderID == "" {
		return ErrMissingSender
	}
	if strings.TrimSpace(m.Body) == "" {
		return ErrEmptyBody
	}
	if m.CreatedAt.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// Before reports whether m sorts ahead of other in display order. Creation
// timestamps order the log; the id breaks ties so ordering is total.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}

// DecodeMessage parses and validates a feed payload. Malformed records are
// rejected at the boundary rather than propagated into views.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, fmt.Errorf("invalid message: %w", err)
	}
	return m, nil
}

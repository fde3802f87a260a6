package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/neuropayx/parley/internal/chat"
	"github.com/neuropayx/parley/internal/store"
)

var (
	// ErrResolve is the generic "could not start conversation" condition.
	// Callers must not assume partial success when they see it.
	ErrResolve = errors.New("could not start conversation")

	ErrUnknownCommunity = errors.New("community does not exist")
	ErrMissingName      = errors.New("visitor name is required")
)

// Store is the data-layer surface the resolver needs.
type Store interface {
	GetOrCreateDirectConversation(ctx context.Context, consultantID, userID uuid.UUID) (uuid.UUID, error)
	CreateSupportSession(ctx context.Context, visitorID uuid.UUID, name, email string) (*store.SupportSession, error)
	InsertMessage(ctx context.Context, conversationID uuid.UUID, senderID string, senderType chat.SenderType, body string) (chat.Message, error)
	CommunityExists(ctx context.Context, communityID uuid.UUID) (bool, error)
}

// Publisher announces stored messages on the change feed.
type Publisher interface {
	PublishMessage(m chat.Message) error
}

// Resolver maps (caller, target) to a conversation id for the three
// conversation flavors.
type Resolver struct {
	store  Store
	feed   Publisher
	logger *slog.Logger
}

func NewResolver(s Store, f Publisher, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, feed: f, logger: logger}
}

// Direct resolves the conversation for a consultant<->user pair, creating it
// on first contact. The same pair always converges on the same id.
func (r *Resolver) Direct(ctx context.Context, consultantID, userID uuid.UUID) (uuid.UUID, error) {
	if consultantID == uuid.Nil || userID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: consultant and user are required", ErrResolve)
	}
	id, err := r.store.GetOrCreateDirectConversation(ctx, consultantID, userID)
	if err != nil {
		r.logger.Error("direct conversation resolve failed", "consultant", consultantID, "user", userID, "error", err)
		return uuid.Nil, fmt.Errorf("%w: %v", ErrResolve, err)
	}
	return id, nil
}

// StartSupport opens a new support session for a visitor and seeds it with
// the agent welcome message. The session id is the conversation id.
func (r *Resolver) StartSupport(ctx context.Context, visitorID uuid.UUID, name, email string) (*store.SupportSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrMissingName
	}
	if visitorID == uuid.Nil {
		return nil, fmt.Errorf("%w: visitor id is required", ErrResolve)
	}

	sess, err := r.store.CreateSupportSession(ctx, visitorID, name, strings.TrimSpace(email))
	if err != nil {
		r.logger.Error("support session create failed", "visitor", visitorID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrResolve, err)
	}

	welcome := fmt.Sprintf("Hello %s! Welcome to our support chat. An agent will be with you shortly.", name)
	msg, err := r.store.InsertMessage(ctx, sess.ID, "system", chat.SenderAgent, welcome)
	if err != nil {
		// The session itself is usable; the greeting is best-effort.
		r.logger.Warn("welcome message write failed", "session", sess.ID, "error", err)
		return sess, nil
	}
	if err := r.feed.PublishMessage(msg); err != nil {
		r.logger.Warn("welcome message publish failed", "session", sess.ID, "error", err)
	}
	return sess, nil
}

// Community resolves a community chat target. There is no creation step: the
// community id is the conversation id, and existence is the only precondition
// checked here. Membership gates posting, not resolving.
func (r *Resolver) Community(ctx context.Context, communityID uuid.UUID) (uuid.UUID, error) {
	exists, err := r.store.CommunityExists(ctx, communityID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrResolve, err)
	}
	if !exists {
		return uuid.Nil, ErrUnknownCommunity
	}
	return communityID, nil
}

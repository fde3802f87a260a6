// Package view implements the per-conversation synchronization pattern shared
// by support chat, community chat and direct consultant conversations: resolve
// a conversation id, load the backlog, attach a live subscription, and keep an
// ordered deduplicated log for rendering.
package view

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/neuropayx/parley/internal/chat"
)

// State is the lifecycle of one conversation view. A fresh mount starts a new
// View; nothing leaves StateClosed.
type State string

const (
	StateUnresolved     State = "unresolved"
	StateResolving      State = "resolving"
	StateFailed         State = "failed"
	StateLoadingHistory State = "loading_history"
	StateSynced         State = "synced"
	StateClosed         State = "closed"
)

var (
	ErrClosed       = errors.New("view is closed")
	ErrNotOpen      = errors.New("view is not open")
	ErrAlreadyOpen  = errors.New("view already opened")
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a send is already in flight")
)

// Resolver yields the durable conversation id for this view's target.
type Resolver interface {
	Resolve(ctx context.Context) (uuid.UUID, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (uuid.UUID, error)

func (f ResolverFunc) Resolve(ctx context.Context) (uuid.UUID, error) { return f(ctx) }

// History is the one-shot backlog fetch, oldest first.
type History interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error)
}

// Subscription is a cancellable attachment to a conversation's live events.
type Subscription interface {
	Cancel()
}

// Feed attaches a handler to new-message events for one conversation.
type Feed interface {
	Subscribe(conversationID string, handler func(chat.Message)) (Subscription, error)
}

// Sender performs the authoritative message write.
type Sender interface {
	Send(ctx context.Context, conversationID uuid.UUID, body string) (chat.Message, error)
}

// View owns the message log for one conversation from open to close. All
// mutation goes through the idempotent ordered merge, so backlog and live
// delivery can overlap or arrive out of order without corrupting the log.
type View struct {
	resolver     Resolver
	history      History
	feed         Feed
	sender       Sender
	selfID       string
	historyLimit int
	logger       *slog.Logger

	mu         sync.Mutex
	state      State
	convID     uuid.UUID
	log        *chat.Log
	sub        Subscription
	draft      string
	sending    bool
	historyErr error

	events chan chat.Message
	done   chan struct{}
	wg     sync.WaitGroup
}

// Options carries the collaborators a View needs. SelfID marks which messages
// render as the caller's own.
type Options struct {
	Resolver     Resolver
	History      History
	Feed         Feed
	Sender       Sender
	SelfID       string
	HistoryLimit int
	Logger       *slog.Logger
}

func New(opts Options) *View {
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 200
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &View{
		resolver:     opts.Resolver,
		history:      opts.History,
		feed:         opts.Feed,
		sender:       opts.Sender,
		selfID:       opts.SelfID,
		historyLimit: limit,
		logger:       logger,
		state:        StateUnresolved,
		log:          chat.NewLog(),
		events:       make(chan chat.Message, 64),
		done:         make(chan struct{}),
	}
}

// Open resolves the conversation, attaches the live subscription, loads the
// backlog and starts merging. A resolution failure leaves the view Failed and
// is returned; a history failure is recorded but the subscription stays live
// so new messages still arrive.
func (v *View) Open(ctx context.Context) error {
	v.mu.Lock()
	if v.state != StateUnresolved {
		state := v.state
		v.mu.Unlock()
		if state == StateClosed {
			return ErrClosed
		}
		return ErrAlreadyOpen
	}
	v.state = StateResolving
	v.mu.Unlock()

	convID, err := v.resolver.Resolve(ctx)
	if err != nil {
		v.mu.Lock()
		if v.state != StateClosed {
			v.state = StateFailed
		}
		v.mu.Unlock()
		return fmt.Errorf("resolve conversation: %w", err)
	}

	// Attach before loading history so no event falls between the backlog
	// snapshot and the live feed. The merge dedup absorbs the overlap.
	sub, err := v.feed.Subscribe(convID.String(), v.deliver)
	if err != nil {
		v.mu.Lock()
		if v.state != StateClosed {
			v.state = StateFailed
		}
		v.mu.Unlock()
		return fmt.Errorf("attach subscription: %w", err)
	}

	v.mu.Lock()
	if v.state == StateClosed {
		// Closed while resolving; undo the attach.
		v.mu.Unlock()
		sub.Cancel()
		return ErrClosed
	}
	v.convID = convID
	v.sub = sub
	v.state = StateLoadingHistory
	v.mu.Unlock()

	backlog, err := v.history.ListMessages(ctx, convID, v.historyLimit)

	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		// Degraded but live: the log starts empty and fills from the feed.
		v.historyErr = err
		v.logger.Warn("history load failed", "conversation", convID, "error", err)
	} else {
		v.log.MergeAll(backlog)
	}
	v.state = StateSynced
	v.wg.Add(1)
	v.mu.Unlock()

	go v.run()
	return nil
}

// deliver is the feed callback. It hands the event to the run loop; a full
// queue drops the event, which a later history refetch can recover.
func (v *View) deliver(m chat.Message) {
	select {
	case <-v.done:
	case v.events <- m:
	default:
		v.logger.Warn("event queue full, dropping message", "message", m.ID)
	}
}

func (v *View) run() {
	defer v.wg.Done()
	for {
		select {
		case <-v.done:
			return
		case m := <-v.events:
			v.merge(m)
		}
	}
}

func (v *View) merge(m chat.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == StateClosed {
		return
	}
	if m.ConversationID != v.convID {
		v.logger.Warn("dropping cross-conversation event", "got", m.ConversationID, "want", v.convID)
		return
	}
	v.log.Merge(m)
}

// Close tears the view down. The subscription is cancelled synchronously;
// events delivered afterwards never mutate the log.
func (v *View) Close() {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return
	}
	wasRunning := v.state == StateSynced
	v.state = StateClosed
	sub := v.sub
	v.sub = nil
	v.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	close(v.done)
	if wasRunning {
		v.wg.Wait()
	}
}

// State returns the current lifecycle state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// ConversationID returns the resolved conversation id, or uuid.Nil before
// resolution completes.
func (v *View) ConversationID() uuid.UUID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.convID
}

// HistoryErr reports whether the backlog fetch failed on open. The view stays
// usable; callers surface this as a degraded-state notice.
func (v *View) HistoryErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.historyErr
}

// Messages returns the merged log in display order.
func (v *View) Messages() []chat.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.log.Messages()
}

package view

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SetDraft replaces the composer's pending input text.
func (v *View) SetDraft(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = text
}

// Draft returns the composer's pending input text.
func (v *View) Draft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

// Submit sends the current draft. Empty or whitespace-only drafts, an
// unresolved conversation, and an in-flight send are all rejected before any
// network call. The draft clears optimistically and is restored if the write
// fails. The log is never touched here: the authoritative copy arrives
// through the live subscription.
func (v *View) Submit(ctx context.Context) error {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.convID == uuid.Nil {
		v.mu.Unlock()
		return ErrNotOpen
	}
	body := strings.TrimSpace(v.draft)
	if body == "" {
		v.mu.Unlock()
		return ErrEmptyMessage
	}
	if v.sending {
		v.mu.Unlock()
		return ErrSendInFlight
	}
	v.sending = true
	v.draft = ""
	conv := v.convID
	v.mu.Unlock()

	_, err := v.sender.Send(ctx, conv, body)

	v.mu.Lock()
	v.sending = false
	if err != nil {
		// Restore the text so the user can retry, unless they typed meanwhile.
		if v.draft == "" {
			v.draft = body
		}
		v.mu.Unlock()
		return fmt.Errorf("send message: %w", err)
	}
	v.mu.Unlock()
	return nil
}

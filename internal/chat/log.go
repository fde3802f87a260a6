package chat

import (
	"sort"

	"github.com/google/uuid"
)

// Log is the in-memory ordered message log for one conversation. Merge is
// idempotent by message id and inserts at the sorted position, so history
// backfill and live delivery can overlap in any order without losing or
// duplicating entries. Log is not safe for concurrent use; the owning view
// serializes access.
type Log struct {
	msgs []Message
	seen map[uuid.UUID]struct{}
}

func NewLog() *Log {
	return &Log{seen: make(map[uuid.UUID]struct{})}
}

// Merge adds m to the log unless a message with the same id is already
// present. Returns true if the log changed.
func (l *Log) Merge(m Message) bool {
	if _, ok := l.seen[m.ID]; ok {
		return false
	}
	l.seen[m.ID] = struct{}{}

	// Common case: the feed delivers in commit order, so m belongs at the end.
	if n := len(l.msgs); n == 0 || l.msgs[n-1].Before(m) {
		l.msgs = append(l.msgs, m)
		return true
	}

	i := sort.Search(len(l.msgs), func(i int) bool {
		return m.Before(l.msgs[i])
	})
	l.msgs = append(l.msgs, Message{})
	copy(l.msgs[i+1:], l.msgs[i:])
	l.msgs[i] = m
	return true
}

// MergeAll merges a batch, typically the history backlog. Returns how many
// entries were new.
func (l *Log) MergeAll(msgs []Message) int {
	added := 0
	for _, m := range msgs {
		if l.Merge(m) {
			added++
		}
	}
	return added
}

// Messages returns a copy of the log in display order.
func (l *Log) Messages() []Message {
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

func (l *Log) Len() int {
	return len(l.msgs)
}

package view

import (
	"github.com/neuropayx/parley/internal/chat"
)

// Rendered is one display-ready log entry. It is derived from the underlying
// Message without mutating it.
type Rendered struct {
	Message   chat.Message
	Own       bool
	Author    string
	AvatarURL string
	Timestamp string
}

// AuthorInfo supplies display attributes for a sender id. Missing entries
// render with an empty author.
type AuthorInfo struct {
	Name      string
	AvatarURL string
}

const displayTimeLayout = "3:04 PM"

// Present renders a message slice for display: own-vs-other marking by sender
// id, formatted timestamps, author decoration from the directory. The input
// slice is read, never changed.
func Present(msgs []chat.Message, selfID string, authors map[string]AuthorInfo) []Rendered {
	out := make([]Rendered, 0, len(msgs))
	for _, m := range msgs {
		r := Rendered{
			Message:   m,
			Own:       m.SenderID == selfID,
			Timestamp: m.CreatedAt.Format(displayTimeLayout),
		}
		if info, ok := authors[m.SenderID]; ok {
			r.Author = info.Name
			r.AvatarURL = info.AvatarURL
		}
		out = append(out, r)
	}
	return out
}

// Render presents the view's current log.
func (v *View) Render(authors map[string]AuthorInfo) []Rendered {
	return Present(v.Messages(), v.selfID, authors)
}

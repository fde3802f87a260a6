package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/neuropayx/parley/internal/chat"
	"github.com/neuropayx/parley/internal/session"
	"github.com/neuropayx/parley/internal/view"
)

type resolveDirectRequest struct {
	ConsultantID string `json:"consultant_id"`
	UserID       string `json:"user_id"`
}

// resolveDirect handles POST /api/v1/conversations/direct. Repeated calls for
// the same pair return the same conversation id.
func (s *Server) resolveDirect(w http.ResponseWriter, r *http.Request) {
	var req resolveDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	consultantID, err := uuid.Parse(req.ConsultantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid consultant_id")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	convID, err := s.resolver.Direct(r.Context(), consultantID, userID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not start conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": convID.String()})
}

type resolveCommunityRequest struct {
	CommunityID string `json:"community_id"`
}

// resolveCommunity handles POST /api/v1/conversations/community. The
// community id doubles as the conversation id; resolving only confirms the
// community exists. Membership gates posting, not resolving.
func (s *Server) resolveCommunity(w http.ResponseWriter, r *http.Request) {
	var req resolveCommunityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	communityID, err := uuid.Parse(req.CommunityID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid community_id")
		return
	}

	convID, err := s.resolver.Community(r.Context(), communityID)
	if err != nil {
		if errors.Is(err, session.ErrUnknownCommunity) {
			writeError(w, http.StatusNotFound, "community does not exist")
			return
		}
		writeError(w, http.StatusBadGateway, "could not start conversation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation_id": convID.String()})
}

type conversationPayload struct {
	ID           string `json:"id"`
	ConsultantID string `json:"consultant_id"`
	UserID       string `json:"user_id"`
	CreatedAt    string `json:"created_at"`
}

// listUserConversations handles GET /api/v1/users/{id}/conversations: the
// direct conversations the user participates in, most recent first.
func (s *Server) listUserConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	convs, err := s.store.ListUserConversations(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load conversations")
		return
	}

	payload := make([]conversationPayload, 0, len(convs))
	for _, c := range convs {
		payload = append(payload, conversationPayload{
			ID:           c.ID.String(),
			ConsultantID: c.ConsultantID.String(),
			UserID:       c.UserID.String(),
			CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": payload})
}

type messagePayload struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	SenderType     string `json:"sender_type"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
	Own            bool   `json:"own"`
	Author         string `json:"author,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
}

func toPayload(r view.Rendered) messagePayload {
	return messagePayload{
		ID:             r.Message.ID.String(),
		ConversationID: r.Message.ConversationID.String(),
		SenderID:       r.Message.SenderID,
		SenderType:     string(r.Message.SenderType),
		Body:           r.Message.Body,
		CreatedAt:      r.Message.CreatedAt.UTC().Format(time.RFC3339Nano),
		Own:            r.Own,
		Author:         r.Author,
		AvatarURL:      r.AvatarURL,
	}
}

// listMessages handles GET /api/v1/conversations/{id}/messages. The backlog
// comes back oldest first, decorated with author profiles. An empty
// conversation is a 200 with an empty list, not an error.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), convID, s.historyLimit)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not load messages")
		return
	}

	authors := s.authorDirectory(r, msgs)
	selfID := r.URL.Query().Get("self")
	rendered := view.Present(msgs, selfID, authors)

	payload := make([]messagePayload, 0, len(rendered))
	for _, m := range rendered {
		payload = append(payload, toPayload(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": payload})
}

// authorDirectory batch-fetches profiles for every distinct user sender in
// msgs. Senders without a profile (visitors, system) are left undecorated.
func (s *Server) authorDirectory(r *http.Request, msgs []chat.Message) map[string]view.AuthorInfo {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, m := range msgs {
		id, err := uuid.Parse(m.SenderID)
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	authors := make(map[string]view.AuthorInfo)
	profiles, err := s.store.GetProfiles(r.Context(), ids)
	if err != nil {
		s.logger.Warn("profile fetch failed, rendering without authors", "error", err)
		return authors
	}
	for id, p := range profiles {
		name := strings.TrimSpace(p.FirstName + " " + p.LastName)
		authors[id.String()] = view.AuthorInfo{Name: name, AvatarURL: p.AvatarURL}
	}
	return authors
}

type sendMessageRequest struct {
	SenderID   string `json:"sender_id"`
	SenderType string `json:"sender_type"`
	Body       string `json:"body"`
}

// sendMessage handles POST /api/v1/conversations/{id}/messages: validate,
// write, announce on the feed. Community conversations additionally require
// the sender to be a member.
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" {
		writeError(w, http.StatusBadRequest, "message body is empty")
		return
	}
	if req.SenderID == "" {
		writeError(w, http.StatusBadRequest, "sender_id is required")
		return
	}
	senderType := chat.SenderType(req.SenderType)
	switch senderType {
	case chat.SenderUser, chat.SenderVisitor, chat.SenderAgent:
	default:
		writeError(w, http.StatusBadRequest, "invalid sender_type")
		return
	}

	// A community's conversation id is the community id itself; posting there
	// is members-only.
	isCommunity, err := s.store.CommunityExists(r.Context(), convID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not send message")
		return
	}
	if isCommunity {
		senderUUID, err := uuid.Parse(req.SenderID)
		if err != nil {
			writeError(w, http.StatusForbidden, "not a community member")
			return
		}
		member, err := s.store.IsCommunityMember(r.Context(), convID, senderUUID)
		if err != nil {
			writeError(w, http.StatusBadGateway, "could not send message")
			return
		}
		if !member {
			writeError(w, http.StatusForbidden, "not a community member")
			return
		}
	}

	msg, err := s.store.InsertMessage(r.Context(), convID, req.SenderID, senderType, body)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not send message")
		return
	}
	if err := s.feed.PublishMessage(msg); err != nil {
		// The write is durable; subscribers recover the gap on next history
		// fetch.
		s.logger.Warn("feed publish failed", "message", msg.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, toPayload(view.Rendered{
		Message: msg,
		Own:     true,
	}))
}

type startSupportRequest struct {
	ClientKey    string `json:"client_key"`
	VisitorName  string `json:"visitor_name"`
	VisitorEmail string `json:"visitor_email"`
}

// startSupportSession handles POST /api/v1/support/sessions. The client key
// identifies the installation; the registry maps it to a stable visitor id.
func (s *Server) startSupportSession(w http.ResponseWriter, r *http.Request) {
	var req startSupportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ClientKey == "" {
		writeError(w, http.StatusBadRequest, "client_key is required")
		return
	}

	visitorID, err := s.visitors.EnsureVisitor(r.Context(), req.ClientKey)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not start conversation")
		return
	}

	sess, err := s.resolver.StartSupport(r.Context(), visitorID, req.VisitorName, req.VisitorEmail)
	if err != nil {
		if errors.Is(err, session.ErrMissingName) {
			writeError(w, http.StatusBadRequest, "visitor_name is required")
			return
		}
		writeError(w, http.StatusBadGateway, "could not start conversation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": sess.ID.String(),
		"visitor_id": sess.VisitorID.String(),
	})
}

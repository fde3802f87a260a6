package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/neuropayx/parley/internal/chat"
	"github.com/neuropayx/parley/internal/mailer"
	"github.com/neuropayx/parley/internal/session"
	"github.com/neuropayx/parley/internal/store"
)

type fakeStore struct {
	messages      map[uuid.UUID][]chat.Message
	listErr       error
	insertErr     error
	communities   map[uuid.UUID]bool
	members       map[uuid.UUID]map[uuid.UUID]bool
	profiles      map[uuid.UUID]store.Profile
	conversations map[uuid.UUID][]store.DirectConversation
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages:      make(map[uuid.UUID][]chat.Message),
		communities:   make(map[uuid.UUID]bool),
		members:       make(map[uuid.UUID]map[uuid.UUID]bool),
		profiles:      make(map[uuid.UUID]store.Profile),
		conversations: make(map[uuid.UUID][]store.DirectConversation),
	}
}

func (f *fakeStore) ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages[conversationID], nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, conversationID uuid.UUID, senderID string, senderType chat.SenderType, body string) (chat.Message, error) {
	if f.insertErr != nil {
		return chat.Message{}, f.insertErr
	}
	m := chat.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderType:     senderType,
		Body:           body,
		CreatedAt:      time.Now(),
	}
	f.messages[conversationID] = append(f.messages[conversationID], m)
	return m, nil
}

func (f *fakeStore) CommunityExists(ctx context.Context, communityID uuid.UUID) (bool, error) {
	return f.communities[communityID], nil
}

func (f *fakeStore) IsCommunityMember(ctx context.Context, communityID, userID uuid.UUID) (bool, error) {
	return f.members[communityID][userID], nil
}

func (f *fakeStore) GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]store.Profile, error) {
	out := make(map[uuid.UUID]store.Profile)
	for _, id := range userIDs {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserConversations(ctx context.Context, userID uuid.UUID) ([]store.DirectConversation, error) {
	return f.conversations[userID], nil
}

type fakeResolver struct {
	directID     uuid.UUID
	directErr    error
	supportErr   error
	communityErr error
}

func (f *fakeResolver) Direct(ctx context.Context, consultantID, userID uuid.UUID) (uuid.UUID, error) {
	if f.directErr != nil {
		return uuid.Nil, f.directErr
	}
	return f.directID, nil
}

func (f *fakeResolver) StartSupport(ctx context.Context, visitorID uuid.UUID, name, email string) (*store.SupportSession, error) {
	if f.supportErr != nil {
		return nil, f.supportErr
	}
	return &store.SupportSession{ID: uuid.New(), VisitorID: visitorID, VisitorName: name}, nil
}

func (f *fakeResolver) Community(ctx context.Context, communityID uuid.UUID) (uuid.UUID, error) {
	if f.communityErr != nil {
		return uuid.Nil, f.communityErr
	}
	return communityID, nil
}

type fakeRegistry struct {
	id uuid.UUID
}

func (f *fakeRegistry) EnsureVisitor(ctx context.Context, clientKey string) (uuid.UUID, error) {
	if f.id == uuid.Nil {
		f.id = uuid.New()
	}
	return f.id, nil
}

type fakeSub struct{}

func (fakeSub) Cancel() {}

type fakePublisher struct {
	published []chat.Message
}

func (f *fakePublisher) PublishMessage(m chat.Message) error {
	f.published = append(f.published, m)
	return nil
}

func (f *fakePublisher) Subscribe(conversationID string, handler func(chat.Message)) (Subscription, error) {
	return fakeSub{}, nil
}

func testServer(fs *fakeStore, fr *fakeResolver, fp *fakePublisher) *Server {
	m := mailer.New(mailer.Config{}, slog.Default())
	return NewServer(8760, fs, fr, &fakeRegistry{}, fp, m, 200, slog.Default())
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/api/v1/parley/status", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["service"] != "parley" {
		t.Errorf("expected service parley, got %q", body["service"])
	}
}

func TestResolveDirect(t *testing.T) {
	convID := uuid.New()
	srv := testServer(newFakeStore(), &fakeResolver{directID: convID}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/conversations/direct", map[string]string{
		"consultant_id": uuid.NewString(),
		"user_id":       uuid.NewString(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["conversation_id"] != convID.String() {
		t.Errorf("expected %s, got %q", convID, body["conversation_id"])
	}
}

func TestResolveDirectRejectsBadIDs(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/conversations/direct", map[string]string{
		"consultant_id": "not-a-uuid",
		"user_id":       uuid.NewString(),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestResolveDirectSurfacesResolverFailure(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{directErr: session.ErrResolve}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/conversations/direct", map[string]string{
		"consultant_id": uuid.NewString(),
		"user_id":       uuid.NewString(),
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
}

func TestResolveCommunity(t *testing.T) {
	community := uuid.New()
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/conversations/community", map[string]string{
		"community_id": community.String(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["conversation_id"] != community.String() {
		t.Errorf("community conversation id should be the community id, got %q", body["conversation_id"])
	}
}

func TestResolveCommunityUnknown(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{communityErr: session.ErrUnknownCommunity}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/conversations/community", map[string]string{
		"community_id": uuid.NewString(),
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown community, got %d", w.Code)
	}
}

func TestListUserConversations(t *testing.T) {
	fs := newFakeStore()
	user := uuid.New()
	conv := store.DirectConversation{
		ID:           uuid.New(),
		ConsultantID: uuid.New(),
		UserID:       user,
		CreatedAt:    time.Now(),
	}
	fs.conversations[user] = []store.DirectConversation{conv}
	srv := testServer(fs, &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/api/v1/users/"+user.String()+"/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Conversations []conversationPayload `json:"conversations"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(body.Conversations))
	}
	if body.Conversations[0].ID != conv.ID.String() {
		t.Errorf("wrong conversation id: %q", body.Conversations[0].ID)
	}
}

func TestListUserConversationsRejectsBadID(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/api/v1/users/not-a-uuid/conversations", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestListMessagesEmptyConversation(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/api/v1/conversations/"+uuid.NewString()+"/messages", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for empty conversation, got %d", w.Code)
	}

	var body struct {
		Messages []messagePayload `json:"messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(body.Messages) != 0 {
		t.Errorf("expected empty list, got %d", len(body.Messages))
	}
}

func TestListMessagesDecoratesAndMarksOwn(t *testing.T) {
	fs := newFakeStore()
	conv := uuid.New()
	sender := uuid.New()
	fs.messages[conv] = []chat.Message{{
		ID:             uuid.New(),
		ConversationID: conv,
		SenderID:       sender.String(),
		SenderType:     chat.SenderUser,
		Body:           "hello",
		CreatedAt:      time.Now(),
	}}
	fs.profiles[sender] = store.Profile{UserID: sender, FirstName: "Ada", LastName: "Lovelace", AvatarURL: "https://cdn.example.com/a.png"}
	srv := testServer(fs, &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/api/v1/conversations/"+conv.String()+"/messages?self="+sender.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Messages []messagePayload `json:"messages"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(body.Messages))
	}
	if !body.Messages[0].Own {
		t.Error("expected message marked own for self sender")
	}
	if body.Messages[0].Author != "Ada Lovelace" {
		t.Errorf("expected decorated author, got %q", body.Messages[0].Author)
	}
}

func TestListMessagesLoadFailure(t *testing.T) {
	fs := newFakeStore()
	fs.listErr = errors.New("db down")
	srv := testServer(fs, &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/api/v1/conversations/"+uuid.NewString()+"/messages", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502 on load failure, got %d", w.Code)
	}
}

func TestSendMessagePublishesToFeed(t *testing.T) {
	fs := newFakeStore()
	fp := &fakePublisher{}
	srv := testServer(fs, &fakeResolver{}, fp)
	conv := uuid.New()

	w := doJSON(t, srv, "POST", "/api/v1/conversations/"+conv.String()+"/messages", map[string]string{
		"sender_id":   uuid.NewString(),
		"sender_type": "user",
		"body":        "  hello world  ",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(fp.published) != 1 {
		t.Fatalf("expected 1 feed event, got %d", len(fp.published))
	}
	if fp.published[0].Body != "hello world" {
		t.Errorf("expected trimmed body on feed, got %q", fp.published[0].Body)
	}
}

func TestSendMessageRejectsEmptyBody(t *testing.T) {
	fp := &fakePublisher{}
	srv := testServer(newFakeStore(), &fakeResolver{}, fp)

	w := doJSON(t, srv, "POST", "/api/v1/conversations/"+uuid.NewString()+"/messages", map[string]string{
		"sender_id":   uuid.NewString(),
		"sender_type": "user",
		"body":        "   ",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(fp.published) != 0 {
		t.Error("rejected send must not reach the feed")
	}
}

func TestSendMessageRejectsUnknownSenderType(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/conversations/"+uuid.NewString()+"/messages", map[string]string{
		"sender_id":   uuid.NewString(),
		"sender_type": "robot",
		"body":        "hi",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSendMessageCommunityMembershipGate(t *testing.T) {
	fs := newFakeStore()
	community := uuid.New()
	member := uuid.New()
	outsider := uuid.New()
	fs.communities[community] = true
	fs.members[community] = map[uuid.UUID]bool{member: true}
	srv := testServer(fs, &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/conversations/"+community.String()+"/messages", map[string]string{
		"sender_id":   member.String(),
		"sender_type": "user",
		"body":        "hello members",
	})
	if w.Code != http.StatusCreated {
		t.Errorf("expected member send to succeed, got %d", w.Code)
	}

	w = doJSON(t, srv, "POST", "/api/v1/conversations/"+community.String()+"/messages", map[string]string{
		"sender_id":   outsider.String(),
		"sender_type": "user",
		"body":        "let me in",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-member, got %d", w.Code)
	}
}

func TestStartSupportSession(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/support/sessions", map[string]string{
		"client_key":   "install-1",
		"visitor_name": "Ada",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["session_id"] == "" || body["visitor_id"] == "" {
		t.Errorf("expected session and visitor ids, got %v", body)
	}
}

func TestStartSupportSessionRequiresName(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{supportErr: session.ErrMissingName}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/support/sessions", map[string]string{
		"client_key": "install-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestNotifyConsultantUnconfiguredMailer(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "POST", "/api/v1/notify/consultant", map[string]string{
		"consultant_email": "c@example.com",
		"message":          "hello",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with no mail config, got %d", w.Code)
	}
}

func TestNotifyConsultantQueues(t *testing.T) {
	fs := newFakeStore()
	m := mailer.New(mailer.Config{Host: "localhost", Port: 2525, From: "noreply@example.com"}, slog.Default())
	srv := NewServer(8760, fs, &fakeResolver{}, &fakeRegistry{}, &fakePublisher{}, m, 200, slog.Default())

	w := doJSON(t, srv, "POST", "/api/v1/notify/consultant", map[string]string{
		"consultant_email": "c@example.com",
		"consultant_name":  "Consultant",
		"sender_name":      "User",
		"sender_email":     "u@example.com",
		"message":          "hello",
	})
	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := testServer(newFakeStore(), &fakeResolver{}, &fakePublisher{})

	w := doJSON(t, srv, "GET", "/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/neuropayx/parley/internal/chat"
	"github.com/neuropayx/parley/internal/feed"
	"github.com/neuropayx/parley/internal/mailer"
	"github.com/neuropayx/parley/internal/store"
)

// Store is the data-layer surface the API needs.
type Store interface {
	ListMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]chat.Message, error)
	InsertMessage(ctx context.Context, conversationID uuid.UUID, senderID string, senderType chat.SenderType, body string) (chat.Message, error)
	CommunityExists(ctx context.Context, communityID uuid.UUID) (bool, error)
	IsCommunityMember(ctx context.Context, communityID, userID uuid.UUID) (bool, error)
	GetProfiles(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]store.Profile, error)
	ListUserConversations(ctx context.Context, userID uuid.UUID) ([]store.DirectConversation, error)
}

// Resolver maps chat targets to conversation identifiers.
type Resolver interface {
	Direct(ctx context.Context, consultantID, userID uuid.UUID) (uuid.UUID, error)
	StartSupport(ctx context.Context, visitorID uuid.UUID, name, email string) (*store.SupportSession, error)
	Community(ctx context.Context, communityID uuid.UUID) (uuid.UUID, error)
}

// VisitorRegistry yields the stable visitor id for a client installation key.
type VisitorRegistry interface {
	EnsureVisitor(ctx context.Context, clientKey string) (uuid.UUID, error)
}

// Subscription is a cancellable live attachment.
type Subscription interface {
	Cancel()
}

// Feed publishes stored messages and attaches live subscriptions.
type Feed interface {
	PublishMessage(m chat.Message) error
	Subscribe(conversationID string, handler func(chat.Message)) (Subscription, error)
}

// NATSFeed adapts feed.Client to the Feed interface.
type NATSFeed struct {
	Client *feed.Client
}

func (f NATSFeed) PublishMessage(m chat.Message) error {
	return f.Client.PublishMessage(m)
}

func (f NATSFeed) Subscribe(conversationID string, handler func(chat.Message)) (Subscription, error) {
	return f.Client.Subscribe(conversationID, handler)
}

type Server struct {
	router       *chi.Mux
	port         int
	store        Store
	resolver     Resolver
	visitors     VisitorRegistry
	feed         Feed
	mailer       *mailer.Mailer
	historyLimit int
	logger       *slog.Logger
}

func NewServer(port int, s Store, r Resolver, v VisitorRegistry, f Feed, m *mailer.Mailer, historyLimit int, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	srv := &Server{
		router:       router,
		port:         port,
		store:        s,
		resolver:     r,
		visitors:     v,
		feed:         f,
		mailer:       m,
		historyLimit: historyLimit,
		logger:       logger,
	}

	router.Get("/health", srv.health)
	router.Get("/api/v1/parley/status", srv.status)

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/conversations/direct", srv.resolveDirect)
		r.Post("/conversations/community", srv.resolveCommunity)
		r.Post("/support/sessions", srv.startSupportSession)
		r.Get("/users/{id}/conversations", srv.listUserConversations)
		r.Get("/conversations/{id}/messages", srv.listMessages)
		r.Post("/conversations/{id}/messages", srv.sendMessage)
		r.Get("/conversations/{id}/stream", srv.streamConversation)
		r.Post("/notify/consultant", srv.notifyConsultant)
		r.Post("/notify/demo-request", srv.notifyDemoRequest)
	})

	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "parley",
		"status":  "ok",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

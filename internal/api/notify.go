package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/neuropayx/parley/internal/mailer"
)

type notifyConsultantRequest struct {
	ConsultantEmail string `json:"consultant_email"`
	ConsultantName  string `json:"consultant_name"`
	SenderName      string `json:"sender_name"`
	SenderEmail     string `json:"sender_email"`
	Message         string `json:"message"`
}

// notifyConsultant handles POST /api/v1/notify/consultant. The email path is
// one-way and fire-and-forget: acceptance here says the request was queued,
// nothing more. It is entirely uncoupled from the message log.
func (s *Server) notifyConsultant(w http.ResponseWriter, r *http.Request) {
	var req notifyConsultantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ConsultantEmail == "" || strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "consultant_email and message are required")
		return
	}
	if !s.mailer.IsConfigured() {
		writeError(w, http.StatusServiceUnavailable, "email is not configured")
		return
	}

	contact := mailer.ConsultantContact{
		ConsultantEmail: req.ConsultantEmail,
		ConsultantName:  req.ConsultantName,
		SenderName:      req.SenderName,
		SenderEmail:     req.SenderEmail,
		Message:         strings.TrimSpace(req.Message),
	}
	s.mailer.SendAsync("consultant-contact", func() error {
		return s.mailer.SendConsultantContact(contact)
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type notifyDemoRequest struct {
	RecipientEmail string `json:"recipient_email"`
	ItemName       string `json:"item_name"`
	ItemType       string `json:"item_type"`
	UserEmail      string `json:"user_email"`
}

// notifyDemoRequest handles POST /api/v1/notify/demo-request.
func (s *Server) notifyDemoRequest(w http.ResponseWriter, r *http.Request) {
	var req notifyDemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.RecipientEmail == "" || req.ItemName == "" {
		writeError(w, http.StatusBadRequest, "recipient_email and item_name are required")
		return
	}
	if !s.mailer.IsConfigured() {
		writeError(w, http.StatusServiceUnavailable, "email is not configured")
		return
	}

	demo := mailer.DemoRequest{
		RecipientEmail: req.RecipientEmail,
		ItemName:       req.ItemName,
		ItemType:       req.ItemType,
		UserEmail:      req.UserEmail,
	}
	s.mailer.SendAsync("demo-request", func() error {
		return s.mailer.SendDemoRequest(demo)
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

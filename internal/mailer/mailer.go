// Package mailer sends one-way notification emails. Sends are fire and
// forget: failures are logged and reported independently, never coupled to
// the message data model.
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strconv"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type Mailer struct {
	config Config
	server string
	auth   smtp.Auth
	logger *slog.Logger
}

func New(config Config, logger *slog.Logger) *Mailer {
	return &Mailer{
		config: config,
		server: config.Host + ":" + strconv.Itoa(config.Port),
		auth:   smtp.PlainAuth("", config.Username, config.Password, config.Host),
		logger: logger,
	}
}

// IsConfigured reports whether outbound email can be attempted at all.
func (m *Mailer) IsConfigured() bool {
	return m.config.Host != "" && m.config.From != ""
}

func (m *Mailer) send(to, subject, htmlBody string) error {
	if !m.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := m.config.From
	if m.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)

	return smtp.SendMail(m.server, m.auth, m.config.From, []string{to}, msg.Bytes())
}

// ConsultantContact carries a "message to the consultant's inbox" request.
type ConsultantContact struct {
	ConsultantEmail string
	ConsultantName  string
	SenderName      string
	SenderEmail     string
	Message         string
}

// SendConsultantContact emails a consultant about a message from a user.
func (m *Mailer) SendConsultantContact(c ConsultantContact) error {
	subject := fmt.Sprintf("New message from %s", c.SenderName)
	html, err := renderTemplate(consultantContactTemplate, c)
	if err != nil {
		return fmt.Errorf("render consultant contact template: %w", err)
	}
	return m.send(c.ConsultantEmail, subject, html)
}

// DemoRequest carries a demo-request notification for a template or
// consultant listing.
type DemoRequest struct {
	RecipientEmail string
	ItemName       string
	ItemType       string
	UserEmail      string
}

// SendDemoRequest notifies a listing owner that a user requested a demo.
func (m *Mailer) SendDemoRequest(d DemoRequest) error {
	subject := fmt.Sprintf("New demo request for %s", d.ItemName)
	html, err := renderTemplate(demoRequestTemplate, d)
	if err != nil {
		return fmt.Errorf("render demo request template: %w", err)
	}
	return m.send(d.RecipientEmail, subject, html)
}

// SendAsync runs fn on its own goroutine, logging any failure. Callers get
// their own success/failure reporting through that log line only.
func (m *Mailer) SendAsync(kind string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			m.logger.Error("email send failed", "kind", kind, "error", err)
			return
		}
		m.logger.Info("email sent", "kind", kind)
	}()
}

func renderTemplate(tmpl string, data any) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const consultantContactTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2>New message</h2>
    <p>Hello <strong>{{.ConsultantName}}</strong>,</p>
    <p><strong>{{.SenderName}}</strong> ({{.SenderEmail}}) sent you a message:</p>
    <div style="background: #f5f5f5; padding: 16px; border-radius: 8px; margin: 16px 0;">
        <p style="margin: 0; white-space: pre-wrap;">{{.Message}}</p>
    </div>
    <p>Reply directly to <a href="mailto:{{.SenderEmail}}">{{.SenderEmail}}</a>.</p>
</body>
</html>`

const demoRequestTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2>New demo request</h2>
    <p>A user requested a demo.</p>
    <p><strong>Item:</strong> {{.ItemName}} ({{.ItemType}})</p>
    <p><strong>User email:</strong> {{.UserEmail}}</p>
</body>
</html>`

// Package mailer renders status notifications and delivers them over SMTP.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/garnizeh/leavesync/internal/config"
	"github.com/garnizeh/leavesync/internal/leave"
)

// ErrNoTemplate is returned when a status has no notification attached.
var ErrNoTemplate = errors.New("no template for status")

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notification carries what the templates need to describe a request.
type Notification struct {
	Status           leave.Status
	To               string
	Name             string
	Start            time.Time
	End              time.Time
	RequestedDays    *float64
	RemainingBalance *float64
}

type templateData struct {
	Name             string
	Start            string
	End              string
	RequestedDays    string
	RemainingBalance string
}

// package-level logger for pkg/mailer; can be replaced by callers
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// SetLogger sets the logger used by pkg/mailer. Passing nil is a no-op.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Dispatcher picks the template for a notification, renders it and hands it
// to a Sender.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(s Sender) *Dispatcher {
	return &Dispatcher{sender: s}
}

// Render builds the message for n without sending it.
func Render(n Notification) (Message, error) {
	tpl, ok := Select(n.Status)
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrNoTemplate, n.Status)
	}
	data := templateData{
		Name:             n.Name,
		Start:            n.Start.Format("2006-01-02"),
		End:              n.End.Format("2006-01-02"),
		RequestedDays:    formatDays(n.RequestedDays),
		RemainingBalance: formatDays(n.RemainingBalance),
	}

	html, err := RenderHTML(tpl.HTML, data)
	if err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	text, err := RenderText(tpl.Text, data)
	if err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{To: n.To, Subject: tpl.Subject, HTML: html, Text: text}, nil
}

// Notify sends exactly one message for n, or nothing when the status has no
// template.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	if strings.TrimSpace(n.To) == "" {
		return fmt.Errorf("notification has no recipient")
	}
	msg, err := Render(n)
	if err != nil {
		return err
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s notification: %w", n.Status, err)
	}
	logger.Info("mailer: notification sent", slog.String("to", n.To), slog.String("status", string(n.Status)))
	return nil
}

func formatDays(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// SMTPSender submits messages to an SMTP relay.
type SMTPSender struct {
	client   *mail.Client
	from     string
	fromName string
}

// NewSMTPSender builds a sender from the SMTP settings. Port 465 uses
// implicit TLS; other ports follow the configured STARTTLS policy.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPSender{client: c, from: cfg.From, fromName: cfg.FromName}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	var err error
	if s.fromName != "" {
		err = m.FromFormat(s.fromName, s.from)
	} else {
		err = m.From(s.from)
	}
	if err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		m.AddAlternativeString(mail.TypeTextPlain, msg.Text)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func tlsPolicy(p string) mail.TLSPolicy {
	switch strings.ToLower(p) {
	case "none":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

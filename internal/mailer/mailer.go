// Package mailer delivers account and inventory notifications by e-mail.
package mailer

import (
	"fmt"
	"net/smtp"
	"sync"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"stocktrail/internal/config"
)

// Message is a rendered e-mail.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender sends messages through an SMTP relay.
type SMTPSender struct {
	from     string
	host     string
	user     string
	password string
	addr     string
}

// NewSMTPSender creates a sender for the configured relay.
func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{
		from:     cfg.MailFrom,
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Send implements Sender.
func (s *SMTPSender) Send(msg Message) error {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	if msg.HTML != "" {
		e.HTML = []byte(msg.HTML)
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	if err := e.Send(s.addr, auth); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no SMTP relay is configured.
type LogSender struct {
	log *zap.SugaredLogger
}

// NewLogSender creates a LogSender.
func NewLogSender(log *zap.SugaredLogger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender.
func (s *LogSender) Send(msg Message) error {
	s.log.Infow("Mail not delivered (no SMTP relay configured)",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return nil
}

// MemorySender keeps every message in memory.
type MemorySender struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

// Send implements Sender. It records the message even when Err is set.
func (s *MemorySender) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.Err
}

// Messages returns a copy of the recorded messages.
func (s *MemorySender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Last returns the most recent message, if any.
func (s *MemorySender) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// NewSender picks the SMTP sender when a relay is configured and the log
// sender otherwise.
func NewSender(cfg *config.Config, log *zap.SugaredLogger) Sender {
	if cfg.MailEnabled() {
		return NewSMTPSender(cfg)
	}
	return NewLogSender(log)
}

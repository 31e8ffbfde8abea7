package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"
)

// EmailMessage is one outbound email.
type EmailMessage struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
	Tag     string
}

// EmailTransport delivers one email and returns the provider message id.
type EmailTransport interface {
	Name() string
	SendEmail(ctx context.Context, msg EmailMessage) (string, error)
}

// SMTPConfig contains SMTP server settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Configured reports whether an SMTP host is set.
func (c SMTPConfig) Configured() bool {
	return c.Host != ""
}

// sendMailFunc matches smtp.SendMail so tests can capture messages.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPTransport sends email with net/smtp as multipart text and HTML.
type SMTPTransport struct {
	config   SMTPConfig
	sendMail sendMailFunc
}

// NewSMTPTransport validates the configuration and creates a transport.
func NewSMTPTransport(config SMTPConfig) (*SMTPTransport, error) {
	if !config.Configured() {
		return nil, &ConfigError{Provider: "smtp", Reason: "host is required"}
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if config.Port < 1 || config.Port > 65535 {
		return nil, &ConfigError{Provider: "smtp", Reason: fmt.Sprintf("invalid port %d", config.Port)}
	}
	if (config.Username == "") != (config.Password == "") {
		return nil, &ConfigError{Provider: "smtp", Reason: "username and password must be set together"}
	}
	return &SMTPTransport{config: config, sendMail: smtp.SendMail}, nil
}

// Name returns the provider name.
func (t *SMTPTransport) Name() string { return "smtp" }

// SendEmail delivers msg and returns the generated Message-ID.
func (t *SMTPTransport) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(msg.From, t.config.Host))
	raw, err := buildMIMEMessage(msg, messageID, time.Now())
	if err != nil {
		return "", fmt.Errorf("build mime message: %w", err)
	}

	var auth smtp.Auth
	if t.config.Username != "" {
		auth = smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Host)
	}

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	if err := t.sendMail(addr, auth, addressOnly(msg.From), []string{addressOnly(msg.To)}, raw); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return messageID, nil
}

func buildMIMEMessage(msg EmailMessage, messageID string, now time.Time) ([]byte, error) {
	boundary := "alt-" + strings.ReplaceAll(uuid.New().String(), "-", "")

	var buf bytes.Buffer
	writeHeader := func(k, v string) {
		buf.WriteString(k + ": " + v + "\r\n")
	}
	writeHeader("From", msg.From)
	writeHeader("To", msg.To)
	if msg.ReplyTo != "" {
		writeHeader("Reply-To", msg.ReplyTo)
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", now.Format(time.RFC1123Z))
	writeHeader("Message-ID", messageID)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `multipart/alternative; boundary="`+boundary+`"`)
	buf.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", msg.Text},
		{"text/html", msg.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		buf.WriteString("--" + boundary + "\r\n")
		writeHeader("Content-Type", p.contentType+`; charset="UTF-8"`)
		writeHeader("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}
	buf.WriteString("--" + boundary + "--\r\n")
	return buf.Bytes(), nil
}

// addressOnly strips a display name: "School <office@school.org>" -> "office@school.org".
func addressOnly(addr string) string {
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		if j := strings.LastIndex(addr, ">"); j > i {
			return addr[i+1 : j]
		}
	}
	return strings.TrimSpace(addr)
}

func domainOf(addr, fallback string) string {
	a := addressOnly(addr)
	if i := strings.LastIndex(a, "@"); i >= 0 && i < len(a)-1 {
		return a[i+1:]
	}
	return fallback
}

// PostmarkConfig contains Postmark API tokens.
type PostmarkConfig struct {
	ServerToken  string `yaml:"server_token"`
	AccountToken string `yaml:"account_token"`
	TrackOpens   bool   `yaml:"track_opens"`
}

// Configured reports whether a server token is set.
func (c PostmarkConfig) Configured() bool {
	return c.ServerToken != ""
}

// ErrPostmarkRejected is returned when Postmark answers with a non-zero error code.
var ErrPostmarkRejected = errors.New("postmark rejected message")

// postmarkSender is the subset of *postmark.Client used by PostmarkTransport.
type postmarkSender interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkTransport sends email through the Postmark transactional API.
type PostmarkTransport struct {
	client     postmarkSender
	trackOpens bool
}

// NewPostmarkTransport validates the configuration and creates a transport.
func NewPostmarkTransport(config PostmarkConfig) (*PostmarkTransport, error) {
	if !config.Configured() {
		return nil, &ConfigError{Provider: "postmark", Reason: "server token is required"}
	}
	return &PostmarkTransport{
		client:     postmark.NewClient(config.ServerToken, config.AccountToken),
		trackOpens: config.TrackOpens,
	}, nil
}

// Name returns the provider name.
func (t *PostmarkTransport) Name() string { return "postmark" }

// SendEmail delivers msg and returns the Postmark MessageID.
func (t *PostmarkTransport) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	resp, err := t.client.SendEmail(ctx, postmark.Email{
		From:       msg.From,
		ReplyTo:    msg.ReplyTo,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTML,
		TextBody:   msg.Text,
		TrackOpens: t.trackOpens,
	})
	if err != nil {
		return "", fmt.Errorf("postmark send: %w", err)
	}
	if resp.ErrorCode > 0 {
		return "", fmt.Errorf("%w: %d - %s", ErrPostmarkRejected, resp.ErrorCode, resp.Message)
	}
	return resp.MessageID, nil
}

// MockEmailTransport reports every email as sent without contacting a server.
// It backs the email channel when no real transport could be initialised.
type MockEmailTransport struct{}

// NewMockEmailTransport creates a MockEmailTransport.
func NewMockEmailTransport() *MockEmailTransport {
	return &MockEmailTransport{}
}

// Name returns the provider name.
func (t *MockEmailTransport) Name() string { return "mock" }

// SendEmail logs the message and returns a synthetic id.
func (t *MockEmailTransport) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	id := "mock-" + uuid.New().String()
	slog.Info("mock email sent",
		slog.String("subject", msg.Subject),
		slog.String("message_id", id))
	return id, nil
}

package notify

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/ternarybob/edgarsignals/internal/interfaces"
)

// maxSubjectLength is the sink's subject limit, in characters
const maxSubjectLength = 100

func truncateSubject(s string) string {
	r := []rune(s)
	if len(r) <= maxSubjectLength {
		return s
	}
	return string(r[:maxSubjectLength])
}

// SMTPConfig holds SMTP settings loaded from the key/value store
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool
}

// sendFunc delivers an already built message
type sendFunc func(cfg *SMTPConfig, to []string, msg []byte) error

// MailNotifier sends the digest as a multipart/alternative email
type MailNotifier struct {
	kv         interfaces.KeyValueStorage
	recipients []string
	markdown   goldmark.Markdown
	send       sendFunc
	logger     arbor.ILogger
}

// NewMailNotifier creates a MailNotifier. SMTP settings are read from kv on every publish.
func NewMailNotifier(kv interfaces.KeyValueStorage, recipients []string, logger arbor.ILogger) *MailNotifier {
	n := &MailNotifier{
		kv:         kv,
		recipients: recipients,
		markdown:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:     logger,
	}
	n.send = n.deliver
	return n
}

// GetConfig reads the smtp_* keys, applying defaults for port, TLS and sender name
func (n *MailNotifier) GetConfig(ctx context.Context) *SMTPConfig {
	config := &SMTPConfig{
		Port:     587,
		UseTLS:   true,
		FromName: "EDGAR Signals",
	}

	get := func(key string) string {
		v, err := n.kv.Get(ctx, key)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	}

	if v := get("smtp_host"); v != "" {
		config.Host = v
	}
	if v := get("smtp_port"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Port = port
		}
	}
	config.Username = get("smtp_username")
	config.Password = get("smtp_password")
	config.From = get("smtp_from")
	if v := get("smtp_from_name"); v != "" {
		config.FromName = v
	}
	if v := get("smtp_use_tls"); v != "" {
		config.UseTLS = strings.EqualFold(v, "true") || v == "1"
	}
	return config
}

// IsConfigured reports whether host, credentials and sender are all set
func (n *MailNotifier) IsConfigured(ctx context.Context) bool {
	c := n.GetConfig(ctx)
	return c.Host != "" && c.Username != "" && c.Password != "" && c.From != ""
}

// Publish renders the markdown body to HTML and mails both versions
func (n *MailNotifier) Publish(ctx context.Context, subject, body string) error {
	if len(n.recipients) == 0 {
		return errors.New("no email recipients configured")
	}

	config := n.GetConfig(ctx)
	switch {
	case config.Host == "":
		return errors.New("SMTP host not configured")
	case config.Username == "" || config.Password == "":
		return errors.New("SMTP credentials not configured")
	case config.From == "":
		return errors.New("from email not configured")
	}

	var html bytes.Buffer
	if err := n.markdown.Convert([]byte(body), &html); err != nil {
		return fmt.Errorf("failed to render digest HTML: %w", err)
	}

	msg := buildMessage(config, n.recipients, truncateSubject(subject), html.String(), body)
	if err := n.send(config, n.recipients, msg); err != nil {
		n.logger.Error().Err(err).Strs("to", n.recipients).Msg("Failed to send digest email")
		return err
	}

	n.logger.Info().Strs("to", n.recipients).Str("subject", truncateSubject(subject)).Msg("Digest email sent")
	return nil
}

func buildMessage(config *SMTPConfig, to []string, subject, htmlBody, textBody string) []byte {
	boundary := generateBoundary()

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", config.FromName), config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	msg.WriteString("\r\n")

	writePart := func(contentType, content string) {
		fmt.Fprintf(&msg, "--%s\r\n", boundary)
		fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(encodeBase64WithLineBreaks(content))
		msg.WriteString("\r\n")
	}
	writePart("text/plain", textBody)
	writePart("text/html", htmlBody)

	fmt.Fprintf(&msg, "--%s--\r\n", boundary)
	return []byte(msg.String())
}

func (n *MailNotifier) deliver(config *SMTPConfig, to []string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	if !config.UseTLS {
		return smtp.SendMail(addr, auth, config.From, to, msg)
	}

	// Implicit TLS first (port 465), STARTTLS when the server does not speak it
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: config.Host})
	if err != nil {
		client, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		defer client.Close()
		if err := client.StartTLS(&tls.Config{ServerName: config.Host}); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
		return transmit(client, auth, config.From, to, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()
	return transmit(client, auth, config.From, to, msg)
}

func transmit(client *smtp.Client, auth smtp.Auth, from string, to []string, msg []byte) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set mail recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "edgarsignals_boundary"
	}
	return fmt.Sprintf("edgarsignals_%x", b)
}

// encodeBase64WithLineBreaks wraps base64 output at 76 characters (RFC 2045)
func encodeBase64WithLineBreaks(content string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(content))

	const lineLen = 76
	var result strings.Builder
	for i := 0; i < len(encoded); i += lineLen {
		end := min(i+lineLen, len(encoded))
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}
	return result.String()
}

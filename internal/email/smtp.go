package emails

import (
	"fmt"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// buildMessage renders the RFC 5322 message with a stable header order
func buildMessage(email *Email) []byte {
	headers := [][2]string{
		{"From", email.From},
		{"To", strings.Join(email.To, ", ")},
		{"Subject", email.Subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=\"UTF-8\""},
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(email.HtmlBody)
	return []byte(b.String())
}

func sendSMTP(send sendMailFunc, cfg SMTPConfig, email *Email) error {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth(
			"",
			cfg.Username,
			cfg.Password,
			cfg.Host,
		)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return send(addr, auth, email.From, email.To, buildMessage(email))
}

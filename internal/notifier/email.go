package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go-careerwatch/internal/config"
)

// Email sends the digest as one HTML message over SMTP with STARTTLS.
type Email struct {
	cfg    config.EmailConfig
	logger *slog.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg config.EmailConfig, logger *slog.Logger) *Email {
	return &Email{cfg: cfg, logger: logger, send: smtp.SendMail}
}

func (e *Email) Name() string { return "email" }

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="background-color: #4CAF50; color: white; padding: 20px; text-align: center; font-size: 24px; font-weight: bold;">🎯 New Job Alerts</div>
<div style="padding: 20px;">
<p>Found <strong>{{.Total}}</strong> new job {{if eq .Total 1}}posting{{else}}postings{{end}}:</p>
{{range .Companies}}{{$company := .Company}}{{range .Jobs}}<div style="margin-bottom: 25px; padding: 15px; border-left: 4px solid #4CAF50; background-color: #f9f9f9;">
<div style="font-size: 18px; font-weight: bold; color: #2196F3;">{{$company}}</div>
<div style="font-size: 16px; font-weight: bold;">{{.Title}}</div>
<div style="font-size: 14px; color: #666;">📍 {{if .Location}}{{.Location}}{{else}}Unknown Location{{end}}</div>
<div style="font-size: 14px;">🔗 <a href="{{.URL}}">View Job Posting</a></div>
</div>
{{end}}{{end}}</div>
<div style="margin-top: 30px; font-size: 12px; color: #999; text-align: center;">Run {{.RunID}}</div>
</body>
</html>
`))

func (e *Email) Notify(_ context.Context, d Digest) error {
	msg, err := e.compose(d)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	if err := e.send(addr, auth, e.cfg.From, recipients(e.cfg.To), msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	e.logger.Info("📧 Email sent", "to", e.cfg.To, "jobs", d.Total())
	return nil
}

func (e *Email) compose(d Digest) ([]byte, error) {
	var body bytes.Buffer
	if err := digestTemplate.Execute(&body, d); err != nil {
		return nil, fmt.Errorf("render email: %w", err)
	}

	subject := fmt.Sprintf("🎯 %d New Job %s Found!", d.Total(), plural(d.Total(), "Alert", "Alerts"))

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", e.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func recipients(to string) []string {
	var out []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Package mail renders the embedded e-mail templates and delivers them over
// SMTP with gomail. Without MAIL_HOST the log sender is used, so local runs
// and tests never dial out.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strconv"
	texttemplate "text/template"

	gopkgmail "gopkg.in/gomail.v2"

	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

//go:embed templates/*.html templates/*.txt
var templatesFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templatesFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templatesFS, "templates/*.txt"))
)

// Message is one outgoing e-mail. Template names a pair of files under
// templates/ without extension, e.g. "order_created".
type Message struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Render returns the HTML and plain-text bodies of m.
func Render(m Message) (string, string, error) {
	var html, plain bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, m.Template+".html", m.Data); err != nil {
		return "", "", fmt.Errorf("mail: render html %s: %w", m.Template, err)
	}
	if err := textTemplates.ExecuteTemplate(&plain, m.Template+".txt", m.Data); err != nil {
		return "", "", fmt.Errorf("mail: render text %s: %w", m.Template, err)
	}
	return html.String(), plain.String(), nil
}

// SMTPSender sends through one SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SSL      bool
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	html, plain, err := Render(m)
	if err != nil {
		return err
	}

	msg := gopkgmail.NewMessage()
	msg.SetHeader("From", s.From)
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetBody("text/plain", plain)
	msg.AddAlternative("text/html", html)

	d := gopkgmail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	d.SSL = s.SSL
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", m.To, err)
	}
	logger.WithCtx(ctx).Info("mail: sent", "to", m.To, "template", m.Template)
	return nil
}

// LogSender renders the message and logs it instead of sending.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m Message) error {
	_, plain, err := Render(m)
	if err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("mail: (log driver)", "to", m.To, "subject", m.Subject, "body", plain)
	return nil
}

// FromConfig picks SMTP when MAIL_HOST is set.
func FromConfig() Sender {
	host := config.Get("MAIL_HOST", "")
	if host == "" {
		return LogSender{}
	}
	port, err := strconv.Atoi(config.Get("MAIL_PORT", "587"))
	if err != nil {
		port = 587
	}
	return &SMTPSender{
		Host:     host,
		Port:     port,
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", "ventas@ferremas.cl"),
		SSL:      port == 465,
	}
}

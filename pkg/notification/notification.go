// Package notification delivers operational alerts to staff channels: a
// Slack incoming webhook and a generic JSON webhook.
//
//	n := notification.FromConfig()
//	n.Send(ctx, notification.Alert{Level: notification.Warning, Title: "Low stock", Text: "..."})
//
// Customer-facing notices are stored rows and mail, not alerts.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shashiranjanraj/ferremas/config"
	fhttp "github.com/shashiranjanraj/ferremas/pkg/http"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Danger  Level = "danger"
)

// Alert is one message for staff.
type Alert struct {
	Level  Level             `json:"level"`
	Title  string            `json:"title"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
	At     time.Time         `json:"at"`
}

// Channel is one delivery route.
type Channel interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Notifier fans an alert out to every configured channel.
type Notifier struct {
	channels []Channel
}

func New(channels ...Channel) *Notifier {
	return &Notifier{channels: channels}
}

// FromConfig builds the channels whose URLs are set: SLACK_WEBHOOK_URL and
// ALERT_WEBHOOK_URL. With neither, Send is a no-op.
func FromConfig() *Notifier {
	var chans []Channel
	if u := config.Get("SLACK_WEBHOOK_URL", ""); u != "" {
		chans = append(chans, Slack{URL: u})
	}
	if u := config.Get("ALERT_WEBHOOK_URL", ""); u != "" {
		chans = append(chans, Webhook{URL: u, Secret: config.Get("ALERT_WEBHOOK_TOKEN", "")})
	}
	return New(chans...)
}

// Enabled reports whether any channel is configured.
func (n *Notifier) Enabled() bool { return n != nil && len(n.channels) > 0 }

// Send delivers a to every channel. Failures are logged and joined; one
// failing channel does not stop the others.
func (n *Notifier) Send(ctx context.Context, a Alert) error {
	if !n.Enabled() {
		return nil
	}
	if a.At.IsZero() {
		a.At = time.Now().UTC()
	}
	if a.Level == "" {
		a.Level = Info
	}
	var errs []error
	for _, ch := range n.channels {
		if err := ch.Send(ctx, a); err != nil {
			logger.WithCtx(ctx).Error("notification: channel failed", "channel", ch.Name(), "title", a.Title, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Slack posts to an incoming webhook as a single coloured attachment.
type Slack struct {
	URL string
}

func (Slack) Name() string { return "slack" }

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Title  string       `json:"title,omitempty"`
	Text   string       `json:"text,omitempty"`
	Fields []slackField `json:"fields,omitempty"`
	TS     int64        `json:"ts,omitempty"`
}

func (s Slack) Send(ctx context.Context, a Alert) error {
	color := "good"
	switch a.Level {
	case Warning:
		color = "warning"
	case Danger:
		color = "danger"
	}
	att := slackAttachment{Color: color, Title: a.Title, Text: a.Text, TS: a.At.Unix()}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		att.Fields = append(att.Fields, slackField{Title: k, Value: a.Fields[k], Short: true})
	}

	return post(ctx, fhttp.Post(s.URL).Body(map[string]any{
		"text":        a.Title,
		"attachments": []slackAttachment{att},
	}))
}

// Webhook posts the alert as JSON, with an optional bearer token.
type Webhook struct {
	URL    string
	Secret string
}

func (Webhook) Name() string { return "webhook" }

func (w Webhook) Send(ctx context.Context, a Alert) error {
	req := fhttp.Post(w.URL).Body(a)
	if w.Secret != "" {
		req = req.Bearer(w.Secret)
	}
	return post(ctx, req)
}

func post(ctx context.Context, req *fhttp.Request) error {
	resp, err := req.WithContext(ctx).Timeout(5 * time.Second).Retry(2, 200*time.Millisecond).Send()
	if err != nil {
		return err
	}
	return resp.Throw()
}

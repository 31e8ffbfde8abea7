package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/infra/notifier"
)

const (
	urgentPrefix       = "URGENT: "
	truncationSuffix   = "..."
	maxWhatsAppLength  = 4096
	maxPushTitleLength = 178
	maxPushBodyLength  = 1024
)

// formatSMS renders n as a single SMS segment.
func formatSMS(n *entity.Notification) string {
	text := n.Title + "\n" + n.Message
	if n.Priority == entity.PriorityHigh {
		text = urgentPrefix + text
	}
	return notifier.TruncateText(text, notifier.MaxSMSLength, truncationSuffix)
}

// formatWhatsApp renders n as a WhatsApp text body with a bold title.
func formatWhatsApp(n *entity.Notification) string {
	var b strings.Builder
	if n.Priority == entity.PriorityHigh {
		b.WriteString("🚨 ")
	}
	b.WriteString("*" + n.Title + "*\n\n")
	b.WriteString(n.Message)
	if n.SentBy != "" {
		b.WriteString("\n\n— " + n.SentBy)
	}
	return notifier.TruncateText(b.String(), maxWhatsAppLength, truncationSuffix)
}

// pushMessage builds the push payload of n for one device token.
func pushMessage(token string, n *entity.Notification) notifier.PushMessage {
	data := map[string]any{
		"type":     string(n.Type),
		"priority": string(n.Priority),
	}
	if n.CorrelationID != nil {
		data["correlationId"] = strconv.FormatInt(*n.CorrelationID, 10)
	}

	priority := "default"
	if n.Priority == entity.PriorityHigh {
		priority = "high"
	}

	return notifier.PushMessage{
		To:       token,
		Title:    notifier.TruncateText(n.Title, maxPushTitleLength, truncationSuffix),
		Body:     notifier.TruncateText(n.Message, maxPushBodyLength, truncationSuffix),
		Data:     data,
		Priority: priority,
		Sound:    "default",
	}
}

// priorityStyle holds the accent colour and label of a priority in emails.
type priorityStyle struct {
	Color string
	Label string
}

var priorityStyles = map[entity.Priority]priorityStyle{
	entity.PriorityLow:    {Color: "#6b7280", Label: "Low priority"},
	entity.PriorityNormal: {Color: "#3b82f6", Label: "Notice"},
	entity.PriorityHigh:   {Color: "#ef4444", Label: "Urgent"},
}

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><style>
body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
.card { background: #fff; border-radius: 8px; padding: 24px; max-width: 600px; margin: 0 auto; box-shadow: 0 1px 3px rgba(0,0,0,0.1); }
.badge { display: inline-block; color: #fff; font-size: 12px; font-weight: 600; padding: 2px 8px; border-radius: 4px; }
.title { font-size: 18px; font-weight: 600; margin: 12px 0 8px; }
.body { color: #333; line-height: 1.6; white-space: pre-line; }
.meta { color: #999; font-size: 12px; margin-top: 16px; }
</style></head>
<body>
<div class="card" style="border-left: 4px solid {{.Style.Color}};">
  <span class="badge" style="background: {{.Style.Color}};">{{.Style.Label}}</span>
  <div class="title">{{.Title}}</div>
  <div class="body">{{.Message}}</div>
  {{if .SentBy}}<div class="meta">Sent by {{.SentBy}}</div>{{end}}
</div>
</body>
</html>`))

type emailView struct {
	Title   string
	Message string
	SentBy  string
	Style   priorityStyle
}

// renderedEmail is the recipient-independent part of an email.
type renderedEmail struct {
	Subject string
	Text    string
	HTML    string
	Tag     string
}

// renderEmail renders the subject, plain text and HTML body of n.
func renderEmail(n *entity.Notification) (renderedEmail, error) {
	style, ok := priorityStyles[n.Priority]
	if !ok {
		style = priorityStyles[entity.PriorityNormal]
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, emailView{Title: n.Title, Message: n.Message, SentBy: n.SentBy, Style: style}); err != nil {
		return renderedEmail{}, fmt.Errorf("render email template: %w", err)
	}

	subject := n.Title
	if n.Priority == entity.PriorityHigh {
		subject = "[URGENT] " + subject
	}

	text := n.Title + "\n\n" + n.Message
	if n.SentBy != "" {
		text += "\n\n" + n.SentBy
	}

	return renderedEmail{
		Subject: subject,
		Text:    text,
		HTML:    buf.String(),
		Tag:     strings.ToLower(string(n.Type)),
	}, nil
}

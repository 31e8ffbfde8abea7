package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/usecase/notify"
)

type cliOptions struct {
	target  entity.TargetSpec
	title   string
	message string
	send    notify.Options
	output  string
	timeout time.Duration
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	fs := flag.NewFlagSet("notify", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		ids, group, title, message string
		priority, typ, sentBy, out string
		correlationID              int64
		email, sms, whatsapp       bool
		timeout                    time.Duration
	)
	fs.StringVar(&ids, "ids", "", "Comma-separated recipient ids")
	fs.StringVar(&group, "group", "", "Recipient group name")
	fs.StringVar(&title, "title", "", "Notification title (required)")
	fs.StringVar(&message, "message", "", "Notification body (required)")
	fs.StringVar(&priority, "priority", string(entity.PriorityNormal), "LOW, NORMAL or HIGH")
	fs.StringVar(&typ, "type", string(entity.TypeCustom), "CUSTOM, ABSENCE or TEST")
	fs.BoolVar(&email, "email", true, "Send email")
	fs.BoolVar(&sms, "sms", false, "Send SMS (always on for HIGH priority)")
	fs.BoolVar(&whatsapp, "whatsapp", false, "Send WhatsApp")
	fs.Int64Var(&correlationID, "correlation-id", 0, "Id of the originating record")
	fs.StringVar(&sentBy, "sent-by", "", "Sender recorded on in-app rows")
	fs.StringVar(&out, "output", "text", "Output format: text or json")
	fs.DurationVar(&timeout, "timeout", defaultTimeout, "Overall time limit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	recipientIDs, err := parseIDs(ids)
	if err != nil {
		return nil, err
	}
	target := entity.TargetSpec{RecipientIDs: recipientIDs, Group: strings.TrimSpace(group)}
	if target.IsEmpty() {
		return nil, errors.New("one of -ids or -group is required")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return nil, errors.New("-title and -message are required")
	}
	if out != "text" && out != "json" {
		return nil, fmt.Errorf("unknown output format %q", out)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %v", timeout)
	}

	opts := &cliOptions{
		target:  target,
		title:   title,
		message: message,
		output:  out,
		timeout: timeout,
		send: notify.Options{
			Priority:     entity.Priority(strings.ToUpper(priority)),
			Type:         entity.NotificationType(strings.ToUpper(typ)),
			SendEmail:    &email,
			SendSMS:      sms,
			SendWhatsApp: whatsapp,
			SentBy:       sentBy,
		},
	}
	if correlationID != 0 {
		opts.send.CorrelationID = &correlationID
	}
	return opts, nil
}

func parseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid recipient id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

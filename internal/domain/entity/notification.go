package entity

import (
	"fmt"
	"strings"
)

// Priority controls how urgently a notification is delivered.
// HIGH forces an SMS attempt regardless of the request's channel options.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// IsValid reports whether p is one of the known priorities.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// NotificationType tags the persisted in-app record.
type NotificationType string

const (
	TypeCustom  NotificationType = "CUSTOM"
	TypeAbsence NotificationType = "ABSENCE"
	TypeTest    NotificationType = "TEST"
)

// IsValid reports whether t is one of the known notification types.
func (t NotificationType) IsValid() bool {
	switch t {
	case TypeCustom, TypeAbsence, TypeTest:
		return true
	}
	return false
}

// ChannelOptions holds the explicit per-channel switches of a request.
// In-app and push are not listed: in-app is always on and push eligibility
// depends only on the recipient's token.
type ChannelOptions struct {
	SendEmail    bool `json:"send_email"`
	SendWhatsApp bool `json:"send_whatsapp"`
	SendSMS      bool `json:"send_sms"`
}

// DefaultChannelOptions returns email on, WhatsApp and SMS off.
func DefaultChannelOptions() ChannelOptions {
	return ChannelOptions{SendEmail: true}
}

// Notification is a logical notification event fanned out to recipients.
// It is ephemeral: only the in-app DeliveryRecord derived from it is stored.
type Notification struct {
	Title    string
	Message  string
	Priority Priority
	Type     NotificationType
	Channels ChannelOptions

	// CorrelationID optionally links the notification to a domain object
	// such as a student.
	CorrelationID *int64

	// SentBy is the sender identity, used for display and audit only.
	SentBy string
}

// Normalize fills defaults for empty priority and type and trims text fields.
func (n *Notification) Normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	n.SentBy = strings.TrimSpace(n.SentBy)
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.Type == "" {
		n.Type = TypeCustom
	}
	n.Priority = Priority(strings.ToUpper(string(n.Priority)))
	n.Type = NotificationType(strings.ToUpper(string(n.Type)))
}

// Validate checks the notification after normalization.
func (n *Notification) Validate() error {
	if n.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if n.Message == "" {
		return &ValidationError{Field: "message", Message: "message is required"}
	}
	if !n.Priority.IsValid() {
		return &ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %q", n.Priority)}
	}
	if !n.Type.IsValid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown type %q", n.Type)}
	}
	return nil
}

// SMSRequested reports whether the SMS channel must be attempted.
// HIGH priority forces SMS even when it was not explicitly requested.
func (n *Notification) SMSRequested() bool {
	return n.Channels.SendSMS || n.Priority == PriorityHigh
}

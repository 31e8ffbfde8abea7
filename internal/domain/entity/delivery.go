package entity

import "time"

// Channel identifies one delivery medium.
type Channel string

const (
	ChannelInApp    Channel = "inapp"
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// AllChannels lists every channel in the order used for dispatch and reporting.
var AllChannels = []Channel{
	ChannelInApp,
	ChannelPush,
	ChannelEmail,
	ChannelSMS,
	ChannelWhatsApp,
}

// ParseChannel converts a channel name to a Channel.
func ParseChannel(s string) (Channel, bool) {
	for _, c := range AllChannels {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// DeliveryStatus is the terminal outcome of one (channel, recipient) pair.
type DeliveryStatus string

const (
	StatusSent    DeliveryStatus = "SENT"
	StatusFailed  DeliveryStatus = "FAILED"
	StatusSkipped DeliveryStatus = "SKIPPED"
)

// DeliveryResult is the outcome of sending one notification to one
// recipient over one channel.
type DeliveryResult struct {
	Channel           Channel        `json:"channel"`
	RecipientID       int64          `json:"recipient_id"`
	Status            DeliveryStatus `json:"status"`
	Provider          string         `json:"provider,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	ErrorDetail       string         `json:"error_detail,omitempty"`
	FallbackUsed      bool           `json:"fallback_used"`
}

// Sent builds a SENT result.
func Sent(ch Channel, recipientID int64, provider, messageID string) DeliveryResult {
	return DeliveryResult{
		Channel:           ch,
		RecipientID:       recipientID,
		Status:            StatusSent,
		Provider:          provider,
		ProviderMessageID: messageID,
	}
}

// Failed builds a FAILED result.
func Failed(ch Channel, recipientID int64, provider, detail string) DeliveryResult {
	return DeliveryResult{
		Channel:     ch,
		RecipientID: recipientID,
		Status:      StatusFailed,
		Provider:    provider,
		ErrorDetail: detail,
	}
}

// Skipped builds a SKIPPED result.
func Skipped(ch Channel, recipientID int64, detail string) DeliveryResult {
	return DeliveryResult{
		Channel:     ch,
		RecipientID: recipientID,
		Status:      StatusSkipped,
		ErrorDetail: detail,
	}
}

// DeliveryError pairs a failed recipient with the error text.
type DeliveryError struct {
	RecipientID int64  `json:"recipient_id"`
	Message     string `json:"message"`
}

// ChannelSummary holds the counters of one channel in a report.
type ChannelSummary struct {
	Sent    int             `json:"sent"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
	Errors  []DeliveryError `json:"errors"`
}

// DeliveryReport is the aggregated outcome of one dispatch call.
// It is derived from the per-channel results and never stored.
type DeliveryReport struct {
	Recipients        int                        `json:"recipients"`
	ChannelsAttempted int                        `json:"channels_attempted"`
	Channels          map[Channel]ChannelSummary `json:"channels"`
	TotalSent         int                        `json:"total_sent"`
	TotalFailed       int                        `json:"total_failed"`
	TotalSkipped      int                        `json:"total_skipped"`
	DeliveryRate      int                        `json:"delivery_rate"`
	OverallSuccess    bool                       `json:"overall_success"`
}

// DeliveryRecord is the persisted in-app notification row.
type DeliveryRecord struct {
	ID            int64
	RecipientID   int64
	CorrelationID *int64
	Type          NotificationType
	Title         string
	Message       string
	Priority      Priority
	SentBy        string
	IsRead        bool
	ReadAt        *time.Time
	CreatedAt     time.Time
}

// NewDeliveryRecord builds the in-app record of n for one recipient.
func NewDeliveryRecord(recipientID int64, n *Notification) *DeliveryRecord {
	return &DeliveryRecord{
		RecipientID:   recipientID,
		CorrelationID: n.CorrelationID,
		Type:          n.Type,
		Title:         n.Title,
		Message:       n.Message,
		Priority:      n.Priority,
		SentBy:        n.SentBy,
	}
}

// DateRange is a half-open [From, To) interval; either bound may be nil.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Validate ensures From is not after To when both are set.
func (r DateRange) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return &ValidationError{Field: "date_range", Message: "start date must not be after end date"}
	}
	return nil
}

// DeliveryStats summarises persisted in-app records over a date range.
type DeliveryStats struct {
	TotalNotifications     int64 `json:"total_notifications"`
	DeliveredNotifications int64 `json:"delivered_notifications"`
	DeliveryRate           int   `json:"delivery_rate"`
}

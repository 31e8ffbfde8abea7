package entity

import "strings"

// Recipient is a person addressable on zero or more channels.
// Recipients are resolved by the data layer and are read-only to the engine.
type Recipient struct {
	ID           int64
	DisplayName  string
	Email        string
	Phone        string // raw, unformatted
	PushToken    string
	PushPlatform string

	WhatsAppOptIn        bool
	NotificationsEnabled bool
}

// HasValidID reports whether the recipient can be stored as an in-app record owner.
func (r Recipient) HasValidID() bool {
	return r.ID > 0
}

// TargetSpec selects recipients for the resolver. RecipientIDs and Group
// are combined with OR; at least one must be set.
type TargetSpec struct {
	RecipientIDs []int64
	Group        string
}

// IsEmpty reports whether the target selects nobody.
func (s TargetSpec) IsEmpty() bool {
	return len(s.RecipientIDs) == 0 && strings.TrimSpace(s.Group) == ""
}

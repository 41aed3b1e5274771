package model

import (
	"time"
)

type NotificationKind string

const (
	KindDeadline   NotificationKind = "deadline"
	KindCompliance NotificationKind = "compliance"
	KindTeam       NotificationKind = "team"
	KindSystem     NotificationKind = "system"
	KindContract   NotificationKind = "contract"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// RelatedEntity points at the contract, team or other object a
// notification is about.
type RelatedEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Notification is a single notification record. Identity is ID;
// merge sources are deduplicated on it.
type Notification struct {
	ID             string                 `json:"id"`
	Kind           NotificationKind       `json:"kind"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Priority       Priority               `json:"priority"`
	Read           bool                   `json:"read"`
	ActionRequired bool                   `json:"action_required"`
	Timestamp      time.Time              `json:"timestamp"`
	OwnerID        string                 `json:"owner_id"`
	RelatedEntity  *RelatedEntity         `json:"related_entity,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// NotificationPage is the paginated response shape of the notification
// service's list endpoint. The page is authoritative for every field it
// carries.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	Total         int            `json:"total"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	Pages         int            `json:"pages"`
}

package model

// Domain frame types delivered over the push channel.
const (
	FrameNotification         = "notification"
	FrameNotificationRead     = "notification_read"
	FrameNotificationsAllRead = "notifications_all_read"
	FrameNotificationDeleted  = "notification_deleted"
)

// ReadFrame is the payload of a notification_read frame.
type ReadFrame struct {
	NotificationID string `json:"notification_id"`
}

// AllReadFrame is the payload of a notifications_all_read frame. The
// server reports how many records it flipped.
type AllReadFrame struct {
	UpdatedCount *int `json:"updated_count,omitempty"`
}

// DeletedFrame is the payload of a notification_deleted frame.
type DeletedFrame struct {
	NotificationID string `json:"notification_id"`
}

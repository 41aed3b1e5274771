package store

import (
	"github.com/rezacr588/pactoria-mvp-sub005/internal/model"
)

// Event is one push-delivered mutation of the notification aggregate.
// The four variants mirror the domain frame types on the push channel.
type Event interface {
	kind() string
}

// Added prepends a freshly delivered notification.
type Added struct {
	Record model.Notification
}

// Read flips one notification to read. Applying it to an already-read
// or absent record is a no-op.
type Read struct {
	ID string
}

// AllRead flips every held notification to read. UpdatedCount is the
// server-reported number of flipped records, when the frame carried
// one.
type AllRead struct {
	UpdatedCount *int
}

// Deleted removes one notification.
type Deleted struct {
	ID string
}

func (Added) kind() string   { return "addition" }
func (Read) kind() string    { return "mark_read" }
func (AllRead) kind() string { return "mark_all_read" }
func (Deleted) kind() string { return "deletion" }

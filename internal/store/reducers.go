package store

import (
	"github.com/rezacr588/pactoria-mvp-sub005/internal/model"
)

// Aggregate is the authoritative in-memory view of notifications. The
// list is newest first and bounded; the counts are server-authoritative
// and may exceed the bounded list length.
type Aggregate struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
	TotalCount    int                  `json:"total_count"`
	Page          int                  `json:"page"`
	PageSize      int                  `json:"page_size"`
	TotalPages    int                  `json:"total_pages"`
	Loading       bool                 `json:"loading"`
	Error         string               `json:"error,omitempty"`
}

func cloneRecords(records []model.Notification) []model.Notification {
	out := make([]model.Notification, len(records))
	copy(out, records)
	return out
}

// reduceLoaded replaces list, counts and pagination wholesale from a
// fetched page. The page is always authoritative for the fields it
// returns; nothing is merged.
func reduceLoaded(st Aggregate, page *model.NotificationPage, maxHeld int) Aggregate {
	records := cloneRecords(page.Notifications)
	if len(records) > maxHeld {
		records = records[:maxHeld]
	}
	st.Notifications = records
	st.UnreadCount = page.UnreadCount
	st.TotalCount = page.Total
	st.Page = page.Page
	st.PageSize = page.Size
	st.TotalPages = page.Pages
	st.Loading = false
	st.Error = ""
	return st
}

// reduceAdded prepends a pushed record. Truncation to the bound drops
// the oldest tail without touching the counts, which stay
// server-authoritative rather than list-length-derived.
func reduceAdded(st Aggregate, rec model.Notification, maxHeld int) Aggregate {
	records := make([]model.Notification, 0, len(st.Notifications)+1)
	records = append(records, rec)
	records = append(records, st.Notifications...)
	if len(records) > maxHeld {
		records = records[:maxHeld]
	}
	st.Notifications = records
	if !rec.Read {
		st.UnreadCount++
	}
	st.TotalCount++
	return st
}

// reduceRead marks one record read. The transition decrements
// UnreadCount exactly once per record: an absent or already-read id
// leaves the aggregate untouched.
func reduceRead(st Aggregate, id string) Aggregate {
	for i, rec := range st.Notifications {
		if rec.ID != id {
			continue
		}
		if rec.Read {
			return st
		}
		records := cloneRecords(st.Notifications)
		records[i].Read = true
		st.Notifications = records
		if st.UnreadCount > 0 {
			st.UnreadCount--
		}
		return st
	}
	return st
}

// reduceAllRead marks every held record read and zeroes the unread
// count.
func reduceAllRead(st Aggregate) Aggregate {
	records := cloneRecords(st.Notifications)
	for i := range records {
		records[i].Read = true
	}
	st.Notifications = records
	st.UnreadCount = 0
	return st
}

// reduceDeleted removes one record. The total always shrinks; the
// unread count only shrinks when the removed record was held and
// unread, since the read state of a record outside the bounded window
// is unknown.
func reduceDeleted(st Aggregate, id string) Aggregate {
	if st.TotalCount > 0 {
		st.TotalCount--
	}
	for i, rec := range st.Notifications {
		if rec.ID != id {
			continue
		}
		records := cloneRecords(st.Notifications)
		records = append(records[:i], records[i+1:]...)
		st.Notifications = records
		if !rec.Read && st.UnreadCount > 0 {
			st.UnreadCount--
		}
		return st
	}
	return st
}

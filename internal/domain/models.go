package domain

import (
	"strings"
	"time"
)

// SyncState is the coarse state of the collection synchronization engine.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateRunning SyncState = "running"
	SyncStateError   SyncState = "error"
)

// Valid reports whether s is one of the known states.
func (s SyncState) Valid() bool {
	switch s {
	case SyncStateIdle, SyncStateRunning, SyncStateError:
		return true
	}
	return false
}

// SyncStatus is the progress surface published for pollers. It is written
// outside the replace transaction, so readers may observe in-flight values.
type SyncStatus struct {
	State       SyncState `json:"status"`
	CurrentItem int       `json:"currentItem"`
	TotalItems  int       `json:"totalItems"`
	LastError   string    `json:"lastError"`
}

// CollectionItem is one instance of a release in the user's collection.
type CollectionItem struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	InstanceID     int64       `json:"instance_id" db:"instance_id"`
	ReleaseID      int         `json:"release_id" db:"release_id"`
	Artist         string      `json:"artist" db:"artist"`
	Title          string      `json:"title" db:"title"`
	Year           int         `json:"year" db:"year"`
	Format         string      `json:"format" db:"format"`
	Genres         StringSlice `json:"genres" db:"genres"`
	Styles         StringSlice `json:"styles" db:"styles"`
	CoverImageURL  string      `json:"cover_image_url" db:"cover_image_url"`
	DateAdded      time.Time   `json:"date_added" db:"date_added"`
	FolderID       int         `json:"folder_id" db:"folder_id"`
	Rating         int         `json:"rating" db:"rating"`
	Notes          string      `json:"notes" db:"notes"`
	Condition      string      `json:"condition" db:"condition"`
	SuggestedValue *float64    `json:"suggested_value" db:"suggested_value"`
	LastValueCheck *time.Time  `json:"last_value_check,omitempty" db:"last_value_check"`
}

// Normalize trims the free-text fields so repeated syncs store identical rows.
func (i *CollectionItem) Normalize() {
	i.Artist = strings.TrimSpace(i.Artist)
	i.Title = strings.TrimSpace(i.Title)
	i.Format = strings.TrimSpace(i.Format)
	i.Notes = strings.TrimSpace(i.Notes)
	i.Condition = strings.TrimSpace(i.Condition)
}

// ValueSnapshot is one historical point of the collection's aggregate value.
type ValueSnapshot struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	ItemCount int       `json:"item_count" db:"item_count"`
	MinValue  *float64  `json:"min_value" db:"min_value"`
	MeanValue *float64  `json:"mean_value" db:"mean_value"`
	MaxValue  *float64  `json:"max_value" db:"max_value"`
}

// Credential is the long-lived access token pair authorizing signed requests.
type Credential struct {
	Token     string    `json:"-" db:"token"`
	Secret    string    `json:"-" db:"secret"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HandshakeTicket is the short-lived request token secret held between the
// two legs of the handshake.
type HandshakeTicket struct {
	Token     string
	Secret    string
	ExpiresAt time.Time
}

// Expired reports whether the ticket can no longer be exchanged.
func (t HandshakeTicket) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

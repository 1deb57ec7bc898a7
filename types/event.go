package types

import "time"

// EventType names a domain event published after a successful write.
type EventType string

const (
	EventPostCreated   EventType = "post.created"
	EventPostUpdated   EventType = "post.updated"
	EventPostDeleted   EventType = "post.deleted"
	EventImageUploaded EventType = "image.uploaded"
)

// Event is the broker payload for post and upload notifications.
type Event struct {
	Type       EventType `json:"type"`
	PostID     int       `json:"postId,omitempty"`
	AuthorID   int       `json:"authorId,omitempty"`
	Published  *bool     `json:"published,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

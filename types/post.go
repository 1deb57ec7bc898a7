package types

import "time"

// Post is a blog entry written by a single author.
//
// A post is either a draft (Published=false) or published. Drafts are
// listed only to their author, but remain reachable by ID.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Title is the headline of the post. Never empty.
	Title string `json:"title" db:"title"`

	// Content is the body of the post. Never empty.
	Content string `json:"content" db:"content"`

	// Published reports whether the post is visible in the public listing.
	Published bool `json:"published" db:"published"`

	// ImageURL optionally references an uploaded image, e.g.
	// "/uploads/1712345678901-3f2a....jpg".
	ImageURL *string `json:"imageUrl" db:"image_url"`

	// AuthorID references the owning user. It is fixed at creation.
	AuthorID int `json:"authorId" db:"author_id"`

	// Author carries the author's public fields.
	Author Author `json:"author"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// PostInput is the writable part of a post, shared by create and update.
//
// A nil Published means "not provided": create stores false, update keeps
// the current value. An empty ImageURL is never written.
type PostInput struct {
	Title     string `json:"title" validate:"required"`
	Content   string `json:"content" validate:"required"`
	Published *bool  `json:"published,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

package domain

import "time"

// PostStatus enumerates the publication states of a post.
type PostStatus string

const (
	PostDraft     PostStatus = "DRAFT"
	PostPublished PostStatus = "PUBLISHED"
)

// Post is an article managed through the admin API.
type Post struct {
	ID            int64
	Title         string
	Slug          string
	Excerpt       string
	Body          string
	CoverImageURL string
	CategoryID    int64
	AuthorID      int64
	Status        PostStatus
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Category groups posts.
type Category struct {
	ID        int64
	Name      string
	Slug      string
	CreatedAt time.Time
}

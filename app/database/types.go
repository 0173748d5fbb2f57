package database

import (
	"time"
)

type User struct {
	ID          string
	Name        string
	Email       string
	Nationality string
	Verified    bool
	Points      int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserSeed carries the profile fields managed by account seed files.
// InitialPoints only applies when the account does not exist yet.
type UserSeed struct {
	ID            string
	Name          string
	Email         string
	Nationality   string
	Verified      bool
	InitialPoints int
}

type Article struct {
	ID                string
	Title             string
	Content           string
	Section           string
	Tags              []string
	MediaURLs         []string
	MediaURL          *string // First of MediaURLs, nil when the article has no media
	AuthorID          string
	AuthorName        string
	AuthorEmail       string
	AuthorNationality string
	AuthorVerified    bool
	LikeCount         int
	CommentCount      int
	LikedBy           []string
	SavedBy           []string
	PriorityScore     int
	CreatedAt         time.Time
}

// NewArticle holds the fields written when an article is created.
// Engagement counters always start at zero.
type NewArticle struct {
	Title             string
	Content           string
	Section           string
	Tags              []string
	MediaURLs         []string
	AuthorID          string
	AuthorName        string
	AuthorEmail       string
	AuthorNationality string
	AuthorVerified    bool
	PriorityScore     int
}

type ArticleFilter struct {
	Section  string
	AuthorID string
	Limit    int
}

package api

import (
	"time"

	"github.com/lysyi3m/pressroom/app/database"
	"github.com/lysyi3m/pressroom/app/feed"
	"github.com/lysyi3m/pressroom/app/media"
	"github.com/lysyi3m/pressroom/app/publish"
	"github.com/lysyi3m/pressroom/app/tasks"
)

type GeneratorInterface interface {
	Run(section string, articles []database.Article) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type SeedCounter interface {
	GetSeedCount() int
}

// uploadLimits bounds what APICreateArticle reads from a request
type uploadLimits struct {
	request int64
	image   int64
	video   int64
	pixels  func(blob media.Blob) error
}

type Handler struct {
	articleRepo database.ArticleRepository
	userRepo    database.UserRepository
	seeds       SeedCounter
	generator   GeneratorInterface
	publisher   tasks.Publisher
	tracker     *publish.Tracker
	scheduler   tasks.TaskSchedulerInterface
	results     *tasks.Results
	limits      uploadLimits
}

type ArticleResponse struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	Section       string         `json:"section"`
	Tags          []string       `json:"tags"`
	MediaURLs     []string       `json:"media_urls"`
	MediaURL      *string        `json:"media_url"`
	Author        AuthorResponse `json:"author"`
	LikeCount     int            `json:"like_count"`
	CommentCount  int            `json:"comment_count"`
	LikedBy       []string       `json:"liked_by"`
	SavedBy       []string       `json:"saved_by"`
	PriorityScore int            `json:"priority_score"`
	CreatedAt     time.Time      `json:"created_at"`
}

type AuthorResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Nationality string `json:"nationality"`
	Verified    bool   `json:"verified"`
}

type UserResponse struct {
	AuthorResponse
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newArticleResponse(article database.Article) ArticleResponse {
	return ArticleResponse{
		ID:        article.ID,
		Title:     article.Title,
		Content:   article.Content,
		Section:   article.Section,
		Tags:      article.Tags,
		MediaURLs: article.MediaURLs,
		MediaURL:  article.MediaURL,
		Author: AuthorResponse{
			ID:          article.AuthorID,
			Name:        article.AuthorName,
			Email:       article.AuthorEmail,
			Nationality: article.AuthorNationality,
			Verified:    article.AuthorVerified,
		},
		LikeCount:     article.LikeCount,
		CommentCount:  article.CommentCount,
		LikedBy:       article.LikedBy,
		SavedBy:       article.SavedBy,
		PriorityScore: article.PriorityScore,
		CreatedAt:     article.CreatedAt,
	}
}

func newUserResponse(user database.User) UserResponse {
	return UserResponse{
		AuthorResponse: AuthorResponse{
			ID:          user.ID,
			Name:        user.Name,
			Email:       user.Email,
			Nationality: user.Nationality,
			Verified:    user.Verified,
		},
		Points:    user.Points,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

package database

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")

type ArticleRepository interface {
	GetArticle(ctx context.Context, id string) (*Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, error)
	GetArticleCount(ctx context.Context) (int, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserCount(ctx context.Context) (int, error)

	UpsertUser(ctx context.Context, seed UserSeed) (bool, error)
}

// Tx is the set of writes that must commit or abort together
type Tx interface {
	GetPoints(ctx context.Context, userID string) (int, error)
	CreateArticle(ctx context.Context, article NewArticle) (string, error)
	IncrementPoints(ctx context.Context, userID string, delta int) error
}

type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const defaultListLimit = 50

var _ ArticleRepository = (*ArticleRepositoryImpl)(nil)

var articleColumns = []string{
	"id", "title", "content", "section", "tags", "media_urls", "media_url",
	"author_id", "author_name", "author_email", "author_nationality", "author_verified",
	"like_count", "comment_count", "liked_by", "saved_by", "priority_score", "created_at",
}

// ArticleRepositoryImpl handles read queries for published articles
type ArticleRepositoryImpl struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepositoryImpl {
	return &ArticleRepositoryImpl{db: db}
}

func (r *ArticleRepositoryImpl) GetArticle(ctx context.Context, id string) (*Article, error) {
	query, args, err := sq.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}

	return article, nil
}

// ListArticles returns articles ranked by priority score, newest first within a score
func (r *ArticleRepositoryImpl) ListArticles(ctx context.Context, filter ArticleFilter) ([]Article, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	builder := sq.Select(articleColumns...).
		From("articles").
		OrderBy("priority_score DESC", "created_at DESC", "rowid DESC").
		Limit(uint64(limit))

	if filter.Section != "" {
		builder = builder.Where(sq.Eq{"section": filter.Section})
	}
	if filter.AuthorID != "" {
		builder = builder.Where(sq.Eq{"author_id": filter.AuthorID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build articles query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating article rows: %w", err)
	}

	return articles, nil
}

func (r *ArticleRepositoryImpl) GetArticleCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get article count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		article                         Article
		tags, mediaURLs, likedBy, saved string
		mediaURL                        sql.NullString
	)

	err := row.Scan(
		&article.ID, &article.Title, &article.Content, &article.Section, &tags, &mediaURLs, &mediaURL,
		&article.AuthorID, &article.AuthorName, &article.AuthorEmail, &article.AuthorNationality, &article.AuthorVerified,
		&article.LikeCount, &article.CommentCount, &likedBy, &saved, &article.PriorityScore, &article.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mediaURL.Valid {
		article.MediaURL = &mediaURL.String
	}
	if article.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	if article.MediaURLs, err = decodeList(mediaURLs); err != nil {
		return nil, err
	}
	if article.LikedBy, err = decodeList(likedBy); err != nil {
		return nil, err
	}
	if article.SavedBy, err = decodeList(saved); err != nil {
		return nil, err
	}

	return &article, nil
}

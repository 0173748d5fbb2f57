package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

var _ Store = (*TxStore)(nil)

// TxStore runs multi-record writes inside a single SQLite transaction
type TxStore struct {
	db *DB
}

func NewTxStore(db *DB) *TxStore {
	return &TxStore{db: db}
}

// RunInTx commits when fn returns nil and rolls every write back otherwise
func (s *TxStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&txRepository{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type txRepository struct {
	tx *sql.Tx
}

func (r *txRepository) GetPoints(ctx context.Context, userID string) (int, error) {
	var points int
	err := r.tx.QueryRowContext(ctx, `SELECT points FROM users WHERE id = ?`, userID).Scan(&points)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get user points: %w", err)
	}
	return points, nil
}

func (r *txRepository) CreateArticle(ctx context.Context, article NewArticle) (string, error) {
	tags, err := encodeList(article.Tags)
	if err != nil {
		return "", err
	}
	mediaURLs, err := encodeList(article.MediaURLs)
	if err != nil {
		return "", err
	}

	var mediaURL *string
	if len(article.MediaURLs) > 0 {
		mediaURL = &article.MediaURLs[0]
	}

	id := uuid.NewString()
	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO articles (
			id, title, content, section, tags, media_urls, media_url,
			author_id, author_name, author_email, author_nationality, author_verified,
			like_count, comment_count, liked_by, saved_by, priority_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '[]', '[]', ?)
	`, id, article.Title, article.Content, article.Section, tags, mediaURLs, mediaURL,
		article.AuthorID, article.AuthorName, article.AuthorEmail, article.AuthorNationality, article.AuthorVerified,
		article.PriorityScore)
	if err != nil {
		return "", fmt.Errorf("failed to create article: %w", err)
	}

	return id, nil
}

func (r *txRepository) IncrementPoints(ctx context.Context, userID string, delta int) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE users
		SET points = points + ?, updated_at = strftime('%Y-%m-%d %H:%M:%f', 'now')
		WHERE id = ?
	`, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to update user points: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	return nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(raw string) ([]string, error) {
	values := []string{}
	if raw == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return values, nil
}

package publish

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lysyi3m/pressroom/app/media"
)

const MaxImages = 2

var (
	ErrUploadInProgress   = errors.New("an upload is already in progress")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrUnknownAuthor      = errors.New("unknown author")
)

// AuthorInfo is the author's identity captured when the post was submitted
type AuthorInfo struct {
	ID          string
	Name        string
	Email       string
	Nationality string
	Verified    bool
}

type UploadPayload struct {
	Title   string
	Content string
	Section string
	Tags    []string
	Media   media.Input
	Author  AuthorInfo
}

// Validate checks the fields a caller must supply before starting an upload
func (p UploadPayload) Validate() error {
	requiredFields := []struct {
		name  string
		value string
	}{
		{"title", p.Title},
		{"content", p.Content},
		{"section", p.Section},
		{"author id", p.Author.ID},
	}

	for _, field := range requiredFields {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s is required", field.name)
		}
	}

	if images, ok := p.Media.(media.Images); ok && len(images) > MaxImages {
		return fmt.Errorf("at most %d images can be attached, got %d", MaxImages, len(images))
	}

	return nil
}

type Result struct {
	ArticleID string
	MediaURLs []string
}

func (r Result) OK() bool {
	return r.ArticleID != ""
}

type Stage string

const (
	StagePreflight Stage = "preflight"
	StageStaging   Stage = "staging"
	StagePersist   Stage = "persist"
	StageDebit     Stage = "debit"
)

// PublishError reports the pipeline stage a run failed in
type PublishError struct {
	Stage Stage
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// StageOf extracts the failed stage from an error returned by StartUpload
func StageOf(err error) (Stage, bool) {
	var publishErr *PublishError
	if errors.As(err, &publishErr) {
		return publishErr.Stage, true
	}
	return "", false
}

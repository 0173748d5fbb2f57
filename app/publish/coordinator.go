package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/pressroom/app/database"
	"github.com/lysyi3m/pressroom/app/media"
)

const (
	progressStarted    = 5
	progressPersisting = 90
	progressDone       = 100
)

const (
	DefaultPublishCost           = 20
	DefaultVerifiedPriorityScore = 1000
	DefaultResetDelay            = time.Second
)

type MediaStager interface {
	StageMedia(ctx context.Context, input media.Input, report media.ProgressFunc) ([]string, error)
}

var _ MediaStager = (*media.Stager)(nil)

type AccountReader interface {
	GetUser(ctx context.Context, id string) (*database.User, error)
}

type Rules struct {
	PublishCost           int
	VerifiedPriorityScore int
	ResetDelay            time.Duration
}

func DefaultRules() Rules {
	return Rules{
		PublishCost:           DefaultPublishCost,
		VerifiedPriorityScore: DefaultVerifiedPriorityScore,
		ResetDelay:            DefaultResetDelay,
	}
}

// Coordinator runs the publication pipeline: stage media, then create the
// article and debit its author in one transaction.
type Coordinator struct {
	stager   MediaStager
	accounts AccountReader
	store    database.Store
	tracker  *Tracker
	notifier Notifier
	rules    Rules
}

func NewCoordinator(stager MediaStager, accounts AccountReader, store database.Store,
	tracker *Tracker, notifier Notifier, rules Rules) *Coordinator {
	if tracker == nil {
		tracker = NewTracker()
	}
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Coordinator{
		stager:   stager,
		accounts: accounts,
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		rules:    rules,
	}
}

func (c *Coordinator) Tracker() *Tracker {
	return c.tracker
}

// StartUpload publishes payload. It fails with ErrUploadInProgress while
// another run is active and with a *PublishError when a stage fails.
func (c *Coordinator) StartUpload(ctx context.Context, payload UploadPayload) (Result, error) {
	if err := c.tracker.Begin(progressStarted); err != nil {
		return Result{}, err
	}

	startedAt := time.Now()
	result, err := c.run(ctx, payload)
	if err != nil {
		stage, _ := StageOf(err)
		slog.Error("Publication failed",
			"author", payload.Author.ID,
			"stage", stage,
			"duration", time.Since(startedAt),
			"error", err)

		c.notifier.Notify(NoticeFor(err))
		c.tracker.Finish(c.rules.ResetDelay)
		return Result{}, err
	}

	c.tracker.Set(progressDone)

	slog.Info("Publication completed",
		"article", result.ArticleID,
		"author", payload.Author.ID,
		"media", len(result.MediaURLs),
		"duration", time.Since(startedAt))

	c.notifier.Notify(NoticeFor(nil))
	c.tracker.Finish(c.rules.ResetDelay)
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, payload UploadPayload) (Result, error) {
	if err := c.checkBalance(ctx, payload.Author.ID); err != nil {
		return Result{}, &PublishError{Stage: StagePreflight, Err: err}
	}

	urls, err := c.stager.StageMedia(ctx, payload.Media, c.tracker.Set)
	if err != nil {
		return Result{}, &PublishError{Stage: StageStaging, Err: err}
	}

	c.tracker.Set(progressPersisting)

	article := c.buildArticle(payload, urls)

	var articleID string
	stage := StagePersist
	err = c.store.RunInTx(ctx, func(tx database.Tx) error {
		// Re-check of the preflight balance; no debit has been attempted yet
		stage = StagePreflight
		points, err := tx.GetPoints(ctx, payload.Author.ID)
		if err != nil {
			return err
		}
		if points < c.rules.PublishCost {
			return fmt.Errorf("balance %d below cost %d: %w", points, c.rules.PublishCost, ErrInsufficientPoints)
		}

		stage = StagePersist
		articleID, err = tx.CreateArticle(ctx, article)
		if err != nil {
			return err
		}

		stage = StageDebit
		if err := tx.IncrementPoints(ctx, payload.Author.ID, -c.rules.PublishCost); err != nil {
			return err
		}

		stage = StagePersist
		return nil
	})
	if err != nil {
		return Result{}, &PublishError{Stage: stage, Err: err}
	}

	return Result{ArticleID: articleID, MediaURLs: urls}, nil
}

func (c *Coordinator) checkBalance(ctx context.Context, authorID string) error {
	user, err := c.accounts.GetUser(ctx, authorID)
	if err != nil {
		return fmt.Errorf("failed to load author: %w", err)
	}
	if user == nil {
		return fmt.Errorf("author %s: %w", authorID, ErrUnknownAuthor)
	}
	if user.Points < c.rules.PublishCost {
		return fmt.Errorf("balance %d below cost %d: %w", user.Points, c.rules.PublishCost, ErrInsufficientPoints)
	}
	return nil
}

func (c *Coordinator) buildArticle(payload UploadPayload, urls []string) database.NewArticle {
	priority := 0
	if payload.Author.Verified {
		priority = c.rules.VerifiedPriorityScore
	}

	return database.NewArticle{
		Title:             normalizeText(payload.Title),
		Content:           normalizeText(payload.Content),
		Section:           NormalizeSection(payload.Section),
		Tags:              normalizeTags(payload.Tags),
		MediaURLs:         urls,
		AuthorID:          payload.Author.ID,
		AuthorName:        payload.Author.Name,
		AuthorEmail:       payload.Author.Email,
		AuthorNationality: payload.Author.Nationality,
		AuthorVerified:    payload.Author.Verified,
		PriorityScore:     priority,
	}
}

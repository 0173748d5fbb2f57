package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/pressroom/app/publish"
)

type Publisher interface {
	StartUpload(ctx context.Context, payload publish.UploadPayload) (publish.Result, error)
}

var _ Publisher = (*publish.Coordinator)(nil)

// PublishArticleTask runs one publication in the background. It is never
// retried: a failed run is reported and left to the author.
type PublishArticleTask struct {
	Task
	payload   publish.UploadPayload
	publisher Publisher
	results   *Results
}

func NewPublishArticleTask(payload publish.UploadPayload, publisher Publisher, results *Results) *PublishArticleTask {
	task := NewTask(TaskTypePublishArticle, payload.Author.ID)
	task.MaxRetries = 0

	t := &PublishArticleTask{
		Task:      task,
		payload:   payload,
		publisher: publisher,
		results:   results,
	}
	t.record(TaskResult{Status: TaskStatusQueued})
	return t
}

func (t *PublishArticleTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		t.record(TaskResult{Status: TaskStatusFailed, Error: ctx.Err().Error()})
		return ctx.Err()
	default:
	}

	t.record(TaskResult{Status: TaskStatusRunning})

	result, err := t.publisher.StartUpload(ctx, t.payload)
	if err != nil {
		stage, _ := publish.StageOf(err)
		t.record(TaskResult{
			Status:  TaskStatusFailed,
			Stage:   stage,
			Message: publish.NoticeFor(err).Message,
			Error:   err.Error(),
		})
		return fmt.Errorf("failed to publish article: %w", err)
	}

	t.record(TaskResult{
		Status:    TaskStatusSucceeded,
		ArticleID: result.ArticleID,
		MediaURLs: result.MediaURLs,
		Message:   publish.NoticeFor(nil).Message,
	})

	slog.Info("Task completed",
		"type", "PublishArticle",
		"task_id", t.ID,
		"author", t.Subject,
		"article", result.ArticleID,
		"duration", t.GetDuration())

	return nil
}

func (t *PublishArticleTask) record(result TaskResult) {
	if t.results == nil {
		return
	}
	result.ID = t.ID
	result.Type = t.Type
	t.results.Put(result)
}

// Abandon marks a task that never reached the queue as failed
func (t *PublishArticleTask) Abandon(err error) {
	t.record(TaskResult{Status: TaskStatusFailed, Error: err.Error()})
}

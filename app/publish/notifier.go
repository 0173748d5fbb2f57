package publish

import (
	"errors"
	"log/slog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

const (
	MessagePublished        = "Published successfully"
	MessageUploadFailed     = "Upload failed"
	MessagePublishError     = "Publish error"
	MessageNotEnoughPoints  = "Not enough points to publish"
	MessageUploadInProgress = "An upload is already in progress"
)

// Notice is the user-facing message for the end of a run
type Notice struct {
	Level   Level
	Message string
}

type Notifier interface {
	Notify(notice Notice)
}

type LogNotifier struct{}

func (LogNotifier) Notify(notice Notice) {
	if notice.Level == LevelError {
		slog.Warn("Publication notice", "level", notice.Level, "message", notice.Message)
		return
	}
	slog.Info("Publication notice", "level", notice.Level, "message", notice.Message)
}

// NoticeFor maps the outcome of StartUpload to the message shown to the user
func NoticeFor(err error) Notice {
	if err == nil {
		return Notice{Level: LevelSuccess, Message: MessagePublished}
	}

	if errors.Is(err, ErrUploadInProgress) {
		return Notice{Level: LevelError, Message: MessageUploadInProgress}
	}

	stage, _ := StageOf(err)
	switch {
	case errors.Is(err, ErrInsufficientPoints):
		return Notice{Level: LevelError, Message: MessageNotEnoughPoints}
	case stage == StageStaging:
		return Notice{Level: LevelError, Message: MessageUploadFailed}
	default:
		return Notice{Level: LevelError, Message: MessagePublishError}
	}
}

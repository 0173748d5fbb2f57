package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	stagingStartProgress = 10
	stagingSpan          = 70
	videoDoneProgress    = 80
)

// ProgressFunc receives the overall pipeline percentage after each staging step
type ProgressFunc func(percent int)

type ImageTransformer interface {
	Run(blob Blob) (Blob, error)
}

var _ ImageTransformer = (*Downsizer)(nil)

// Stager uploads the media of one post, one item at a time and in order
type Stager struct {
	store       Store
	transformer ImageTransformer
	folder      string
}

func NewStager(store Store, transformer ImageTransformer, folder string) *Stager {
	return &Stager{
		store:       store,
		transformer: transformer,
		folder:      folder,
	}
}

// StageMedia returns the permanent URLs of input in input order. Any failed
// upload fails the whole operation and no partial list is returned.
func (s *Stager) StageMedia(ctx context.Context, input Input, report ProgressFunc) ([]string, error) {
	if report == nil {
		report = func(int) {}
	}

	switch in := input.(type) {
	case Images:
		return s.stageImages(ctx, in, report)
	case Video:
		return s.stageVideo(ctx, in, report)
	case NoMedia, nil:
		return []string{}, nil
	default:
		return nil, fmt.Errorf("unsupported media input %T", input)
	}
}

func (s *Stager) stageImages(ctx context.Context, images Images, report ProgressFunc) ([]string, error) {
	report(stagingStartProgress)

	urls := make([]string, 0, len(images))
	for i, image := range images {
		blob, err := s.transform(image)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare image %d of %d: %w", i+1, len(images), err)
		}

		url, err := s.store.Upload(ctx, UploadRequest{
			Blob:         blob,
			Folder:       s.folder,
			ResourceType: ResourceImage,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload image %d of %d: %w", i+1, len(images), err)
		}
		urls = append(urls, url)

		report(stagingStartProgress + (i+1)*stagingSpan/len(images))

		slog.Debug("Image staged", "index", i, "name", blob.Name, "bytes", len(blob.Data), "url", url)
	}

	return urls, nil
}

func (s *Stager) stageVideo(ctx context.Context, video Video, report ProgressFunc) ([]string, error) {
	url, err := s.store.Upload(ctx, UploadRequest{
		Blob:         video.Blob,
		Folder:       s.folder,
		ResourceType: ResourceVideo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload video: %w", err)
	}

	report(videoDoneProgress)

	slog.Debug("Video staged", "name", video.Blob.Name, "bytes", len(video.Blob.Data), "url", url)

	return []string{url}, nil
}

// transform falls back to the original image unless it exceeds the pixel limit
func (s *Stager) transform(image Blob) (Blob, error) {
	if s.transformer == nil {
		return image, nil
	}

	resized, err := s.transformer.Run(image)
	if errors.Is(err, ErrImageTooLarge) {
		return Blob{}, err
	}
	if err != nil {
		slog.Warn("Image downsizing failed, uploading original", "name", image.Name, "error", err)
		return image, nil
	}
	return resized, nil
}

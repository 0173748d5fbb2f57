package media

import "context"

type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
)

// Blob is an in-memory file selected by the user
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

type UploadRequest struct {
	Blob         Blob
	Folder       string
	ResourceType ResourceType
}

// Store is a remote media host returning a permanent, publicly servable URL
type Store interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// Input is the media attached to a post: Images, Video or NoMedia.
type Input interface {
	mediaInput()
}

type Images []Blob

type Video struct {
	Blob Blob
}

type NoMedia struct{}

func (Images) mediaInput()  {}
func (Video) mediaInput()   {}
func (NoMedia) mediaInput() {}

// InputFrom builds the variant for loosely collected form fields.
// Images take precedence; a video sent together with images is ignored.
func InputFrom(images []Blob, video *Blob) Input {
	if len(images) > 0 {
		return Images(images)
	}
	if video != nil && len(video.Data) > 0 {
		return Video{Blob: *video}
	}
	return NoMedia{}
}

// Count reports how many uploads staging the input performs
func Count(input Input) int {
	switch in := input.(type) {
	case Images:
		return len(in)
	case Video:
		return 1
	default:
		return 0
	}
}

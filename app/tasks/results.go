package tasks

import (
	"sync"
	"time"

	"github.com/lysyi3m/pressroom/app/publish"
)

const defaultResultCapacity = 1000

type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
)

// TaskResult is the observable outcome of an asynchronous publish request
type TaskResult struct {
	ID        string        `json:"id"`
	Type      TaskType      `json:"type"`
	Status    TaskStatus    `json:"status"`
	ArticleID string        `json:"article_id,omitempty"`
	MediaURLs []string      `json:"media_urls,omitempty"`
	Stage     publish.Stage `json:"stage,omitempty"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Results keeps the most recent task outcomes in memory. The oldest entry is
// evicted once capacity is reached.
type Results struct {
	mu       sync.RWMutex
	entries  map[string]TaskResult
	order    []string
	capacity int
}

func NewResults(capacity int) *Results {
	if capacity <= 0 {
		capacity = defaultResultCapacity
	}
	return &Results{
		entries:  make(map[string]TaskResult),
		capacity: capacity,
	}
}

func (r *Results) Get(id string) (TaskResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, ok := r.entries[id]
	return result, ok
}

func (r *Results) Put(result TaskResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result.UpdatedAt = time.Now().UTC()

	if _, exists := r.entries[result.ID]; !exists {
		r.order = append(r.order, result.ID)
		if len(r.order) > r.capacity {
			delete(r.entries, r.order[0])
			r.order = r.order[1:]
		}
	}
	r.entries[result.ID] = result
}

package publish

import (
	"sync"
	"time"
)

const subscriberBuffer = 16

type State struct {
	IsUploading bool `json:"is_uploading"`
	Progress    int  `json:"progress"`
}

// Tracker owns the upload progress of one Coordinator. Only one run may be
// active at a time; a run stays active until its delayed reset fires.
type Tracker struct {
	mu          sync.Mutex
	state       State
	subscribers map[int]chan State
	nextID      int
	resetTimer  *time.Timer
}

func NewTracker() *Tracker {
	return &Tracker{
		subscribers: make(map[int]chan State),
	}
}

// Begin marks a run as started at the given progress
func (t *Tracker) Begin(progress int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.IsUploading {
		return ErrUploadInProgress
	}

	t.state = State{IsUploading: true, Progress: clamp(progress)}
	t.broadcast()
	return nil
}

// Set raises the progress of the active run; lower values are ignored
func (t *Tracker) Set(progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress = clamp(progress)
	if !t.state.IsUploading || progress <= t.state.Progress {
		return
	}

	t.state.Progress = progress
	t.broadcast()
}

// Finish resets the tracker to idle once delay has passed
func (t *Tracker) Finish(delay time.Duration) {
	if delay <= 0 {
		t.reset()
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resetTimer != nil {
		t.resetTimer.Stop()
	}
	t.resetTimer = time.AfterFunc(delay, t.reset)
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Subscribe returns a channel receiving the current state followed by every
// change. Slow subscribers only miss intermediate states, never the latest.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++

	ch := make(chan State, subscriberBuffer)
	ch <- t.state
	t.subscribers[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subscribers[id]; ok {
			delete(t.subscribers, id)
			close(sub)
		}
	}

	return ch, cancel
}

func (t *Tracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetTimer = nil
	t.state = State{}
	t.broadcast()
}

// broadcast must be called with mu held
func (t *Tracker) broadcast() {
	for _, ch := range t.subscribers {
		select {
		case ch <- t.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- t.state
		}
	}
}

func clamp(progress int) int {
	return min(max(progress, 0), 100)
}

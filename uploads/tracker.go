package uploads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dreamsun/imagehost"
)

// State is the lifecycle state of a tracked upload.
type State string

const (
	StatePending  State = "pending"
	StateUploaded State = "uploaded"
	StateFailed   State = "failed"
	StateRemoved  State = "removed"
)

// ErrNotFound is returned for ids that are unknown or belong to another owner.
var ErrNotFound = errors.New("upload not found")

// Entry is a snapshot of one tracked upload.
type Entry struct {
	ID         string    `json:"id"`
	Owner      string    `json:"-"`
	MimeType   string    `json:"mimeType"`
	Size       int       `json:"size"`
	State      State     `json:"state"`
	URL        string    `json:"url,omitempty"`
	Error      string    `json:"error,omitempty"`
	StatusCode int       `json:"statusCode,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type tracked struct {
	Entry
	cancel context.CancelFunc
	done   chan struct{}
}

// Tracker runs uploads in the background and tracks each one under an id
// assigned when it starts. An upload only ever updates its own entry, and a
// removed entry is never brought back by a late result.
type Tracker struct {
	uploader imagehost.Uploader
	sem      chan struct{}

	mu      sync.Mutex
	entries map[string]*tracked
	order   []string
}

// NewTracker creates a Tracker running at most maxConcurrent uploads at once.
func NewTracker(uploader imagehost.Uploader, maxConcurrent int) *Tracker {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Tracker{
		uploader: uploader,
		sem:      make(chan struct{}, maxConcurrent),
		entries:  make(map[string]*tracked),
	}
}

// Start begins uploading data and returns the pending entry immediately.
// The upload is bound to ctx and to the entry's own cancellation.
func (t *Tracker) Start(ctx context.Context, owner string, data []byte, mimeType string) Entry {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e := &tracked{
		Entry: Entry{
			ID:        uuid.NewString(),
			Owner:     owner,
			MimeType:  mimeType,
			Size:      len(data),
			State:     StatePending,
			CreatedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	t.entries[e.ID] = e
	t.order = append(t.order, e.ID)
	snapshot := e.Entry
	t.mu.Unlock()

	go t.run(ctx, e.ID, e.done, data, mimeType)
	return snapshot
}

func (t *Tracker) run(ctx context.Context, id string, done chan struct{}, data []byte, mimeType string) {
	defer close(done)

	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	case <-ctx.Done():
		t.complete(id, "", ctx.Err())
		return
	}

	url, err := t.uploader.Upload(ctx, data, mimeType)
	t.complete(id, url, err)
}

// complete records a result for id, unless the entry was removed meanwhile.
func (t *Tracker) complete(id, url string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.State != StatePending {
		log.Printf("Discarding late upload result for %s", id)
		return
	}
	e.cancel()
	if err != nil {
		e.State = StateFailed
		e.Error = err.Error()
		var uploadErr *imagehost.UploadError
		if errors.As(err, &uploadErr) {
			e.Error = uploadErr.Message
			e.StatusCode = uploadErr.StatusCode
		}
		log.Printf("Upload %s failed: %v", id, err)
		return
	}
	e.State = StateUploaded
	e.URL = url
}

// Remove cancels an in-flight upload and drops the entry.
func (t *Tracker) Remove(owner, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.Owner != owner {
		return ErrNotFound
	}
	e.State = StateRemoved
	e.cancel()
	delete(t.entries, id)
	t.order = slices.DeleteFunc(t.order, func(v string) bool { return v == id })
	return nil
}

// Get returns a snapshot of the entry with id.
func (t *Tracker) Get(owner, id string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || e.Owner != owner {
		return Entry{}, ErrNotFound
	}
	return e.Entry, nil
}

// List returns the owner's entries in creation order.
func (t *Tracker) List(owner string) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := []Entry{}
	for _, id := range t.order {
		if e := t.entries[id]; e.Owner == owner {
			out = append(out, e.Entry)
		}
	}
	return out
}

// Wait blocks until the upload with id finishes or ctx is done, then returns
// its final snapshot.
func (t *Tracker) Wait(ctx context.Context, owner, id string) (Entry, error) {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok || e.Owner != owner {
		t.mu.Unlock()
		return Entry{}, ErrNotFound
	}
	done := e.done
	t.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return Entry{}, fmt.Errorf("waiting for upload %s: %w", id, ctx.Err())
	}
	return t.Get(owner, id)
}

// URLs returns the durable URLs of the owner's finished uploads, in creation order.
func (t *Tracker) URLs(owner string) []string {
	var urls []string
	for _, e := range t.List(owner) {
		if e.State == StateUploaded {
			urls = append(urls, e.URL)
		}
	}
	return urls
}

// Shutdown cancels every in-flight upload.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.State == StatePending {
			e.cancel()
		}
	}
}

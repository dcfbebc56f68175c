package uploads

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dreamsun/imagehost"
)

// gatedUploader blocks each upload until its gate is released.
type gatedUploader struct {
	mu      sync.Mutex
	gates   map[string]chan error
	started chan string
	active  atomic.Int32
	peak    atomic.Int32
}

func newGatedUploader() *gatedUploader {
	return &gatedUploader{gates: make(map[string]chan error), started: make(chan string, 16)}
}

func (g *gatedUploader) gate(key string) chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[key]
	if !ok {
		ch = make(chan error, 1)
		g.gates[key] = ch
	}
	return ch
}

func (g *gatedUploader) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	n := g.active.Add(1)
	defer g.active.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	key := string(data)
	g.started <- key
	select {
	case err := <-g.gate(key):
		if err != nil {
			return "", err
		}
		return "https://cdn.example/" + key, nil
	case <-ctx.Done():
		// Simulate a backend that ignores cancellation and still reports success.
		<-g.gate(key)
		return "https://cdn.example/" + key, nil
	}
}

func waitState(t *testing.T, tr *Tracker, owner, id string) Entry {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	e, err := tr.Wait(ctx, owner, id)
	require.NoError(t, err)
	return e
}

func TestRemovedUploadDoesNotReappear(t *testing.T) {
	up := newGatedUploader()
	tr := NewTracker(up, 4)

	first := tr.Start(context.Background(), "alice", []byte("first"), "image/png")
	second := tr.Start(context.Background(), "alice", []byte("second"), "image/png")
	<-up.started
	<-up.started

	require.NoError(t, tr.Remove("alice", first.ID))
	up.gate("first") <- nil
	up.gate("second") <- nil

	got := waitState(t, tr, "alice", second.ID)
	assert.Equal(t, StateUploaded, got.State)
	assert.Equal(t, "https://cdn.example/second", got.URL)

	// Give the removed upload's goroutine time to deliver its late result.
	require.Eventually(t, func() bool { return up.active.Load() == 0 }, time.Second, 5*time.Millisecond)

	list := tr.List("alice")
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)
	_, err := tr.Get("alice", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"https://cdn.example/second"}, tr.URLs("alice"))
}

func TestFailureIsIsolated(t *testing.T) {
	up := newGatedUploader()
	tr := NewTracker(up, 4)

	a := tr.Start(context.Background(), "bob", []byte("a"), "image/jpeg")
	b := tr.Start(context.Background(), "bob", []byte("b"), "image/jpeg")
	<-up.started
	<-up.started

	up.gate("a") <- &imagehost.UploadError{Message: "too large", StatusCode: 413}
	up.gate("b") <- nil

	gotA := waitState(t, tr, "bob", a.ID)
	gotB := waitState(t, tr, "bob", b.ID)
	assert.Equal(t, StateFailed, gotA.State)
	assert.Equal(t, "too large", gotA.Error)
	assert.Equal(t, 413, gotA.StatusCode)
	assert.Equal(t, StateUploaded, gotB.State)
}

func TestIdenticalBytesGetDistinctEntries(t *testing.T) {
	up := newGatedUploader()
	tr := NewTracker(up, 4)

	one := tr.Start(context.Background(), "carol", []byte("same"), "image/png")
	two := tr.Start(context.Background(), "carol", []byte("same"), "image/png")
	assert.NotEqual(t, one.ID, two.ID)
	assert.Equal(t, StatePending, one.State)

	<-up.started
	<-up.started
	up.gate("same") <- nil
	up.gate("same") <- nil
	waitState(t, tr, "carol", one.ID)
	waitState(t, tr, "carol", two.ID)
	assert.Len(t, tr.List("carol"), 2)
}

func TestOwnerScoping(t *testing.T) {
	up := newGatedUploader()
	tr := NewTracker(up, 1)

	e := tr.Start(context.Background(), "dave", []byte("x"), "image/png")
	_, err := tr.Get("mallory", e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, tr.Remove("mallory", e.ID), ErrNotFound)
	assert.Empty(t, tr.List("mallory"))

	<-up.started
	up.gate("x") <- nil
	waitState(t, tr, "dave", e.ID)
}

func TestConcurrencyIsBounded(t *testing.T) {
	up := newGatedUploader()
	tr := NewTracker(up, 2)

	var ids []string
	for _, key := range []string{"p", "q", "r", "s"} {
		ids = append(ids, tr.Start(context.Background(), "erin", []byte(key), "image/png").ID)
	}
	for _, key := range []string{"p", "q", "r", "s"} {
		up.gate(key) <- nil
	}
	for _, id := range ids {
		assert.Equal(t, StateUploaded, waitState(t, tr, "erin", id).State)
	}
	assert.LessOrEqual(t, up.peak.Load(), int32(2))
}

func TestShutdownCancelsQueuedUploads(t *testing.T) {
	up := newGatedUploader()
	tr := NewTracker(up, 1)

	running := tr.Start(context.Background(), "frank", []byte("running"), "image/png")
	<-up.started
	queued := tr.Start(context.Background(), "frank", []byte("queued"), "image/png")

	tr.Shutdown()
	got := waitState(t, tr, "frank", queued.ID)
	assert.Equal(t, StateFailed, got.State)
	assert.Equal(t, context.Canceled.Error(), got.Error)

	up.gate("running") <- nil
	waitState(t, tr, "frank", running.ID)
}

package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu     sync.Mutex
	events []Status
}

func (r *recorder) notify(s Status) {
	r.mu.Lock()
	r.events = append(r.events, s)
	r.mu.Unlock()
}

func (r *recorder) all() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.events...)
}

func TestOnlineOfflineSymmetry(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.notify)

	tr.MarkOnline("1")
	tr.MarkOffline("1")

	events := rec.all()
	assert.Len(t, events, 2)
	assert.True(t, events[0].Online)
	assert.False(t, events[1].Online)
	assert.Equal(t, "1", events[1].UserID)
	assert.False(t, events[1].LastSeen.IsZero())
	assert.False(t, tr.IsOnline("1"))
}

func TestMultipleConnectionsStayOnline(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.notify)

	tr.MarkOnline("1")
	tr.MarkOnline("1") // second tab: no transition
	tr.MarkOffline("1")

	assert.True(t, tr.IsOnline("1"), "one connection remains")
	assert.Len(t, rec.all(), 1, "only the first connect broadcasts")

	tr.MarkOffline("1")
	assert.False(t, tr.IsOnline("1"))
	assert.Len(t, rec.all(), 2)
}

func TestOfflineWithoutOnlineIsNoop(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.notify)

	tr.MarkOffline("ghost")
	assert.Empty(t, rec.all())
}

func TestSnapshotSorted(t *testing.T) {
	tr := NewTracker(nil)
	tr.MarkOnline("3")
	tr.MarkOnline("1")
	tr.MarkOnline("2")
	tr.MarkOffline("2")

	assert.Equal(t, []string{"1", "3"}, tr.Snapshot())
}

func TestConcurrentCounting(t *testing.T) {
	tr := NewTracker(nil)
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.MarkOnline("1")
			tr.MarkOffline("1")
		}()
	}
	wg.Wait()
	assert.False(t, tr.IsOnline("1"))
	assert.Empty(t, tr.Snapshot())
}

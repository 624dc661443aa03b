package presence

import (
	"sort"
	"sync"
	"time"
)

// Status is broadcast to interested parties when a user transitions between
// online and offline.
type Status struct {
	UserID   string    `json:"userId"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

// NotifyFunc receives online/offline transitions. It is called outside the
// tracker's lock and must not call back into the tracker synchronously if it
// cannot tolerate reordering.
type NotifyFunc func(Status)

// Tracker maintains per-user live connection counts. A user is online while at
// least one connection is open; extra tabs or devices increment the count
// without firing another transition. State is in-memory only: a process
// restart resets everyone to offline.
type Tracker struct {
	mu       sync.Mutex
	counts   map[string]int
	lastSeen map[string]time.Time
	notify   NotifyFunc
	now      func() time.Time
}

func NewTracker(notify NotifyFunc) *Tracker {
	return &Tracker{
		counts:   make(map[string]int),
		lastSeen: make(map[string]time.Time),
		notify:   notify,
		now:      time.Now,
	}
}

// MarkOnline records one more live connection for the user. Broadcasts
// user-online only on the 0 -> 1 transition.
func (t *Tracker) MarkOnline(userID string) {
	t.mu.Lock()
	t.counts[userID]++
	first := t.counts[userID] == 1
	now := t.now().UTC()
	t.lastSeen[userID] = now
	t.mu.Unlock()

	if first && t.notify != nil {
		t.notify(Status{UserID: userID, Online: true, LastSeen: now})
	}
}

// MarkOffline records one connection closing. Broadcasts user-offline only
// when the last connection is gone.
func (t *Tracker) MarkOffline(userID string) {
	t.mu.Lock()
	if t.counts[userID] == 0 {
		t.mu.Unlock()
		return
	}
	t.counts[userID]--
	last := t.counts[userID] == 0
	now := t.now().UTC()
	t.lastSeen[userID] = now
	if last {
		delete(t.counts, userID)
	}
	t.mu.Unlock()

	if last && t.notify != nil {
		t.notify(Status{UserID: userID, Online: false, LastSeen: now})
	}
}

// Snapshot returns the currently online user IDs, sorted for stable output.
// Lets a freshly connected client render presence without waiting for
// broadcasts.
func (t *Tracker) Snapshot() []string {
	t.mu.Lock()
	out := make([]string, 0, len(t.counts))
	for id := range t.counts {
		out = append(out, id)
	}
	t.mu.Unlock()
	sort.Strings(out)
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[userID] > 0
}

// LastSeen returns the last connect or disconnect time for the user, zero if
// never seen.
func (t *Tracker) LastSeen(userID string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen[userID]
}

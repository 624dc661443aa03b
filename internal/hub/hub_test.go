package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	got  [][]byte
	full bool
}

func (f *fakeConn) Enqueue(p []byte) bool {
	if f.full {
		return false
	}
	f.got = append(f.got, p)
	return true
}

func TestSendToUserFansOutToAllConnections(t *testing.T) {
	h := New()
	a, b := &fakeConn{}, &fakeConn{}
	h.Add("1", a)
	h.Add("1", b)

	n := h.SendToUser("1", []byte("hi"))
	assert.Equal(t, 2, n)
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

func TestSendToUnknownUser(t *testing.T) {
	h := New()
	assert.Equal(t, 0, h.SendToUser("nobody", []byte("hi")))
}

func TestRemoveDropsConnection(t *testing.T) {
	h := New()
	a, b := &fakeConn{}, &fakeConn{}
	h.Add("1", a)
	h.Add("1", b)
	h.Remove("1", a)

	assert.Equal(t, 1, h.SendToUser("1", []byte("hi")))
	assert.Empty(t, a.got)
	assert.Equal(t, 1, h.Connections())

	h.Remove("1", b)
	assert.Equal(t, 0, h.Connections())
}

func TestSlowConsumerDoesNotCount(t *testing.T) {
	h := New()
	h.Add("1", &fakeConn{full: true})
	assert.Equal(t, 0, h.SendToUser("1", []byte("hi")))
}

func TestBroadcastReachesEveryUser(t *testing.T) {
	h := New()
	a, b := &fakeConn{}, &fakeConn{}
	h.Add("1", a)
	h.Add("2", b)
	h.Broadcast([]byte("presence"))
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}

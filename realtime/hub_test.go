package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink records written frames in place of a websocket connection.
type fakeSink struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeSink) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames = append(f.frames, cp)
	return nil
}

func (f *fakeSink) SetWriteDeadline(t time.Time) error { return nil }

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) events(t *testing.T) []Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, 0, len(f.frames))
	for _, frame := range f.frames {
		var e Event
		require.NoError(t, json.Unmarshal(frame, &e))
		out = append(out, e)
	}
	return out
}

func (f *fakeSink) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func connect(t *testing.T, h *Hub, userID uint, role string) (*Client, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	c := NewClient(sink, userID, role, h.NextClientID())
	h.Register(c)
	go c.WritePump()
	return c, sink
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	h := NewHub()

	first, firstSink := connect(t, h, 7, "customer")
	second, _ := connect(t, h, 7, "customer")

	assert.Equal(t, 1, h.ConnectedCount())
	assert.True(t, first.Closed())
	assert.False(t, second.Closed())

	firstSink.mu.Lock()
	closed := firstSink.closed
	firstSink.mu.Unlock()
	assert.True(t, closed)
}

func TestBroadcastToBookingReachesOnlyMembers(t *testing.T) {
	h := NewHub()
	bookingID := "b-123"

	member, memberSink := connect(t, h, 1, "customer")
	_, outsiderSink := connect(t, h, 2, "collector")

	h.JoinBooking(member, bookingID)
	require.True(t, h.InBooking(member, bookingID))

	h.BroadcastToBooking(bookingID, EventBookingStatusUpdate, map[string]interface{}{
		"booking_id": bookingID,
		"status":     "assigned",
	})

	require.Eventually(t, func() bool {
		return memberSink.frameCount() == 1
	}, time.Second, 5*time.Millisecond)

	events := memberSink.events(t)
	assert.Equal(t, EventBookingStatusUpdate, events[0].Type)
	assert.Equal(t, bookingID, events[0].BookingID)
	assert.False(t, events[0].Timestamp.IsZero())

	// Give the outsider a moment to (wrongly) receive something.
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, outsiderSink.frameCount())
}

func TestLeaveBookingStopsDelivery(t *testing.T) {
	h := NewHub()
	bookingID := "b-456"

	c, sink := connect(t, h, 3, "customer")
	h.JoinBooking(c, bookingID)
	h.LeaveBooking(c, bookingID)
	assert.False(t, h.InBooking(c, bookingID))

	h.BroadcastToBooking(bookingID, EventBookingStatusUpdate, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.frameCount())
}

func TestSendToUserTargetsSingleConnection(t *testing.T) {
	h := NewHub()

	_, aliceSink := connect(t, h, 10, "customer")
	_, bobSink := connect(t, h, 11, "collector")

	h.SendToUser(11, EventNewMessage, map[string]interface{}{"message": "hi"})

	require.Eventually(t, func() bool {
		return bobSink.frameCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, EventNewMessage, bobSink.events(t)[0].Type)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, aliceSink.frameCount())

	// Unknown user is a no-op, not a panic.
	h.SendToUser(999, EventNewMessage, nil)
}

func TestBroadcastToRole(t *testing.T) {
	h := NewHub()

	_, collectorSink := connect(t, h, 20, "collector")
	_, customerSink := connect(t, h, 21, "customer")

	h.BroadcastToRole("collector", EventCollectorLocationUpdate, nil)

	require.Eventually(t, func() bool {
		return collectorSink.frameCount() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, customerSink.frameCount())
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	// No WritePump, so the buffer never drains.
	sink := &fakeSink{}
	c := NewClient(sink, 30, "customer", "client-test")

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize*3; i++ {
			c.Enqueue([]byte(`{"type":"noise"}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full buffer")
	}
	assert.False(t, c.Closed())
}

func TestUnregisterRemovesFromRooms(t *testing.T) {
	h := NewHub()
	bookingID := "b-789"

	c, _ := connect(t, h, 40, "customer")
	h.JoinBooking(c, bookingID)

	h.Unregister(c)

	assert.Zero(t, h.ConnectedCount())
	assert.False(t, h.InBooking(c, bookingID))
	assert.True(t, c.Closed())

	// Broadcasting into the emptied room must not panic.
	h.BroadcastToBooking(bookingID, EventBookingStatusUpdate, nil)
}

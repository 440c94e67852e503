package web

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/qcstation/internal/station"
)

func receive(t *testing.T, ch <-chan string) StatusEvent {
	t.Helper()
	select {
	case msg := <-ch:
		var evt StatusEvent
		require.NoError(t, json.Unmarshal([]byte(msg), &evt))
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for broadcast")
		return StatusEvent{}
	}
}

func TestBroadcaster_SubscribeAndReceive(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.Broadcast(KindLog, "hello")

	evt := receive(t, ch)
	assert.Equal(t, "hello", evt.Msg)
	assert.Equal(t, KindLog, evt.Kind)
	assert.NotEmpty(t, evt.Time)
}

func TestBroadcaster_MultipleSubscribers(t *testing.T) {
	b := NewStatusBroadcaster()
	ch1, unsub1 := b.Subscribe()
	defer unsub1()
	ch2, unsub2 := b.Subscribe()
	defer unsub2()
	assert.Equal(t, 2, b.Clients())

	b.Broadcast(KindLog, "multi")

	for _, ch := range []<-chan string{ch1, ch2} {
		assert.Equal(t, "multi", receive(t, ch).Msg)
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	unsub()
	unsub() // second call is a no-op

	_, ok := <-ch
	assert.False(t, ok, "channel closed after unsubscribe")
	assert.Zero(t, b.Clients())

	assert.NotPanics(t, func() { b.Broadcast(KindLog, "after unsub") })
}

func TestBroadcaster_FullChannelDropsMessage(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	for i := 0; i < 64; i++ {
		b.Broadcast(KindLog, "fill")
	}
	// Must neither panic nor block.
	b.Broadcast(KindLog, "overflow")

	count := 0
	for len(ch) > 0 {
		<-ch
		count++
	}
	assert.Equal(t, 64, count)
}

func TestBroadcaster_HostLine(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.HostLine("Image Captured")
	evt := receive(t, ch)
	assert.Equal(t, KindHost, evt.Kind)
	assert.Equal(t, "Image Captured", evt.Msg)
}

func TestBroadcaster_StationEvent(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	b.StationEvent(station.Event{State: station.Alerting, Command: station.Interpret("DEFECT")})
	evt := receive(t, ch)
	assert.Equal(t, KindState, evt.Kind)
	assert.Equal(t, "alerting", evt.State)
	assert.Equal(t, "DEFECT", evt.Msg)

	b.StationEvent(station.Event{State: station.Idle, Command: station.Interpret("DEFECT"), Err: errors.New("servo stalled")})
	evt = receive(t, ch)
	assert.Equal(t, KindError, evt.Kind)
	assert.Equal(t, "DEFECT failed: servo stalled", evt.Msg)
}

func TestBroadcastWriter_Write(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	w := BroadcastWriter(b)
	n, err := w.Write([]byte("  trimmed message  \n"))
	require.NoError(t, err)
	assert.Equal(t, len("  trimmed message  \n"), n)

	evt := receive(t, ch)
	assert.Equal(t, "trimmed message", evt.Msg)
	assert.Equal(t, KindLog, evt.Kind)
}

func TestBroadcastWriter_EmptyWriteIgnored(t *testing.T) {
	b := NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()

	BroadcastWriter(b).Write([]byte("   \n"))

	select {
	case <-ch:
		t.Error("expected no message for whitespace-only write")
	case <-time.After(50 * time.Millisecond):
	}
}

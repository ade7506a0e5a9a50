// ABOUTME: Tests for the stream channel state machine and reconnect policy
// ABOUTME: Runs a real websocket server and advances a mock clock for backoff timing

package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamServer is a websocket test backend. Each accepted connection is
// handed to handle; the connection count tracks reconnect behavior.
type streamServer struct {
	server *httptest.Server
	conns  atomic.Int64
	handle func(ctx context.Context, conn *websocket.Conn)
}

func newStreamServer(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) *streamServer {
	t.Helper()
	s := &streamServer{handle: handle}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.conns.Add(1)
		s.handle(r.Context(), conn)
	}))
	t.Cleanup(s.server.Close)
	return s
}

// channelOptions returns Options wired to the test server with collection
// channels for events, opens, and closes.
type channelHarness struct {
	events chan Event
	opens  chan struct{}
	closes chan websocket.StatusCode
	auth   atomic.Bool
}

func newHarness() *channelHarness {
	h := &channelHarness{
		events: make(chan Event, 32),
		opens:  make(chan struct{}, 8),
		closes: make(chan websocket.StatusCode, 8),
	}
	h.auth.Store(true)
	return h
}

func (h *channelHarness) options(url string, clk clock.Clock) Options {
	return Options{
		URL:            url,
		Authenticated:  func() bool { return h.auth.Load() },
		ReconnectDelay: 3 * time.Second,
		Clock:          clk,
		OnOpen:         func() { h.opens <- struct{}{} },
		OnEvent:        func(ev Event) { h.events <- ev },
		OnClose:        func(code websocket.StatusCode, _ string) { h.closes <- code },
	}
}

func waitSignal[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestChannel_DeliversEventsInOrder(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		for _, ev := range []Event{
			{Type: EventDelta, MessageID: "m1", Data: "Hel"},
			{Type: EventDelta, MessageID: "m1", Data: "lo"},
			{Type: EventDone, MessageID: "m1"},
		} {
			require.NoError(t, wsjson.Write(ctx, conn, ev))
		}
		conn.Close(websocket.StatusNormalClosure, "")
	})

	h := newHarness()
	ch := New(h.options(server.server.URL, nil))
	ch.Connect()
	defer ch.Disconnect()

	waitSignal(t, h.opens, "open")

	first := waitSignal(t, h.events, "first delta")
	second := waitSignal(t, h.events, "second delta")
	done := waitSignal(t, h.events, "done")

	assert.Equal(t, "Hel", first.Data)
	assert.Equal(t, "lo", second.Data)
	assert.Equal(t, EventDone, done.Type)

	code := waitSignal(t, h.closes, "close")
	assert.Equal(t, websocket.StatusNormalClosure, code)

	// Normal closure: no reconnect ever gets scheduled
	assert.Equal(t, int64(1), server.conns.Load())
}

func TestChannel_DuplicateConnectIsNoOp(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		// Hold the connection open
		conn.Read(ctx)
	})

	h := newHarness()
	ch := New(h.options(server.server.URL, nil))
	ch.Connect()
	waitSignal(t, h.opens, "open")

	ch.Connect()
	ch.Connect()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int64(1), server.conns.Load())
	assert.Equal(t, StateOpen, ch.State())

	ch.Disconnect()
}

func TestChannel_RefusesConnectWhenSignedOut(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Read(ctx)
	})

	h := newHarness()
	h.auth.Store(false)
	ch := New(h.options(server.server.URL, nil))

	ch.Connect()
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int64(0), server.conns.Load())
	assert.Equal(t, StateIdle, ch.State())
}

func TestChannel_ReconnectsAfterAbnormalClose(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Close(websocket.StatusInternalError, "backend restarting")
	})

	h := newHarness()
	mock := clock.NewMock()
	ch := New(h.options(server.server.URL, mock))
	ch.Connect()
	defer ch.Disconnect()

	waitSignal(t, h.opens, "first open")
	waitSignal(t, h.closes, "abnormal close")

	// Backoff has not elapsed yet
	assert.Equal(t, int64(1), server.conns.Load())

	mock.Add(3 * time.Second)
	waitSignal(t, h.opens, "reconnect open")
	assert.Equal(t, int64(2), server.conns.Load())
}

func TestChannel_AuthFailureCloseSuppressesReconnect(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Close(StatusAuthFailure, "token rejected")
	})

	h := newHarness()
	mock := clock.NewMock()
	opts := h.options(server.server.URL, mock)

	authErrs := make(chan struct{}, 1)
	opts.OnAuthError = func() { authErrs <- struct{}{} }

	ch := New(opts)
	ch.Connect()

	waitSignal(t, h.opens, "open")
	code := waitSignal(t, h.closes, "close")
	assert.Equal(t, StatusAuthFailure, code)
	waitSignal(t, authErrs, "auth error")

	mock.Add(time.Minute)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), server.conns.Load(), "4001 must not reconnect")
}

func TestChannel_DisconnectCancelsPendingReconnect(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Close(websocket.StatusInternalError, "boom")
	})

	h := newHarness()
	mock := clock.NewMock()
	ch := New(h.options(server.server.URL, mock))
	ch.Connect()

	waitSignal(t, h.opens, "open")
	waitSignal(t, h.closes, "abnormal close")

	// Reconnect timer is armed; explicit teardown must cancel it
	ch.Disconnect()

	mock.Add(time.Minute)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), server.conns.Load())
	assert.Equal(t, StateClosed, ch.State())
}

func TestChannel_ReconnectSkippedWhenSessionSignedOut(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Close(websocket.StatusInternalError, "boom")
	})

	h := newHarness()
	mock := clock.NewMock()
	ch := New(h.options(server.server.URL, mock))
	ch.Connect()

	waitSignal(t, h.opens, "open")
	waitSignal(t, h.closes, "abnormal close")

	// Sign out before the backoff timer fires
	h.auth.Store(false)

	mock.Add(time.Minute)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), server.conns.Load())
}

func TestChannel_DropsMalformedFrames(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not-json{")))
		require.NoError(t, wsjson.Write(ctx, conn, Event{Type: "connection", Data: "established"}))
		require.NoError(t, wsjson.Write(ctx, conn, Event{Type: EventDelta, MessageID: "m1", Data: "ok"}))
		conn.Read(ctx)
	})

	h := newHarness()
	ch := New(h.options(server.server.URL, nil))
	ch.Connect()
	defer ch.Disconnect()

	waitSignal(t, h.opens, "open")

	ev := waitSignal(t, h.events, "surviving event")
	assert.Equal(t, EventDelta, ev.Type)
	assert.Equal(t, "ok", ev.Data)
	assert.Equal(t, StateOpen, ch.State(), "malformed frames must not kill the channel")
}

func TestChannel_SendRequiresOpen(t *testing.T) {
	h := newHarness()
	ch := New(h.options("ws://127.0.0.1:1/nowhere", clock.NewMock()))

	err := ch.Send(Event{Type: EventDelta})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestChannel_SendAndTokenFallback(t *testing.T) {
	gotToken := make(chan string, 1)
	received := make(chan Event, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken <- r.URL.Query().Get("token")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		var ev Event
		if err := wsjson.Read(r.Context(), conn, &ev); err == nil {
			received <- ev
		}
		conn.Read(r.Context())
	}))
	defer server.Close()

	h := newHarness()
	opts := h.options(server.URL, nil)
	opts.Token = func() string { return "tok-xyz" }

	ch := New(opts)
	ch.Connect()
	defer ch.Disconnect()

	waitSignal(t, h.opens, "open")
	assert.Equal(t, "tok-xyz", waitSignal(t, gotToken, "token"))

	require.NoError(t, ch.Send(Event{Type: EventDelta, Data: "ping"}))
	got := waitSignal(t, received, "server receive")
	assert.Equal(t, "ping", got.Data)
}

func TestChannel_ReconnectArmsOnlyOneTimer(t *testing.T) {
	server := newStreamServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Close(websocket.StatusInternalError, "boom")
	})

	h := newHarness()
	mock := clock.NewMock()
	ch := New(h.options(server.server.URL, mock))
	ch.Connect()
	defer ch.Disconnect()

	waitSignal(t, h.opens, "first open")
	waitSignal(t, h.closes, "first close")

	// The first reconnect fails the same way; across several cycles the
	// channel must schedule exactly one reconnect per closure.
	for i := 0; i < 3; i++ {
		mock.Add(3 * time.Second)
		waitSignal(t, h.opens, "reconnect open")
		waitSignal(t, h.closes, "reconnect close")
	}

	assert.Equal(t, int64(4), server.conns.Load())
}

// ABOUTME: Coordinator reconciles optimistic edits, API responses, and
// ABOUTME: stream events into the Store on a single event-loop goroutine.

package chat

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/lmajedshbeir/neora-client/internal/dedupe"
	"github.com/lmajedshbeir/neora-client/internal/stream"
	"github.com/lmajedshbeir/neora-client/internal/voice"
)

// Messenger is the request/response surface the coordinator needs. The API
// client satisfies it through a thin adapter.
type Messenger interface {
	SendMessage(ctx context.Context, text, language string) (Message, error)
	SendVoice(ctx context.Context, capture *voice.Capture, language string) (Message, error)
	Messages(ctx context.Context, limit int) ([]Message, error)
	ClearMessages(ctx context.Context) error
}

// HistoryCache is an optional local mirror of the confirmed conversation,
// written after every successful refresh.
type HistoryCache interface {
	ReplaceAll(ctx context.Context, msgs []Message) error
	Clear(ctx context.Context) error
}

// DefaultErrorText is shown when a turn fails and the server never said why.
const DefaultErrorText = "Sorry, something went wrong. Please try again."

const taskQueueDepth = 128

// Config carries coordinator tuning. Zero-value fields fall back to the
// defaults below.
type Config struct {
	// ResponseTimeout bounds how long a turn may sit without any terminal
	// signal before an error is synthesized.
	ResponseTimeout time.Duration
	// MinDisplayTarget and MinDisplayFloor shape the pause between a done
	// event and the refresh that swaps streamed text for server truth.
	MinDisplayTarget time.Duration
	MinDisplayFloor  time.Duration
	// HistoryLimit caps each history fetch.
	HistoryLimit int
	// ErrorText overrides DefaultErrorText.
	ErrorText string
	// Language supplies the outbound language name per send.
	Language func() string
	// StreamOpen reports whether the stream channel is currently usable.
	// When it is, a transport failure defers to the stream for the terminal
	// signal instead of erroring the turn immediately.
	StreamOpen func() bool
	// Clock defaults to the wall clock; tests inject a mock.
	Clock clock.Clock
	Logger *slog.Logger
	// History is optional.
	History HistoryCache
	// OnChange receives a fresh snapshot after every visible mutation. It
	// runs on the event loop and must not block.
	OnChange func([]Message)
}

// Coordinator owns the Store and serializes every mutation through its Run
// loop. All exported methods are safe to call from any goroutine.
type Coordinator struct {
	msgr    Messenger
	store   *Store
	tasks   chan func()
	ctx     context.Context
	started atomic.Bool
	clock   clock.Clock
	logger  *slog.Logger

	responseTimeout  time.Duration
	minDisplayTarget time.Duration
	minDisplayFloor  time.Duration
	historyLimit     int
	errorText        string
	language         func() string
	streamOpen       func() bool
	history          HistoryCache
	onChange         func([]Message)

	// Loop-confined turn state.
	turnStart     time.Time
	turnResolved  bool
	responseTimer *clock.Timer
	finalized     *dedupe.Set
	clearPending  bool
	lastUserID    string
}

func NewCoordinator(msgr Messenger, cfg Config) *Coordinator {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 30 * time.Second
	}
	if cfg.MinDisplayTarget <= 0 {
		cfg.MinDisplayTarget = 2 * time.Second
	}
	if cfg.MinDisplayFloor <= 0 {
		cfg.MinDisplayFloor = 500 * time.Millisecond
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.ErrorText == "" {
		cfg.ErrorText = DefaultErrorText
	}
	if cfg.Language == nil {
		cfg.Language = func() string { return "English" }
	}
	if cfg.StreamOpen == nil {
		cfg.StreamOpen = func() bool { return false }
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Coordinator{
		msgr:             msgr,
		store:            NewStore(),
		tasks:            make(chan func(), taskQueueDepth),
		clock:            cfg.Clock,
		logger:           cfg.Logger.With("component", "coordinator"),
		responseTimeout:  cfg.ResponseTimeout,
		minDisplayTarget: cfg.MinDisplayTarget,
		minDisplayFloor:  cfg.MinDisplayFloor,
		historyLimit:     cfg.HistoryLimit,
		errorText:        cfg.ErrorText,
		language:         cfg.Language,
		streamOpen:       cfg.StreamOpen,
		history:          cfg.History,
		onChange:         cfg.OnChange,
		finalized:        dedupe.New(dedupe.DefaultCapacity),
		turnResolved:     true,
	}
}

// Run drives the event loop until ctx is cancelled. Exactly one Run per
// coordinator, and it must be running before the synchronous accessors
// (Snapshot, ClearPending) return live data.
func (c *Coordinator) Run(ctx context.Context) {
	c.ctx = ctx
	c.started.Store(true)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.tasks:
			fn()
		}
	}
}

// post hands fn to the event loop.
func (c *Coordinator) post(fn func()) {
	c.tasks <- fn
}

func (c *Coordinator) notify() {
	if c.onChange != nil {
		c.onChange(c.store.Snapshot())
	}
}

// Snapshot returns the conversation oldest-first via the loop, so it is
// consistent with respect to in-flight mutations. Returns nil before Run
// has started; it never blocks on an idle loop.
func (c *Coordinator) Snapshot() []Message {
	if !c.started.Load() {
		return nil
	}
	out := make(chan []Message, 1)
	c.post(func() { out <- c.store.Snapshot() })
	return <-out
}

// SendText shows the text optimistically, opens a turn, and submits it.
func (c *Coordinator) SendText(text string) {
	c.post(func() {
		user := Message{
			ID:        newOptimisticID(),
			Kind:      KindOptimistic,
			Role:      RoleUser,
			Text:      text,
			Status:    StatusSending,
			CreatedAt: c.clock.Now(),
		}
		c.beginTurn(user, newPlaceholderID())
		go func() {
			confirmed, err := c.msgr.SendMessage(c.ctx, text, c.language())
			c.post(func() { c.finishSend(user.ID, nil, confirmed, err) })
		}()
	})
}

// SendVoice shows a local voice entry optimistically and uploads the
// capture. The coordinator takes ownership of the capture and releases it
// once the upload settles.
func (c *Coordinator) SendVoice(capture *voice.Capture) {
	c.post(func() {
		user := Message{
			ID:        newVoiceOptimisticID(),
			Kind:      KindOptimistic,
			Role:      RoleUser,
			Text:      "[Voice Message]",
			AudioURL:  capture.LocalURL(),
			Status:    StatusSending,
			CreatedAt: c.clock.Now(),
		}
		c.beginTurn(user, newVoicePlaceholderID())
		go func() {
			confirmed, err := c.msgr.SendVoice(c.ctx, capture, c.language())
			c.post(func() { c.finishSend(user.ID, capture, confirmed, err) })
		}()
	})
}

// beginTurn records the optimistic entry plus a reply placeholder and arms
// the response timeout. Runs on the loop.
func (c *Coordinator) beginTurn(user Message, placeholderID string) {
	c.turnStart = c.clock.Now()
	c.turnResolved = false
	c.store.Prepend(user)
	c.store.Prepend(Message{
		ID:        placeholderID,
		Kind:      KindPlaceholder,
		Role:      RoleAssistant,
		Status:    StatusStreaming,
		CreatedAt: c.clock.Now(),
	})
	c.stopResponseTimer()
	c.responseTimer = c.clock.AfterFunc(c.responseTimeout, func() {
		c.post(c.onResponseTimeout)
	})
	c.notify()
}

// finishSend settles one upload. Runs on the loop.
func (c *Coordinator) finishSend(optimisticID string, capture *voice.Capture, confirmed Message, err error) {
	if capture != nil {
		capture.Release()
	}
	if err != nil {
		c.logger.Warn("send failed", "error", err)
		// The server never received the turn, so nothing will arrive for
		// the placeholder; drop it regardless of channel state.
		c.store.RemoveWhere(byKind(KindPlaceholder))
		c.store.UpdateWhere(byID(optimisticID), func(m *Message) {
			m.Status = StatusError
			m.AudioURL = ""
		})
		// A live stream may still carry a server-side error for the turn;
		// only a dead one means nobody else will resolve it.
		if !c.streamOpen() {
			c.resolveTurnWithError()
		}
		c.notify()
		return
	}
	confirmed.Kind = KindConfirmed
	if confirmed.Status == "" {
		confirmed.Status = StatusDelivered
	}
	if !c.store.Replace(byID(optimisticID), confirmed) {
		// Optimistic entry already swept by a refresh; keep server truth.
		c.store.Prepend(confirmed)
	}
	c.notify()
}

// HandleEvent accepts a stream frame. Safe from the channel's read
// goroutine; ordering within the loop preserves frame order.
func (c *Coordinator) HandleEvent(ev stream.Event) {
	c.post(func() { c.onStreamEvent(ev) })
}

func (c *Coordinator) onStreamEvent(ev stream.Event) {
	switch ev.Type {
	case stream.EventDelta:
		c.applyDelta(ev)
	case stream.EventDone:
		c.applyDone(ev)
	case stream.EventError:
		c.logger.Warn("stream reported turn failure", "message_id", ev.MessageID)
		c.resolveTurnWithError()
		c.notify()
	}
}

func (c *Coordinator) applyDelta(ev stream.Event) {
	appended := c.store.UpdateWhere(func(m Message) bool {
		return m.ID == ev.MessageID && m.Role == RoleAssistant
	}, func(m *Message) {
		m.Text += ev.Data
	})
	if appended == 0 {
		// First delta of the turn claims the placeholder and gives it the
		// server's message identity.
		c.store.Replace(byKind(KindPlaceholder), Message{
			ID:        ev.MessageID,
			Kind:      KindConfirmed,
			Role:      RoleAssistant,
			Text:      ev.Data,
			Status:    StatusStreaming,
			CreatedAt: c.clock.Now(),
		})
	}
	c.notify()
}

func (c *Coordinator) applyDone(ev stream.Event) {
	if c.finalized.CheckAndMark(ev.MessageID) {
		c.logger.Debug("duplicate done ignored", "message_id", ev.MessageID)
		return
	}
	c.turnResolved = true
	c.stopResponseTimer()
	c.store.UpdateWhere(byID(ev.MessageID), func(m *Message) {
		m.Status = StatusDelivered
	})
	// Hold the streamed text on screen briefly before the authoritative
	// refresh replaces it.
	delay := c.minDisplayTarget - c.clock.Now().Sub(c.turnStart)
	if delay < c.minDisplayFloor {
		delay = c.minDisplayFloor
	}
	c.clock.AfterFunc(delay, func() {
		c.post(c.refresh)
	})
	c.notify()
}

// resolveTurnWithError synthesizes the turn's single visible error. The
// turn-resolved flag makes it idempotent across transport failures, stream
// errors, and timeouts. Runs on the loop.
func (c *Coordinator) resolveTurnWithError() {
	c.store.RemoveWhere(byKind(KindPlaceholder))
	if c.turnResolved {
		return
	}
	c.turnResolved = true
	c.stopResponseTimer()
	c.store.Prepend(Message{
		ID:        newErrorID(),
		Kind:      KindConfirmed,
		Role:      RoleAssistant,
		Text:      c.errorText,
		Status:    StatusError,
		CreatedAt: c.clock.Now(),
	})
}

func (c *Coordinator) onResponseTimeout() {
	c.responseTimer = nil
	if c.turnResolved {
		return
	}
	c.logger.Warn("turn timed out waiting for a terminal event")
	c.resolveTurnWithError()
	c.notify()
}

func (c *Coordinator) stopResponseTimer() {
	if c.responseTimer != nil {
		c.responseTimer.Stop()
		c.responseTimer = nil
	}
}

// Refresh fetches recent history and replaces the store with server truth.
func (c *Coordinator) Refresh() {
	c.post(c.refresh)
}

func (c *Coordinator) refresh() {
	go func() {
		msgs, err := c.msgr.Messages(c.ctx, c.historyLimit)
		c.post(func() { c.applyRefresh(msgs, err) })
	}()
}

func (c *Coordinator) applyRefresh(msgs []Message, err error) {
	if err != nil {
		// Keep whatever is on screen; stale beats blank.
		c.logger.Warn("history refresh failed", "error", err)
		return
	}
	c.store.Clear()
	// msgs arrive newest-first; prepending oldest-to-newest restores that
	// order internally.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		m.Kind = KindConfirmed
		c.store.Prepend(m)
	}
	if c.history != nil {
		snap := c.store.Snapshot()
		ctx := c.ctx
		go func() {
			if err := c.history.ReplaceAll(ctx, snap); err != nil {
				c.logger.Warn("history cache write failed", "error", err)
			}
		}()
	}
	c.notify()
}

// Seed loads cached history into an empty store, typically before the
// first network refresh lands.
func (c *Coordinator) Seed(msgs []Message) {
	c.post(func() {
		if c.store.Len() > 0 {
			return
		}
		for i := len(msgs) - 1; i >= 0; i-- {
			m := msgs[i]
			m.Kind = KindConfirmed
			c.store.Prepend(m)
		}
		c.notify()
	})
}

// RequestClear arms the two-step clear. Nothing is deleted until
// ConfirmClear.
func (c *Coordinator) RequestClear() {
	c.post(func() { c.clearPending = true })
}

// CancelClear disarms a pending clear.
func (c *Coordinator) CancelClear() {
	c.post(func() { c.clearPending = false })
}

// ClearPending reports whether a clear awaits confirmation. Returns false
// before Run has started.
func (c *Coordinator) ClearPending() bool {
	if !c.started.Load() {
		return false
	}
	out := make(chan bool, 1)
	c.post(func() { out <- c.clearPending })
	return <-out
}

// ConfirmClear deletes the conversation server-side first, then locally.
// A failed request leaves the conversation untouched.
func (c *Coordinator) ConfirmClear() {
	c.post(func() {
		if !c.clearPending {
			return
		}
		c.clearPending = false
		go func() {
			err := c.msgr.ClearMessages(c.ctx)
			c.post(func() { c.finishClear(err) })
		}()
	})
}

func (c *Coordinator) finishClear(err error) {
	if err != nil {
		c.logger.Warn("clear request failed", "error", err)
		return
	}
	c.store.Clear()
	c.finalized.Reset()
	if c.history != nil {
		ctx := c.ctx
		go func() {
			if err := c.history.Clear(ctx); err != nil {
				c.logger.Warn("history cache clear failed", "error", err)
			}
		}()
	}
	c.notify()
}

// SetUser records the authenticated identity. A change of identity wipes
// local state before anything for the new user is fetched, then kicks off
// a refresh.
func (c *Coordinator) SetUser(userID string) {
	c.post(func() {
		if c.lastUserID != "" && userID != c.lastUserID {
			c.logger.Info("user changed, dropping local conversation state",
				"previous", c.lastUserID, "current", userID)
			c.store.Clear()
			c.finalized.Reset()
			c.clearPending = false
			if c.history != nil {
				ctx := c.ctx
				go func() {
					if err := c.history.Clear(ctx); err != nil {
						c.logger.Warn("history cache clear failed", "error", err)
					}
				}()
			}
			c.notify()
		}
		c.lastUserID = userID
		if userID != "" {
			c.refresh()
		}
	})
}

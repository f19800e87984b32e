// Package lifecycle binds app lifecycle signals (foreground, screen focus,
// target language) to stream sessions. It is the only code that creates or
// stops sessions.
package lifecycle

import (
	"context"
	"errors"
	"sync"

	"github.com/AltairaLabs/SightKit/detection"
	skerrors "github.com/AltairaLabs/SightKit/errors"
	"github.com/AltairaLabs/SightKit/events"
	"github.com/AltairaLabs/SightKit/logger"
	"github.com/AltairaLabs/SightKit/prefs"
	"github.com/AltairaLabs/SightKit/streaming"
)

const component = "lifecycle"

// screen names the screen that owns the camera in log records.
const screen = "stream"

// ErrClosed is returned by commands issued after Close.
var ErrClosed = errors.New("coordinator closed")

// Config configures a Coordinator.
type Config struct {
	// Stream is the template for every session. Language, After, SessionID
	// and the result callbacks are set by the coordinator.
	Stream streaming.SessionConfig

	// Prefs stores the target language. Defaults to an in-memory store.
	Prefs prefs.Store

	// Bus receives lifecycle events; it is also handed to sessions when
	// Stream.Bus is unset. Optional.
	Bus *events.EventBus

	// Background starts the coordinator with the app in the background.
	Background bool
}

// State is what the UI renders.
type State struct {
	SessionID    string
	Phase        streaming.Phase
	Connected    bool
	Reconnecting bool
	Disconnected bool
	Foreground   bool
	Focused      bool
	Language     string
	// Result is the last successfully parsed result of the current
	// session. Malformed messages and service errors never replace it.
	Result *detection.Result
	// Notice is the last service error message, cleared by the next good
	// result.
	Notice string
}

// Coordinator serializes lifecycle commands on one goroutine. Session
// callbacks only touch the result state, guarded by a generation number so
// a superseded session cannot overwrite what the current one shows.
type Coordinator struct {
	cfg     Config
	log     *logger.ComponentLogger
	emitter *events.Emitter

	ctx    context.Context
	cancel context.CancelFunc
	cmds   chan func()
	quit   chan struct{}
	exited chan struct{}
	once   sync.Once

	focusHolds int // loop-owned

	mu         sync.RWMutex
	foreground bool
	focused    bool
	language   string
	session    *streaming.Session
	generation uint64
	result     *detection.Result
	notice     string
}

// NewCoordinator starts the coordinator loop. No session is opened until
// the screen is focused while in the foreground.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Prefs == nil {
		cfg.Prefs = prefs.NewMemoryStore()
	}
	if cfg.Stream.Bus == nil {
		cfg.Stream.Bus = cfg.Bus
	}
	log := logger.For(component)
	if cfg.Stream.Logger == nil {
		cfg.Stream.Logger = logger.For("streaming")
	}

	ctx, cancel := context.WithCancel(logger.WithScreen(context.Background(), screen))
	c := &Coordinator{
		cfg:        cfg,
		log:        log,
		emitter:    events.NewEmitter(cfg.Bus, "", ""),
		ctx:        ctx,
		cancel:     cancel,
		cmds:       make(chan func()),
		quit:       make(chan struct{}),
		exited:     make(chan struct{}),
		foreground: !cfg.Background,
		language:   prefs.DefaultLanguage,
	}
	if cfg.Stream.Language != "" {
		if code, err := prefs.Normalize(cfg.Stream.Language); err == nil {
			c.language = code
		}
	}
	go c.loop()
	return c
}

func (c *Coordinator) loop() {
	defer close(c.exited)
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Coordinator) do(fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case c.cmds <- wrapped:
	case <-c.quit:
		return ErrClosed
	}
	<-done
	return nil
}

// SetForeground records whether the app is in the foreground.
func (c *Coordinator) SetForeground(fg bool) error {
	return c.do(func() {
		c.mu.Lock()
		changed := c.foreground != fg
		c.foreground = fg
		focused := c.focused
		c.mu.Unlock()
		if !changed {
			return
		}
		c.log.Debug("foreground changed", "foreground", fg)
		c.emitter.LifecycleChanged(fg, focused)
		c.reconcile()
	})
}

// SetFocused records whether the stream screen is focused.
func (c *Coordinator) SetFocused(focused bool) error {
	return c.do(func() {
		c.applyFocus(focused)
	})
}

func (c *Coordinator) applyFocus(focused bool) {
	c.mu.Lock()
	changed := c.focused != focused
	c.focused = focused
	fg := c.foreground
	c.mu.Unlock()
	if !changed {
		return
	}
	c.log.Debug("focus changed", "focused", focused)
	c.emitter.LifecycleChanged(fg, focused)
	c.reconcile()
}

// FocusScreen marks the screen focused and returns the release func to
// call on blur. Nested holds keep the screen focused until all are released.
func (c *Coordinator) FocusScreen() (release func(), err error) {
	err = c.do(func() {
		c.focusHolds++
		c.applyFocus(true)
	})
	if err != nil {
		return func() {}, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = c.do(func() {
				c.focusHolds--
				if c.focusHolds <= 0 {
					c.focusHolds = 0
					c.applyFocus(false)
				}
			})
		})
	}, nil
}

// SetLanguage persists lang and, if a session is live, replaces it with one
// using the new language.
func (c *Coordinator) SetLanguage(ctx context.Context, lang string) error {
	code, err := prefs.Normalize(lang)
	if err != nil {
		return skerrors.New(skerrors.KindConfig, component, "SetLanguage", err)
	}
	if err := c.cfg.Prefs.SetLanguage(ctx, code); err != nil {
		c.log.Warn("language not persisted", "language", code, "error", err)
	}
	return c.do(func() { c.applyLanguage(code) })
}

// Restore loads the stored language. Call it once at startup.
func (c *Coordinator) Restore(ctx context.Context) error {
	code, err := c.cfg.Prefs.Language(ctx)
	if err != nil {
		c.log.Warn("stored language unavailable, using default", "error", err)
		code = prefs.DefaultLanguage
	}
	return c.do(func() { c.applyLanguage(code) })
}

func (c *Coordinator) applyLanguage(code string) {
	c.mu.Lock()
	from := c.language
	if from == code {
		c.mu.Unlock()
		return
	}
	c.language = code
	c.result = nil
	c.notice = ""
	c.mu.Unlock()

	c.log.Info("target language changed", "from", from, "to", code)
	c.emitter.LanguageChanged(from, code)

	if c.liveSession() != nil {
		c.stopSession()
		c.reconcile()
	}
}

// EnsureStarted opens a session if none is live. It does not wait for the
// connection.
func (c *Coordinator) EnsureStarted() error {
	return c.do(c.startSession)
}

// EnsureStopped stops the live session, if any. It returns once the stop
// has been issued and never waits for the remote close.
func (c *Coordinator) EnsureStopped() error {
	return c.do(c.stopSession)
}

// reconcile starts or stops the session to match foreground && focused.
func (c *Coordinator) reconcile() {
	c.mu.RLock()
	desired := c.foreground && c.focused
	c.mu.RUnlock()
	if desired {
		c.startSession()
		return
	}
	c.stopSession()
}

// liveSession returns the session if it still streams or may reconnect.
func (c *Coordinator) liveSession() *streaming.Session {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s == nil {
		return nil
	}
	select {
	case <-s.Done():
		return nil
	default:
	}
	switch s.State().Phase {
	case streaming.PhaseClosing, streaming.PhaseClosed, streaming.PhaseDisconnected:
		return nil
	}
	return s
}

func (c *Coordinator) startSession() {
	if c.liveSession() != nil {
		return
	}

	c.mu.Lock()
	prev := c.session
	c.generation++
	gen := c.generation
	lang := c.language
	c.mu.Unlock()

	cfg := c.cfg.Stream
	cfg.Language = lang
	cfg.SessionID = ""
	cfg.After = nil
	if prev != nil {
		cfg.After = prev.Done()
	}
	cfg.OnResult = func(_ uint64, res *detection.Result) { c.acceptResult(gen, res) }
	cfg.OnServiceError = func(_ uint64, err error) { c.acceptNotice(gen, err) }

	s, err := streaming.NewSession(cfg)
	if err != nil {
		c.log.Error("cannot create session", "error", err)
		return
	}
	logCtx := logger.WithTargetLang(logger.WithSessionID(c.ctx, s.ID()), lang)
	if err := s.Start(c.ctx); err != nil {
		c.log.ErrorContext(logCtx, "cannot start session", "error", err)
		return
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	c.log.InfoContext(logCtx, "session started", "generation", gen)
}

func (c *Coordinator) stopSession() {
	c.mu.Lock()
	s := c.session
	c.generation++
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.Stop()
	c.log.InfoContext(logger.WithSessionID(c.ctx, s.ID()), "session stop issued")
}

func (c *Coordinator) acceptResult(gen uint64, res *detection.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.result = res
	c.notice = ""
}

func (c *Coordinator) acceptNotice(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || err == nil {
		return
	}
	var ce *skerrors.ContextualError
	if errors.As(err, &ce) && ce.Cause != nil {
		c.notice = ce.Cause.Error()
		return
	}
	c.notice = err.Error()
}

// State returns a snapshot for the UI.
func (c *Coordinator) State() State {
	c.mu.RLock()
	st := State{
		Foreground: c.foreground,
		Focused:    c.focused,
		Language:   c.language,
		Result:     c.result,
		Notice:     c.notice,
	}
	s := c.session
	c.mu.RUnlock()

	if s == nil {
		st.Phase = streaming.PhaseIdle
		return st
	}
	ss := s.State()
	st.SessionID = ss.SessionID
	st.Phase = ss.Phase
	st.Connected = ss.Phase == streaming.PhaseStreaming
	st.Reconnecting = ss.Phase == streaming.PhaseReconnectPending ||
		(ss.Phase.Live() && ss.Attempt > 1)
	st.Disconnected = ss.Phase == streaming.PhaseDisconnected
	return st
}

// Session returns the most recent session, or nil.
func (c *Coordinator) Session() *streaming.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Close stops any session, ends the loop and waits until the last session
// has released its transport or ctx ends.
func (c *Coordinator) Close(ctx context.Context) error {
	var s *streaming.Session
	err := c.do(func() {
		c.stopSession()
		c.mu.RLock()
		s = c.session
		c.mu.RUnlock()
	})
	c.once.Do(func() { close(c.quit) })
	<-c.exited
	c.cancel()

	if err != nil || s == nil {
		return nil
	}
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

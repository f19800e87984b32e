package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/SightKit/capture"
	"github.com/AltairaLabs/SightKit/detection"
	skerrors "github.com/AltairaLabs/SightKit/errors"
	"github.com/AltairaLabs/SightKit/events"
	"github.com/AltairaLabs/SightKit/logger"
)

const component = "streaming"

// Session defaults.
const (
	DefaultFrameInterval  = 200 * time.Millisecond
	DefaultReconnectDelay = 2 * time.Second
	DefaultMaxReconnects  = 5

	// InitMessage is the first text message of every handshake.
	InitMessage = "init"
)

// Encoding selects how frame payloads go on the wire.
type Encoding string

// Payload encodings.
const (
	EncodingBase64 Encoding = "base64"
	EncodingBinary Encoding = "binary"
)

var (
	// ErrSessionStarted is returned by Start on a session that already started.
	ErrSessionStarted = errors.New("session already started")
	// ErrSessionStopped is returned by Start after Stop.
	ErrSessionStopped = errors.New("session stopped")
	// ErrRemoteClosed is the close cause when the service ends the stream.
	ErrRemoteClosed = errors.New("stream closed by remote")
)

// Phase is the session state machine position.
type Phase int

// Session phases.
const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseHandshaking
	PhaseStreaming
	PhaseClosing
	PhaseClosed
	PhaseReconnectPending
	PhaseDisconnected
)

var phaseNames = map[Phase]string{
	PhaseIdle:             "idle",
	PhaseConnecting:       "connecting",
	PhaseHandshaking:      "handshaking",
	PhaseStreaming:        "streaming",
	PhaseClosing:          "closing",
	PhaseClosed:           "closed",
	PhaseReconnectPending: "reconnect_pending",
	PhaseDisconnected:     "disconnected",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Live reports whether the phase holds or is acquiring a transport.
func (p Phase) Live() bool {
	return p == PhaseConnecting || p == PhaseHandshaking || p == PhaseStreaming
}

// FrameSource produces one frame per call. *capture.Source satisfies it.
type FrameSource interface {
	Capture(ctx context.Context) (capture.Frame, error)
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// URL is the stream endpoint, e.g. ws://10.0.0.2:8000/ws/video.
	URL string

	// Language is the target language sent in the handshake.
	Language string

	// LanguageInQuery also appends ?target=<lang> to the URL.
	LanguageInQuery bool

	// Source provides frames. Required.
	Source FrameSource

	// Dialer opens transports. Defaults to a WebsocketDialer.
	Dialer Dialer

	// FrameInterval is the delay between frames. Defaults to DefaultFrameInterval.
	FrameInterval time.Duration

	// ReconnectDelay is the fixed wait before a reconnect. Defaults to
	// DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// MaxReconnects caps consecutive reconnects. Zero means
	// DefaultMaxReconnects; negative values are rejected.
	MaxReconnects int

	// DisableReconnect ends the session on the first unrequested close.
	DisableReconnect bool

	// Encoding is the frame payload encoding. Defaults to EncodingBase64.
	Encoding Encoding

	// After, when set, delays the first dial until it is closed. Pass the
	// previous session's Done() so two sessions never hold transports at
	// the same time.
	After <-chan struct{}

	// SessionID identifies the session lineage. Defaults to a random UUID.
	SessionID string

	// Bus receives session, frame and result events. Optional.
	Bus *events.EventBus

	// OnResult receives every successful result of the current attempt.
	OnResult func(attempt uint64, res *detection.Result)

	// OnServiceError receives results whose status is error.
	OnServiceError func(attempt uint64, err error)

	// Logger receives session logs. Session, attempt and language fields
	// travel on the context. Optional.
	Logger ContextLogger
}

func (c *SessionConfig) defaults() {
	if c.Dialer == nil {
		c.Dialer = &WebsocketDialer{Config: ConnConfig{Logger: c.Logger}}
	}
	if c.FrameInterval == 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = DefaultMaxReconnects
	}
	if c.Encoding == "" {
		c.Encoding = EncodingBase64
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

func (c *SessionConfig) validate() error {
	if c.URL == "" {
		return fmt.Errorf("stream URL is required")
	}
	if c.Source == nil {
		return fmt.Errorf("frame source is required")
	}
	if c.MaxReconnects < 0 {
		return fmt.Errorf("max reconnects must not be negative: %d", c.MaxReconnects)
	}
	if c.FrameInterval < 0 || c.ReconnectDelay < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	switch c.Encoding {
	case "", EncodingBase64, EncodingBinary:
	default:
		return fmt.Errorf("unknown payload encoding %q", c.Encoding)
	}
	return nil
}

// State is a snapshot of a session.
type State struct {
	SessionID  string
	Phase      Phase
	Attempt    uint64
	Reconnects int
	Language   string
	LastError  error
}

// attempt is one connect cycle. Its goroutines own the transport; done is
// closed once they have all exited and the transport is closed.
type attempt struct {
	id        uint64
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	answered  bool
	exited    bool
}

// Session streams frames to the service and delivers parsed results. A
// session is single use: Start once, Stop once.
type Session struct {
	cfg     SessionConfig
	url     string
	emitter *events.Emitter
	log     ContextLogger

	mu         sync.Mutex
	baseCtx    context.Context
	phase      Phase
	attemptID  uint64
	cur        *attempt
	reconnects int
	stopped    bool
	lastErr    error
	timer      *time.Timer
	done       chan struct{}
	doneOnce   sync.Once
}

// NewSession validates cfg and returns an idle session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, skerrors.New(skerrors.KindConfig, component, "NewSession", err)
	}
	cfg.defaults()

	streamURL, err := buildURL(cfg.URL, cfg.Language, cfg.LanguageInQuery)
	if err != nil {
		return nil, skerrors.New(skerrors.KindConfig, component, "NewSession", err)
	}

	return &Session{
		cfg:     cfg,
		url:     streamURL,
		emitter: events.NewEmitter(cfg.Bus, cfg.SessionID, cfg.Language),
		log:     cfg.Logger,
		done:    make(chan struct{}),
	}, nil
}

func buildURL(raw, lang string, inQuery bool) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid stream URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("stream URL must use ws or wss: %q", raw)
	}
	if inQuery && lang != "" {
		q := u.Query()
		q.Set("target", lang)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.cfg.SessionID }

// URL returns the dialed URL including any language query.
func (s *Session) URL() string { return s.url }

// Language returns the session's target language.
func (s *Session) Language() string { return s.cfg.Language }

// Done is closed when the session has stopped or disconnected and none of
// its goroutines hold a transport.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		SessionID:  s.cfg.SessionID,
		Phase:      s.phase,
		Attempt:    s.attemptID,
		Reconnects: s.reconnects,
		Language:   s.cfg.Language,
		LastError:  s.lastErr,
	}
}

// Start begins the first connect attempt. It does not block on the dial.
// Cancelling ctx stops the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSessionStopped
	}
	if s.phase != PhaseIdle {
		return ErrSessionStarted
	}
	s.baseCtx = logger.WithTargetLang(logger.WithSessionID(ctx, s.cfg.SessionID), s.cfg.Language)
	s.connectLocked(s.cfg.After)
	return nil
}

// Stop requests teardown and returns immediately. The transport is closed
// by the attempt's goroutines; Done reports when that has happened.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	switch {
	case s.phase.Live():
		s.phase = PhaseClosing
	case s.phase != PhaseDisconnected:
		s.phase = PhaseClosed
	}

	if s.cur != nil {
		s.cur.cancel()
	}
	s.log.DebugContext(s.logContextLocked(), "session stop requested", "attempt", s.attemptID)
	s.maybeFinishLocked()
}

// connectLocked starts a new attempt; the dial waits for waitFor.
func (s *Session) connectLocked(waitFor <-chan struct{}) {
	s.attemptID++
	ctx, cancel := context.WithCancel(logger.WithAttempt(s.baseCtx, s.attemptID))
	a := &attempt{
		id:        s.attemptID,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.cur = a
	s.phase = PhaseConnecting
	s.emitter.SessionConnecting(a.id, s.url, s.reconnects)
	s.log.DebugContext(ctx, "connecting", "url", s.url)

	go s.run(a, waitFor)
}

// logContextLocked carries the session fields even before Start.
func (s *Session) logContextLocked() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return logger.WithTargetLang(logger.WithSessionID(context.Background(), s.cfg.SessionID), s.cfg.Language)
}

func (s *Session) isCurrentLocked(a *attempt) bool {
	return s.cur == a && a.id == s.attemptID && !s.stopped
}

func (s *Session) isCurrent(a *attempt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCurrentLocked(a)
}

func (s *Session) run(a *attempt, waitFor <-chan struct{}) {
	defer s.exited(a)
	defer a.cancel()

	if waitFor != nil {
		select {
		case <-waitFor:
		case <-a.ctx.Done():
			// Done must not close before the session it waits on is done.
			<-waitFor
			s.closed(a, nil)
			return
		}
	}

	t, err := s.cfg.Dialer.Dial(a.ctx, s.url)
	if err != nil {
		if a.ctx.Err() != nil {
			err = nil
		}
		s.closed(a, wrapTransport("Dial", err))
		return
	}

	s.mu.Lock()
	if !s.isCurrentLocked(a) {
		s.mu.Unlock()
		_ = t.Close()
		s.closed(a, nil)
		return
	}
	s.phase = PhaseHandshaking
	s.mu.Unlock()

	err = s.handshakeAndStream(a, t)
	_ = t.Close()
	s.closed(a, err)
}

func (s *Session) handshakeAndStream(a *attempt, t Transport) error {
	begun := time.Now()
	if err := s.handshake(t); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.isCurrentLocked(a) {
		s.mu.Unlock()
		return nil
	}
	s.phase = PhaseStreaming
	s.mu.Unlock()

	s.emitter.SessionStreaming(a.id, time.Since(begun))
	s.log.InfoContext(a.ctx, "streaming")

	g, gctx := errgroup.WithContext(a.ctx)
	g.Go(func() error { return s.sendLoop(gctx, a, t) })
	g.Go(func() error { return s.receiveLoop(gctx, a, t) })
	return g.Wait()
}

type languageMessage struct {
	TargetLang string `json:"target_lang"`
}

// handshake sends "init" then the language message. No acknowledgement is
// expected.
func (s *Session) handshake(t Transport) error {
	if err := t.WriteText([]byte(InitMessage)); err != nil {
		return wrapTransport("Handshake", err)
	}
	msg, err := json.Marshal(languageMessage{TargetLang: s.cfg.Language})
	if err != nil {
		return wrapTransport("Handshake", err)
	}
	if err := t.WriteText(msg); err != nil {
		return wrapTransport("Handshake", err)
	}
	return nil
}

// sendLoop captures and sends one frame per interval. A frame is only sent
// while the transport is open and the attempt current; nothing is queued.
func (s *Session) sendLoop(ctx context.Context, a *attempt, t Transport) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if !t.IsOpen() || !s.isCurrent(a) {
			return nil
		}

		frame, err := s.cfg.Source.Capture(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			s.log.WarnContext(ctx, "frame capture failed", "error", err)
			s.emitter.FrameCaptureFailed(a.id, err)
		case t.IsOpen() && s.isCurrent(a):
			size, err := s.send(t, frame)
			if err != nil {
				return wrapTransport("Send", err)
			}
			s.emitter.FrameSent(a.id, frame.Seq, size)
		}

		timer.Reset(s.cfg.FrameInterval)
	}
}

func (s *Session) send(t Transport, frame capture.Frame) (int, error) {
	if s.cfg.Encoding == EncodingBinary {
		return len(frame.Data), t.WriteBinary(frame.Data)
	}
	payload := []byte(frame.Base64())
	return len(payload), t.WriteText(payload)
}

// receiveLoop parses inbound messages until the transport fails or ctx ends.
func (s *Session) receiveLoop(ctx context.Context, a *attempt, t Transport) error {
	for {
		data, err := t.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if IsRemoteClose(err) {
				return wrapTransport("Receive", fmt.Errorf("%w: %v", ErrRemoteClosed, err))
			}
			return wrapTransport("Receive", err)
		}

		res, err := detection.Parse(data)
		if err != nil {
			s.log.WarnContext(ctx, "discarding malformed message", "size", len(data), "error", err)
			s.emitter.ProtocolError(a.id, err, len(data))
			continue
		}
		s.answered(a)
		s.deliver(a, res)
	}
}

// answered resets the reconnect budget on the first parsed message of an
// attempt. An attempt that opens and closes without the service answering
// counts against MaxReconnects.
func (s *Session) answered(a *attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.answered || !s.isCurrentLocked(a) {
		return
	}
	a.answered = true
	s.reconnects = 0
}

// deliver hands a parsed result to the callbacks if the attempt is still
// current. A newer attempt cannot dial until this goroutine has exited, so
// the check cannot be overtaken by a newer handshake.
func (s *Session) deliver(a *attempt, res *detection.Result) {
	if !s.isCurrent(a) {
		return
	}
	if !res.OK() {
		serr := res.ServiceError()
		s.log.WarnContext(a.ctx, "service reported error", "error", serr)
		s.emitter.ServiceError(a.id, res.Error)
		if s.cfg.OnServiceError != nil {
			s.cfg.OnServiceError(a.id, serr)
		}
		return
	}
	s.emitter.ResultReceived(a.id, res)
	if s.cfg.OnResult != nil {
		s.cfg.OnResult(a.id, res)
	}
}

// closed records the end of an attempt and applies the reconnect policy.
func (s *Session) closed(a *attempt, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requested := s.stopped || s.baseCtx.Err() != nil
	s.emitter.SessionClosed(a.id, requested, err, time.Since(a.startedAt))

	if s.cur != a {
		return
	}
	if err != nil {
		s.lastErr = err
		s.log.WarnContext(a.ctx, "attempt closed", "error", err)
	}
	if requested {
		s.stopped = true
		s.phase = PhaseClosed
		return
	}

	s.phase = PhaseClosed
	if s.cfg.DisableReconnect || s.reconnects >= s.cfg.MaxReconnects {
		s.phase = PhaseDisconnected
		s.log.ErrorContext(a.ctx, "giving up on stream", "reconnects", s.reconnects, "error", s.lastErr)
		s.emitter.SessionDisconnected(a.id, s.reconnects, s.lastErr)
		return
	}

	s.reconnects++
	s.phase = PhaseReconnectPending
	expected := a.id
	s.emitter.ReconnectScheduled(a.id, s.reconnects, s.cfg.ReconnectDelay)
	s.log.InfoContext(a.ctx, "reconnect scheduled", "reconnect", s.reconnects, "delay", s.cfg.ReconnectDelay)
	s.timer = time.AfterFunc(s.cfg.ReconnectDelay, func() { s.reconnect(expected) })
}

// reconnect fires from the reconnect timer; expected is the attempt that
// scheduled it.
func (s *Session) reconnect(expected uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.attemptID != expected || s.phase != PhaseReconnectPending {
		return
	}
	s.timer = nil
	var prev <-chan struct{}
	if s.cur != nil {
		prev = s.cur.done
	}
	s.connectLocked(prev)
}

// exited runs after an attempt's goroutines are gone.
func (s *Session) exited(a *attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.exited = true
	close(a.done)
	s.maybeFinishLocked()
}

func (s *Session) maybeFinishLocked() {
	if !s.stopped && s.phase != PhaseDisconnected {
		return
	}
	if s.cur != nil && !s.cur.exited {
		return
	}
	if s.stopped {
		s.phase = PhaseClosed
	}
	after := s.cfg.After
	if s.cur != nil || after == nil {
		s.doneOnce.Do(func() { close(s.done) })
		return
	}
	// Stopped before Start: the first attempt never ran, so wait for After
	// here to keep Done ordered behind the previous session.
	s.doneOnce.Do(func() {
		go func() {
			<-after
			close(s.done)
		}()
	})
}

func wrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *skerrors.ContextualError
	if errors.As(err, &ce) {
		return err
	}
	return skerrors.Transport(component, op, err)
}

package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-narration-backend/internal/avatar"
	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/services"
)

// Avatar is the streaming avatar collaborator.
type Avatar interface {
	Connect(ctx context.Context, opts avatar.Options) (avatar.Session, error)
	Speak(ctx context.Context, sessionID, text string) error
	Interrupt(ctx context.Context, sessionID string) error
	Disconnect(ctx context.Context, sessionID string) error
}

type callKind int

const (
	callSpeak callKind = iota
	callInterrupt
	callDisconnect
)

// avatarCall is one queued avatar request. gen is the speechGen a speak
// belongs to; a speak whose gen is no longer current is dropped.
type avatarCall struct {
	kind    callKind
	session string
	text    string
	gen     uint64
	index   int
}

// Answerer answers an audience question about one slide.
type Answerer interface {
	Answer(ctx context.Context, question string, slide domain.Slide, language string) (string, error)
}

// QuestionRecorder persists audience questions (services.QuestionService).
type QuestionRecorder interface {
	Record(ctx context.Context, deckID string, slideID *int, text string) (*domain.Question, error)
}

// ScriptSource loads the active narration of each slide for one language
// (services.NarrationService).
type ScriptSource interface {
	Script(ctx context.Context, deckID, language string, slides []domain.Slide) ([]string, int, error)
}

// Options describes one presentation.
type Options struct {
	DeckID     string
	AvatarName string
	Language   string
	Slides     []domain.Slide

	AdvanceDelay      time.Duration
	ConnectRetryDelay time.Duration
}

// Deps are the collaborators of a Controller. Answerer and Questions may be
// nil.
type Deps struct {
	Avatar    Avatar
	Answerer  Answerer
	Questions QuestionRecorder
	Scripts   ScriptSource
	Writer    NarrationWriter
	Clock     Clock
	Log       zerolog.Logger
}

const teardownTimeout = 10 * time.Second

// Controller is the playback state machine of one presentation session.
type Controller struct {
	id   string
	opts Options
	deps Deps
	log  zerolog.Logger

	// ctx bounds collaborator calls made on behalf of the session.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	index    int
	language string
	script   []string
	loaded   bool
	staging  map[string]*Staging
	session  *avatar.Session
	status   string
	lastErr  string
	closed   bool

	// speechGen changes on every speak, interrupt and index change; a
	// pending auto-advance only fires if it is unchanged.
	speechGen uint64
	connGen   uint64
	answerGen uint64
	answering bool

	advance Timer
	retry   Timer

	// calls are avatar requests queued under mu and sent by flush after mu
	// is released. callMu orders senders; it is never taken while mu is held.
	calls  []avatarCall
	callMu sync.Mutex

	seq     uint64
	subs    map[int]chan Snapshot
	nextSub int
}

// NewController returns an idle controller. Call Reload before Connect.
func NewController(id string, opts Options, deps Deps) *Controller {
	if opts.AdvanceDelay <= 0 {
		opts.AdvanceDelay = DefaultAdvanceDelay
	}
	if opts.ConnectRetryDelay <= 0 {
		opts.ConnectRetryDelay = DefaultConnectRetryDelay
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		id:       id,
		opts:     opts,
		deps:     deps,
		log:      deps.Log.With().Str("session_id", id).Str("deck_id", opts.DeckID).Logger(),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		language: services.NormalizeLanguage(opts.Language),
		staging:  make(map[string]*Staging),
		subs:     make(map[int]chan Snapshot),
	}
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe streams snapshots, starting with the current one. Slow
// subscribers miss intermediate snapshots. The channel is closed by cancel
// or Close.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 16)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// Reload fetches the active narrations for the current language. Saved
// staging entries are dropped so they do not mask newer stored text.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	lang := c.language
	c.mu.Unlock()

	texts, found, err := c.deps.Scripts.Script(ctx, c.opts.DeckID, lang, c.opts.Slides)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err.Error()
		c.notifyLocked()
		return err
	}
	if lang != c.language {
		return nil
	}
	c.script = texts
	c.loaded = true
	c.stagingLocked().DropSaved()
	c.log.Debug().Str("language", lang).Int("found", found).Int("slides", len(c.opts.Slides)).Msg("narrations loaded")
	c.notifyLocked()
	return nil
}

// Connect opens the avatar stream. A failed attempt is retried once after
// ConnectRetryDelay; a second failure returns to Idle with ErrConnectFailed
// recorded as the last error.
func (c *Controller) Connect() error {
	c.mu.Lock()
	g, err := c.beginConnectLocked("connecting")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.attemptConnect(g, 1)
	return nil
}

func (c *Controller) beginConnectLocked(status string) (uint64, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if !c.readyLocked() {
		return 0, ErrNotReady
	}
	if c.state != StateIdle {
		return 0, &StateError{Op: "connect", State: c.state}
	}
	c.connGen++
	c.lastErr = ""
	c.setStateLocked(StateConnecting, status)
	c.notifyLocked()
	return c.connGen, nil
}

func (c *Controller) attemptConnect(g uint64, retries int) {
	c.mu.Lock()
	if g != c.connGen || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	opts := avatar.Options{AvatarName: c.opts.AvatarName, Language: c.language}
	c.mu.Unlock()

	sess, err := c.deps.Avatar.Connect(c.ctx, opts)

	c.mu.Lock()
	defer c.unlockAndFlush()
	if g != c.connGen || c.state != StateConnecting {
		if err == nil {
			c.disconnectLocked(sess.ID)
		}
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Int("retries_left", retries).Msg("avatar connect failed")
		if retries > 0 {
			c.status = "connection failed, retrying"
			c.retry = c.deps.Clock.AfterFunc(c.opts.ConnectRetryDelay, func() { c.attemptConnect(g, retries-1) })
			c.notifyLocked()
			return
		}
		c.lastErr = fmt.Sprintf("%v: %v", ErrConnectFailed, err)
		c.setStateLocked(StateIdle, "connection failed")
		c.notifyLocked()
		return
	}
	c.session = &sess
	c.setStateLocked(StateConnected, "connected")
	c.log.Info().Str("avatar_session", sess.ID).Str("language", sess.Language).Msg("avatar connected")
	c.notifyLocked()
}

// Start begins presenting from the first slide.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if !c.readyLocked() {
		return ErrNotReady
	}
	if c.state != StateConnected {
		return &StateError{Op: "start", State: c.state}
	}
	c.index = 0
	c.setStateLocked(StateSpeaking, "presenting")
	c.speakLocked(c.textLocked(0), false)
	c.notifyLocked()
	return nil
}

// SpeechEnded handles the avatar's end-of-speech event. seq is the SpeechSeq
// the client observed when the speech began; 0 skips the staleness check.
func (c *Controller) SpeechEnded(seq uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != 0 && seq != c.speechGen {
		return ErrStaleEvent
	}
	if c.answering {
		c.answering = false
		c.notifyLocked()
		return nil
	}
	if c.state != StateSpeaking {
		return &StateError{Op: "speech end", State: c.state}
	}
	if c.advance != nil {
		return ErrStaleEvent
	}
	if c.index >= len(c.opts.Slides)-1 {
		c.setStateLocked(StateConnected, "presentation complete")
		c.notifyLocked()
		return nil
	}
	g := c.speechGen
	c.advance = c.deps.Clock.AfterFunc(c.opts.AdvanceDelay, func() { c.autoAdvance(g) })
	c.notifyLocked()
	return nil
}

func (c *Controller) autoAdvance(g uint64) {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if g != c.speechGen || c.state != StateSpeaking {
		return
	}
	c.advance = nil
	if c.index >= len(c.opts.Slides)-1 {
		return
	}
	c.index++
	c.speakLocked(c.textLocked(c.index), false)
	c.notifyLocked()
}

// Next moves to the following slide.
func (c *Controller) Next() error { return c.navigate("next", func(i int) int { return i + 1 }) }

// Prev moves to the preceding slide.
func (c *Controller) Prev() error { return c.navigate("prev", func(i int) int { return i - 1 }) }

// GoTo moves to slide index i.
func (c *Controller) GoTo(i int) error { return c.navigate("goto", func(int) int { return i }) }

// navigate interrupts speech, moves the index and, while speaking, speaks
// the new slide. Out-of-range targets are no-ops.
func (c *Controller) navigate(op string, target func(int) int) error {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if c.session == nil || !c.state.Live() {
		return &StateError{Op: op, State: c.state}
	}
	i := target(c.index)
	if i < 0 || i >= len(c.opts.Slides) {
		return ErrOutOfRange
	}
	c.interruptLocked()
	if c.state == StateAnswering {
		c.answerGen++
		c.setStateLocked(StatePaused, "paused")
	}
	c.index = i
	if c.state == StateSpeaking {
		c.speakLocked(c.textLocked(i), false)
	}
	c.notifyLocked()
	return nil
}

// Pause interrupts speech and keeps the slide index.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if c.state != StateSpeaking {
		return &StateError{Op: "pause", State: c.state}
	}
	c.interruptLocked()
	c.setStateLocked(StatePaused, "paused")
	c.notifyLocked()
	return nil
}

// Resume speaks the current slide again.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if c.state != StatePaused {
		return &StateError{Op: "resume", State: c.state}
	}
	c.setStateLocked(StateSpeaking, "presenting")
	c.speakLocked(c.textLocked(c.index), false)
	c.notifyLocked()
	return nil
}

// Ask interrupts the narration, records the question, speaks an answer
// scoped to the current slide and leaves the presentation paused. The
// answer's end of speech does not advance.
func (c *Controller) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	c.mu.Lock()
	if c.state != StateSpeaking && c.state != StatePaused {
		st := c.state
		c.mu.Unlock()
		return "", &StateError{Op: "ask", State: st}
	}
	c.interruptLocked()
	c.setStateLocked(StateAnswering, "answering question")
	c.answerGen++
	g := c.answerGen
	slide := c.opts.Slides[c.index]
	lang := c.language
	c.notifyLocked()
	c.unlockAndFlush()

	if c.deps.Questions != nil {
		sid := slide.ID
		if _, err := c.deps.Questions.Record(ctx, c.opts.DeckID, &sid, question); err != nil {
			c.log.Warn().Err(err).Int("slide_id", slide.ID).Msg("question not saved")
		}
	}

	answer := Apology
	if c.deps.Answerer != nil {
		a, err := c.deps.Answerer.Answer(ctx, question, slide, lang)
		switch {
		case err != nil:
			c.log.Error().Err(err).Int("slide_id", slide.ID).Msg("answer failed")
		case strings.TrimSpace(a) != "":
			answer = strings.TrimSpace(a)
		}
	}

	c.mu.Lock()
	defer c.unlockAndFlush()
	if g != c.answerGen || c.state != StateAnswering {
		return "", &StateError{Op: "answer", State: c.state}
	}
	c.setStateLocked(StatePaused, "paused after question")
	c.speakLocked(answer, true)
	c.notifyLocked()
	return answer, nil
}

// Stop tears down the avatar connection and returns to Idle.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if c.state == StateIdle && c.session == nil {
		return &StateError{Op: "stop", State: c.state}
	}
	c.teardownLocked(true)
	c.setStateLocked(StateIdle, "stopped")
	c.notifyLocked()
	return nil
}

// StreamReady acknowledges the avatar's stream-ready event.
func (c *Controller) StreamReady() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return &StateError{Op: "stream ready", State: c.state}
	}
	if c.state == StateConnected {
		c.status = "avatar ready"
	}
	c.notifyLocked()
	return nil
}

// StreamDisconnected handles loss of the avatar stream. The connection is
// treated as gone; no further calls are made against it.
func (c *Controller) StreamDisconnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil && c.state != StateConnecting {
		return &StateError{Op: "stream disconnected", State: c.state}
	}
	c.setStateLocked(StateDisconnected, "stream disconnected")
	c.teardownLocked(false)
	c.setStateLocked(StateIdle, "stream disconnected")
	c.notifyLocked()
	return nil
}

// SetLanguage switches the narration language. A live connection is torn
// down, narrations are reloaded and the avatar reconnects with the new
// voice; presenting resumes only on an explicit Start.
func (c *Controller) SetLanguage(ctx context.Context, lang string) error {
	lang = services.NormalizeLanguage(lang)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if lang == c.language {
		c.mu.Unlock()
		return ErrSameLanguage
	}
	restart := c.session != nil || c.state == StateConnecting
	if restart {
		c.setStateLocked(StateDisconnected, "restarting")
		c.teardownLocked(true)
		c.setStateLocked(StateIdle, "restarting")
	}
	c.language = lang
	c.script = nil
	c.loaded = false
	g := c.connGen
	c.notifyLocked()
	c.unlockAndFlush()

	if err := c.Reload(ctx); err != nil {
		return err
	}
	if !restart {
		return nil
	}

	c.mu.Lock()
	if g != c.connGen || c.state != StateIdle || c.language != lang {
		c.mu.Unlock()
		return nil
	}
	cg, err := c.beginConnectLocked("restarting")
	if errors.Is(err, ErrNotReady) {
		c.status = "waiting for narrations"
		c.notifyLocked()
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.attemptConnect(cg, 1)
	return nil
}

// Edit stages new narration text for a slide of the deck in the current
// language.
func (c *Controller) Edit(slideID int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasSlideLocked(slideID) {
		return services.ErrSlideNotFound
	}
	if strings.TrimSpace(text) == "" {
		return services.ErrEmptyText
	}
	c.stagingLocked().Edit(slideID, text)
	c.notifyLocked()
	return nil
}

// Commit saves staged edits of the current language with overwrite=false.
func (c *Controller) Commit(ctx context.Context) ([]services.UpsertResult, error) {
	c.mu.Lock()
	st := c.stagingLocked()
	lang := c.language
	c.mu.Unlock()

	res, err := st.Commit(ctx, c.deps.Writer, c.opts.DeckID, lang)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err.Error()
	}
	c.notifyLocked()
	c.mu.Unlock()
	return res, err
}

// Staged returns the staging entries of the current language.
func (c *Controller) Staged() []Entry {
	c.mu.Lock()
	st := c.stagingLocked()
	c.mu.Unlock()
	return st.Entries()
}

// Close stops the session and ends all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if c.closed {
		return
	}
	c.teardownLocked(true)
	c.setStateLocked(StateIdle, "closed")
	c.closed = true
	c.cancel()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// ----------------------------------------------------------------------------
// Locked helpers

func (c *Controller) setStateLocked(to State, status string) {
	if c.state != to {
		transitions.WithLabelValues(string(c.state), string(to)).Inc()
		c.log.Debug().Str("from", string(c.state)).Str("to", string(to)).Msg("transition")
	}
	c.state = to
	c.status = status
}

func (c *Controller) speakLocked(text string, answer bool) {
	c.cancelAdvanceLocked()
	c.speechGen++
	c.answering = answer
	if c.session == nil || strings.TrimSpace(text) == "" {
		return
	}
	c.calls = append(c.calls, avatarCall{kind: callSpeak, session: c.session.ID, text: text, gen: c.speechGen, index: c.index})
}

func (c *Controller) interruptLocked() {
	c.cancelAdvanceLocked()
	c.speechGen++
	c.answering = false
	if c.session == nil {
		return
	}
	c.calls = append(c.calls, avatarCall{kind: callInterrupt, session: c.session.ID})
}

func (c *Controller) cancelAdvanceLocked() {
	if c.advance != nil {
		c.advance.Stop()
		c.advance = nil
	}
}

// teardownLocked invalidates all pending work and drops the avatar session.
func (c *Controller) teardownLocked(disconnect bool) {
	c.cancelAdvanceLocked()
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.connGen++
	c.answerGen++
	c.speechGen++
	c.answering = false
	if c.session != nil && disconnect {
		c.disconnectLocked(c.session.ID)
	}
	c.session = nil
}

func (c *Controller) disconnectLocked(id string) {
	c.calls = append(c.calls, avatarCall{kind: callDisconnect, session: id})
}

func (c *Controller) unlockAndFlush() {
	c.mu.Unlock()
	c.flush()
}

// flush sends queued avatar calls in order. It returns once the queue is
// empty, so calls queued by the caller have been sent.
func (c *Controller) flush() {
	c.callMu.Lock()
	defer c.callMu.Unlock()
	for {
		c.mu.Lock()
		if len(c.calls) == 0 {
			c.mu.Unlock()
			return
		}
		call := c.calls[0]
		c.calls = c.calls[1:]
		live := c.session != nil && c.session.ID == call.session
		if call.kind == callSpeak {
			live = live && call.gen == c.speechGen
		}
		c.mu.Unlock()

		switch call.kind {
		case callDisconnect:
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), teardownTimeout)
			if err := c.deps.Avatar.Disconnect(ctx, call.session); err != nil {
				c.log.Warn().Err(err).Str("avatar_session", call.session).Msg("avatar disconnect failed")
			}
			cancel()
		case callInterrupt:
			if !live {
				continue
			}
			if err := c.deps.Avatar.Interrupt(c.ctx, call.session); err != nil {
				c.log.Warn().Err(err).Msg("interrupt failed")
			}
		case callSpeak:
			if !live {
				continue
			}
			if err := c.deps.Avatar.Speak(c.ctx, call.session, call.text); err != nil {
				c.log.Error().Err(err).Int("index", call.index).Msg("speak failed")
				c.mu.Lock()
				if call.gen == c.speechGen {
					c.lastErr = err.Error()
					c.notifyLocked()
				}
				c.mu.Unlock()
			}
		}
	}
}

func (c *Controller) stagingLocked() *Staging {
	st, ok := c.staging[c.language]
	if !ok {
		st = NewStaging()
		c.staging[c.language] = st
	}
	return st
}

func (c *Controller) textLocked(i int) string {
	if i < 0 || i >= len(c.opts.Slides) {
		return ""
	}
	if st, ok := c.staging[c.language]; ok {
		if t, ok := st.Text(c.opts.Slides[i].ID); ok {
			return t
		}
	}
	if i < len(c.script) {
		return c.script[i]
	}
	return ""
}

// readyLocked reports whether every slide has narration text.
func (c *Controller) readyLocked() bool {
	if !c.loaded || len(c.opts.Slides) == 0 {
		return false
	}
	for i := range c.opts.Slides {
		if strings.TrimSpace(c.textLocked(i)) == "" {
			return false
		}
	}
	return true
}

func (c *Controller) hasSlideLocked(id int) bool {
	for _, sl := range c.opts.Slides {
		if sl.ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		SessionID:  c.id,
		DeckID:     c.opts.DeckID,
		Language:   c.language,
		State:      c.state,
		Presenting: c.state.Presenting(),
		Paused:     c.state == StatePaused,
		Index:      c.index,
		SlideCount: len(c.opts.Slides),
		Ready:      c.readyLocked(),
		SpeechSeq:  c.speechGen,
		Status:     c.status,
		LastError:  c.lastErr,
		Seq:        c.seq,
	}
	if c.index < len(c.opts.Slides) {
		s.SlideID = c.opts.Slides[c.index].ID
		s.Narration = c.textLocked(c.index)
	}
	if c.session != nil {
		sess := *c.session
		s.Avatar = &sess
	}
	if st, ok := c.staging[c.language]; ok {
		s.Dirty = st.DirtyCount()
	}
	return s
}

func (c *Controller) notifyLocked() {
	c.seq++
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

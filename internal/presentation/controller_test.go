package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-narration-backend/internal/avatar"
	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/services"
)

// ----- fakes -----

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns the delays of timers that have neither fired nor stopped.
func (c *fakeClock) pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Duration
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.d)
		}
	}
	return out
}

// fire runs every pending timer.
func (c *fakeClock) fire() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// fireStopped runs timers even if they were stopped, as a timer that
// already started running would.
func (c *fakeClock) fireStopped() {
	c.mu.Lock()
	due := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type fakeScripts struct {
	mu    sync.Mutex
	texts map[string][]string
	err   error
	calls int
}

func (s *fakeScripts) Script(_ context.Context, _ string, lang string, slides []domain.Slide) ([]string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, 0, s.err
	}
	src := s.texts[lang]
	out := make([]string, len(slides))
	found := 0
	for i := range slides {
		if i < len(src) && src[i] != "" {
			out[i] = src[i]
			found++
		}
	}
	return out, found, nil
}

type fakeAnswerer struct {
	answer string
	err    error
	got    domain.Slide
}

func (a *fakeAnswerer) Answer(_ context.Context, _ string, slide domain.Slide, _ string) (string, error) {
	a.got = slide
	return a.answer, a.err
}

type fakeQuestions struct {
	deckID  string
	slideID *int
	text    string
	err     error
}

func (q *fakeQuestions) Record(_ context.Context, deckID string, slideID *int, text string) (*domain.Question, error) {
	q.deckID, q.slideID, q.text = deckID, slideID, text
	if q.err != nil {
		return nil, q.err
	}
	return &domain.Question{ID: "q1", DeckID: deckID, SlideID: slideID, Text: text}, nil
}

type fakeWriter struct {
	items     []services.NarrationItem
	overwrite bool
	deckID    string
	err       error
	failSlide int
	during    func()
}

func (w *fakeWriter) UpsertBatch(_ context.Context, items []services.NarrationItem, overwrite bool, deckID string) ([]services.UpsertResult, error) {
	w.items, w.overwrite, w.deckID = items, overwrite, deckID
	if w.during != nil {
		w.during()
	}
	if w.err != nil {
		return nil, w.err
	}
	res := make([]services.UpsertResult, len(items))
	for i, it := range items {
		res[i] = services.UpsertResult{SlideID: it.SlideID, Language: it.Language, Status: services.ResultOK, Version: 2}
		if it.SlideID == w.failSlide {
			res[i] = services.UpsertResult{SlideID: it.SlideID, Status: services.ResultError, Error: "text: too long"}
		}
	}
	return res, nil
}

// ----- fixture -----

type fixture struct {
	c       *Controller
	avatar  *avatar.Recorder
	clock   *fakeClock
	scripts *fakeScripts
	answers *fakeAnswerer
	qs      *fakeQuestions
	writer  *fakeWriter
}

func mkSlides(n int) []domain.Slide {
	out := make([]domain.Slide, n)
	for i := range out {
		out[i] = domain.Slide{ID: 100 + i, DeckID: "deck-1", Topic: fmt.Sprintf("Topic %d", i+1), Content: "content"}
	}
	return out
}

func script(lang string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s narration %d", lang, i+1)
	}
	return out
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	f := &fixture{
		avatar:  &avatar.Recorder{},
		clock:   &fakeClock{},
		scripts: &fakeScripts{texts: map[string][]string{"en": script("en", n), "de": script("de", n)}},
		answers: &fakeAnswerer{answer: "Because of costs."},
		qs:      &fakeQuestions{},
		writer:  &fakeWriter{},
	}
	f.c = NewController("s1", Options{
		DeckID:     "deck-1",
		AvatarName: "Anna",
		Language:   "en",
		Slides:     mkSlides(n),
	}, Deps{
		Avatar:    f.avatar,
		Answerer:  f.answers,
		Questions: f.qs,
		Scripts:   f.scripts,
		Writer:    f.writer,
		Clock:     f.clock,
		Log:       zerolog.Nop(),
	})
	t.Cleanup(f.c.Close)
	if err := f.c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	return f
}

// presenting connects and starts, leaving slide 0 spoken.
func (f *fixture) presenting(t *testing.T) {
	t.Helper()
	if err := f.c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := f.c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func mustState(t *testing.T, c *Controller, want State) Snapshot {
	t.Helper()
	s := c.Snapshot()
	if s.State != want {
		t.Fatalf("state = %s; want %s (status %q, err %q)", s.State, want, s.Status, s.LastError)
	}
	return s
}

// ----- tests -----

func TestReadinessGatesConnectAndStart(t *testing.T) {
	f := newFixture(t, 3)
	f.scripts.texts["en"][1] = ""
	if err := f.c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if f.c.Snapshot().Ready {
		t.Fatalf("deck with a missing narration must not be ready")
	}
	if err := f.c.Connect(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Connect: want ErrNotReady, got %v", err)
	}
	if err := f.c.Start(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Start: want ErrNotReady, got %v", err)
	}
	if len(f.avatar.Connects()) != 0 {
		t.Fatalf("no avatar connect expected")
	}

	// a staged edit fills the gap
	if err := f.c.Edit(101, "edited narration"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !f.c.Snapshot().Ready {
		t.Fatalf("staged edit should make the deck ready")
	}
	if err := f.c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	mustState(t, f.c, StateConnected)
}

func TestNotReadyBeforeLoad(t *testing.T) {
	c := NewController("x", Options{DeckID: "d", Slides: mkSlides(1)}, Deps{Avatar: &avatar.Recorder{}, Log: zerolog.Nop()})
	defer c.Close()
	if err := c.Connect(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("want ErrNotReady before load, got %v", err)
	}
	if c.Snapshot().Language != "en" {
		t.Fatalf("language should default to en")
	}
}

func TestConnect_RetriesOnceThenFails(t *testing.T) {
	f := newFixture(t, 2)
	f.avatar.FailConnects = 2

	if err := f.c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	s := mustState(t, f.c, StateConnecting)
	if !strings.Contains(s.Status, "retrying") {
		t.Fatalf("status = %q", s.Status)
	}
	if p := f.clock.pending(); len(p) != 1 || p[0] != DefaultConnectRetryDelay {
		t.Fatalf("want one retry after %v, got %v", DefaultConnectRetryDelay, p)
	}

	f.clock.fire()
	s = mustState(t, f.c, StateIdle)
	if !strings.Contains(s.LastError, ErrConnectFailed.Error()) {
		t.Fatalf("last error = %q", s.LastError)
	}
	if n := len(f.avatar.Connects()); n != 2 {
		t.Fatalf("want 2 connect attempts, got %d", n)
	}
	if len(f.clock.pending()) != 0 {
		t.Fatalf("no further retries expected")
	}
}

func TestConnect_RetrySucceeds(t *testing.T) {
	f := newFixture(t, 2)
	f.avatar.FailConnects = 1
	_ = f.c.Connect()
	f.clock.fire()
	s := mustState(t, f.c, StateConnected)
	if s.Avatar == nil || s.Avatar.ID == "" || s.LastError != "" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if err := f.c.Connect(); err == nil || !IsNoop(err) {
		t.Fatalf("second connect should be a no-op, got %v", err)
	}
}

func TestStopDuringRetryCancelsIt(t *testing.T) {
	f := newFixture(t, 2)
	f.avatar.FailConnects = 1
	_ = f.c.Connect()
	if err := f.c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	f.clock.fireStopped()
	mustState(t, f.c, StateIdle)
	if n := len(f.avatar.Connects()); n != 1 {
		t.Fatalf("retry must not run after stop, got %d connects", n)
	}
}

func TestStart_SpeaksFirstSlide(t *testing.T) {
	f := newFixture(t, 3)
	if err := f.c.Start(); err == nil || !IsNoop(err) {
		t.Fatalf("start before connect should be a no-op, got %v", err)
	}
	f.presenting(t)
	s := mustState(t, f.c, StateSpeaking)
	if s.Index != 0 || !s.Presenting || s.Narration != "en narration 1" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if got := f.avatar.Spoken(); len(got) != 1 || got[0] != "en narration 1" {
		t.Fatalf("spoken = %q", got)
	}
}

// slowAvatar holds Speak until release is closed.
type slowAvatar struct {
	*avatar.Recorder
	entered chan struct{}
	release chan struct{}
}

func (a *slowAvatar) Speak(ctx context.Context, sessionID, text string) error {
	a.entered <- struct{}{}
	<-a.release
	return a.Recorder.Speak(ctx, sessionID, text)
}

func TestSlowAvatarDoesNotBlockSnapshots(t *testing.T) {
	av := &slowAvatar{Recorder: &avatar.Recorder{}, entered: make(chan struct{}, 1), release: make(chan struct{})}
	c := NewController("s1", Options{DeckID: "deck-1", AvatarName: "Anna", Language: "en", Slides: mkSlides(2)},
		Deps{Avatar: av, Scripts: &fakeScripts{texts: map[string][]string{"en": script("en", 2)}}, Clock: &fakeClock{}, Log: zerolog.Nop()})
	t.Cleanup(c.Close)
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	updates, cancel := c.Subscribe()
	defer cancel()
	<-updates

	started := make(chan error, 1)
	go func() { started <- c.Start() }()
	<-av.entered

	snap := make(chan Snapshot, 1)
	go func() { snap <- c.Snapshot() }()
	select {
	case s := <-snap:
		if s.State != StateSpeaking {
			t.Errorf("state = %s while the avatar is speaking", s.State)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("Snapshot blocked on an in-flight avatar call")
	}
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Errorf("subscribers starved by an in-flight avatar call")
	}

	close(av.release)
	if err := <-started; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := av.Spoken(); len(got) != 1 || got[0] != "en narration 1" {
		t.Fatalf("spoken = %q", got)
	}
}

func TestSpeakFailureIsRecorded(t *testing.T) {
	f := newFixture(t, 2)
	f.avatar.SpeakErr = errors.New("quota exceeded")
	f.presenting(t)
	if s := mustState(t, f.c, StateSpeaking); s.LastError != "quota exceeded" {
		t.Fatalf("last error = %q", s.LastError)
	}
}

func TestSpeechEnded_AdvancesAfterDelayWithOneSpeak(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)

	if err := f.c.SpeechEnded(0); err != nil {
		t.Fatalf("SpeechEnded: %v", err)
	}
	if s := f.c.Snapshot(); s.Index != 0 {
		t.Fatalf("index must not move before the delay, got %d", s.Index)
	}
	if p := f.clock.pending(); len(p) != 1 || p[0] != DefaultAdvanceDelay {
		t.Fatalf("want one advance timer of %v, got %v", DefaultAdvanceDelay, p)
	}
	if len(f.avatar.Spoken()) != 1 {
		t.Fatalf("no speak before the delay")
	}

	f.clock.fire()
	s := mustState(t, f.c, StateSpeaking)
	if s.Index != 1 {
		t.Fatalf("index = %d; want 1", s.Index)
	}
	got := f.avatar.Spoken()
	if len(got) != 2 || got[1] != "en narration 2" {
		t.Fatalf("want exactly one new speak of slide 2, got %q", got)
	}
}

func TestSpeechEnded_DuplicateWhilePendingIgnored(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)
	_ = f.c.SpeechEnded(0)
	if err := f.c.SpeechEnded(0); !IsNoop(err) {
		t.Fatalf("second speech end should be ignored, got %v", err)
	}
	if len(f.clock.pending()) != 1 {
		t.Fatalf("want a single pending advance")
	}
	f.clock.fire()
	if s := f.c.Snapshot(); s.Index != 1 {
		t.Fatalf("index = %d; want 1", s.Index)
	}
}

func TestSpeechEnded_StaleSeqIgnored(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)
	seq := f.c.Snapshot().SpeechSeq
	if err := f.c.SpeechEnded(seq + 5); !errors.Is(err, ErrStaleEvent) {
		t.Fatalf("want ErrStaleEvent, got %v", err)
	}
	if err := f.c.SpeechEnded(seq); err != nil {
		t.Fatalf("matching seq should be accepted, got %v", err)
	}
}

func TestEndOfDeckStopsPresenting(t *testing.T) {
	f := newFixture(t, 2)
	f.presenting(t)
	_ = f.c.SpeechEnded(0)
	f.clock.fire()
	if err := f.c.SpeechEnded(0); err != nil {
		t.Fatalf("SpeechEnded: %v", err)
	}
	s := mustState(t, f.c, StateConnected)
	if s.Presenting || s.Index != 1 || s.Status != "presentation complete" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if len(f.clock.pending()) != 0 || len(f.avatar.Spoken()) != 2 {
		t.Fatalf("nothing further should be scheduled or spoken")
	}
}

func TestNavigation_BoundsAreNoops(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)
	interrupts := f.avatar.Interrupts()

	for _, i := range []int{-1, 3} {
		if err := f.c.GoTo(i); !errors.Is(err, ErrOutOfRange) {
			t.Fatalf("GoTo(%d): want ErrOutOfRange, got %v", i, err)
		}
	}
	if err := f.c.Prev(); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("Prev at 0: want ErrOutOfRange, got %v", err)
	}
	if s := f.c.Snapshot(); s.Index != 0 {
		t.Fatalf("index moved to %d", s.Index)
	}
	if f.avatar.Interrupts() != interrupts || len(f.avatar.Spoken()) != 1 {
		t.Fatalf("no-op navigation must not touch the avatar")
	}

	idx := 3
	res, err := f.c.Do(context.Background(), Command{Name: "goto", Index: &idx})
	if err != nil || res.Applied || res.Reason == "" {
		t.Fatalf("Do(goto 3) = %+v, %v", res, err)
	}
}

func TestNavigation_InterruptsAndSpeaks(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)

	if err := f.c.GoTo(2); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if f.avatar.Interrupts() != 1 {
		t.Fatalf("navigation must interrupt first")
	}
	if got := f.avatar.Spoken(); got[len(got)-1] != "en narration 3" {
		t.Fatalf("spoken = %q", got)
	}
	if err := f.c.Prev(); err != nil {
		t.Fatalf("Prev: %v", err)
	}
	if s := f.c.Snapshot(); s.Index != 1 {
		t.Fatalf("index = %d", s.Index)
	}
}

func TestNavigation_WhileConnectedDoesNotSpeak(t *testing.T) {
	f := newFixture(t, 3)
	_ = f.c.Connect()
	if err := f.c.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if s := f.c.Snapshot(); s.Index != 1 || s.State != StateConnected {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if len(f.avatar.Spoken()) != 0 {
		t.Fatalf("not presenting, nothing should be spoken")
	}
}

func TestNavigation_WithoutConnectionIsNoop(t *testing.T) {
	f := newFixture(t, 3)
	if err := f.c.Next(); !IsNoop(err) {
		t.Fatalf("want a state no-op, got %v", err)
	}
}

func TestManualNavigationBeatsPendingAdvance(t *testing.T) {
	f := newFixture(t, 4)
	f.presenting(t)
	_ = f.c.SpeechEnded(0)

	if err := f.c.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	// the timer callback still runs, as if it had already started
	f.clock.fireStopped()

	if s := f.c.Snapshot(); s.Index != 1 {
		t.Fatalf("stale auto-advance moved index to %d", s.Index)
	}
	if got := f.avatar.Spoken(); len(got) != 2 {
		t.Fatalf("want 2 speaks, got %q", got)
	}
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)
	_ = f.c.SpeechEnded(0)

	if err := f.c.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	s := mustState(t, f.c, StatePaused)
	if !s.Paused || s.Index != 0 || f.avatar.Interrupts() != 1 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if len(f.clock.pending()) != 0 {
		t.Fatalf("pause must cancel the pending advance")
	}
	if err := f.c.SpeechEnded(0); !IsNoop(err) {
		t.Fatalf("speech end while paused should be ignored, got %v", err)
	}
	if err := f.c.Pause(); !IsNoop(err) {
		t.Fatalf("double pause should be a no-op, got %v", err)
	}

	if err := f.c.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	mustState(t, f.c, StateSpeaking)
	if got := f.avatar.Spoken(); len(got) != 2 || got[1] != "en narration 1" {
		t.Fatalf("resume should respeak the current slide, got %q", got)
	}
}

func TestAsk_AnswersAndPauses(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)
	_ = f.c.GoTo(1)

	ans, err := f.c.Ask(context.Background(), "  Why did costs rise?  ")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans != "Because of costs." {
		t.Fatalf("answer = %q", ans)
	}
	mustState(t, f.c, StatePaused)
	if f.answers.got.ID != 101 {
		t.Fatalf("answer must be scoped to the current slide, got %d", f.answers.got.ID)
	}
	if f.qs.deckID != "deck-1" || f.qs.slideID == nil || *f.qs.slideID != 101 || f.qs.text != "Why did costs rise?" {
		t.Fatalf("question not recorded: %+v", f.qs)
	}
	got := f.avatar.Spoken()
	if got[len(got)-1] != "Because of costs." {
		t.Fatalf("answer not spoken: %q", got)
	}

	// the answer's speech end does not advance
	if err := f.c.SpeechEnded(0); err != nil {
		t.Fatalf("SpeechEnded: %v", err)
	}
	s := mustState(t, f.c, StatePaused)
	if s.Index != 1 || len(f.clock.pending()) != 0 {
		t.Fatalf("answer speech end must not advance: %+v", s)
	}
}

func TestAsk_FailuresStillAnswer(t *testing.T) {
	f := newFixture(t, 2)
	f.presenting(t)
	f.answers.err = errors.New("model down")
	f.qs.err = errors.New("db down")

	ans, err := f.c.Ask(context.Background(), "Anything?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans != Apology {
		t.Fatalf("want apology, got %q", ans)
	}
	mustState(t, f.c, StatePaused)

	_ = f.c.Resume()
	f.answers.err = nil
	f.answers.answer = "   "
	if ans, _ := f.c.Ask(context.Background(), "Again?"); ans != Apology {
		t.Fatalf("blank answer should fall back to apology, got %q", ans)
	}
}

func TestAsk_Rejections(t *testing.T) {
	f := newFixture(t, 2)
	if _, err := f.c.Ask(context.Background(), " "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("want ErrEmptyQuestion, got %v", err)
	}
	_ = f.c.Connect()
	if _, err := f.c.Ask(context.Background(), "q"); !IsNoop(err) {
		t.Fatalf("asking while not presenting should be a no-op, got %v", err)
	}
}

func TestStop_TearsDown(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)
	_ = f.c.SpeechEnded(0)
	sid := f.c.Snapshot().Avatar.ID

	if err := f.c.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	s := mustState(t, f.c, StateIdle)
	if s.Presenting || s.Avatar != nil {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if st := f.avatar.Stopped(); len(st) != 1 || st[0] != sid {
		t.Fatalf("avatar session not disconnected: %v", st)
	}
	f.clock.fireStopped()
	if len(f.avatar.Spoken()) != 1 {
		t.Fatalf("nothing may be spoken after stop")
	}
	if err := f.c.Stop(); !IsNoop(err) {
		t.Fatalf("second stop should be a no-op, got %v", err)
	}
}

func TestStreamDisconnected_IsAuthoritative(t *testing.T) {
	f := newFixture(t, 3)
	f.presenting(t)
	before := testutil.ToFloat64(transitions.WithLabelValues(string(StateSpeaking), string(StateDisconnected)))

	if err := f.c.StreamDisconnected(); err != nil {
		t.Fatalf("StreamDisconnected: %v", err)
	}
	s := mustState(t, f.c, StateIdle)
	if s.Status != "stream disconnected" {
		t.Fatalf("status = %q", s.Status)
	}
	if len(f.avatar.Stopped()) != 0 {
		t.Fatalf("a torn-down stream must not be disconnected again")
	}
	if err := f.c.Next(); !IsNoop(err) {
		t.Fatalf("navigation after disconnect should be a no-op, got %v", err)
	}
	if len(f.avatar.Spoken()) != 1 {
		t.Fatalf("no speak after disconnect")
	}
	after := testutil.ToFloat64(transitions.WithLabelValues(string(StateSpeaking), string(StateDisconnected)))
	if after-before != 1 {
		t.Fatalf("transition metric delta = %v", after-before)
	}
}

func TestStreamReady(t *testing.T) {
	f := newFixture(t, 1)
	if err := f.c.StreamReady(); !IsNoop(err) {
		t.Fatalf("stream ready without a session should be a no-op, got %v", err)
	}
	_ = f.c.Connect()
	if err := f.c.StreamReady(); err != nil {
		t.Fatalf("StreamReady: %v", err)
	}
	if s := f.c.Snapshot(); s.Status != "avatar ready" {
		t.Fatalf("status = %q", s.Status)
	}
}

func TestSetLanguage_RestartsConnection(t *testing.T) {
	f := newFixture(t, 2)
	f.presenting(t)
	first := f.c.Snapshot().Avatar.ID

	ch, cancel := f.c.Subscribe()
	defer cancel()

	if err := f.c.SetLanguage(context.Background(), "DE"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	s := mustState(t, f.c, StateConnected)
	if s.Language != "de" || s.Presenting || s.Narration != "de narration 1" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if st := f.avatar.Stopped(); len(st) != 1 || st[0] != first {
		t.Fatalf("old session must be disconnected, got %v", st)
	}
	conns := f.avatar.Connects()
	if len(conns) != 2 || conns[1].Language != "de" || conns[1].AvatarName != "Anna" {
		t.Fatalf("reconnect with new voice expected, got %+v", conns)
	}
	if len(f.avatar.Spoken()) != 1 {
		t.Fatalf("nothing may be spoken until an explicit start")
	}

	sawRestarting := false
	for len(ch) > 0 {
		if snap := <-ch; snap.Status == "restarting" {
			sawRestarting = true
		}
	}
	if !sawRestarting {
		t.Fatalf("a restarting status should be published")
	}

	if err := f.c.SetLanguage(context.Background(), "de"); !errors.Is(err, ErrSameLanguage) {
		t.Fatalf("same language should be a no-op, got %v", err)
	}
}

func TestSetLanguage_WaitsForNarrations(t *testing.T) {
	f := newFixture(t, 2)
	_ = f.c.Connect()
	delete(f.scripts.texts, "de")

	if err := f.c.SetLanguage(context.Background(), "de"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	s := mustState(t, f.c, StateIdle)
	if s.Status != "waiting for narrations" || s.Ready {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if len(f.avatar.Connects()) != 1 {
		t.Fatalf("must not reconnect without narrations")
	}
}

func TestSetLanguage_IdleOnlyReloads(t *testing.T) {
	f := newFixture(t, 2)
	calls := f.scripts.calls
	if err := f.c.SetLanguage(context.Background(), "de"); err != nil {
		t.Fatalf("SetLanguage: %v", err)
	}
	mustState(t, f.c, StateIdle)
	if f.scripts.calls != calls+1 || len(f.avatar.Connects()) != 0 {
		t.Fatalf("idle language switch should only reload")
	}
}

func TestReload_ErrorRecorded(t *testing.T) {
	f := newFixture(t, 2)
	f.scripts.err = errors.New("db gone")
	if err := f.c.Reload(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if s := f.c.Snapshot(); s.LastError != "db gone" {
		t.Fatalf("last error = %q", s.LastError)
	}
}

func TestEditAndCommit(t *testing.T) {
	f := newFixture(t, 2)
	if err := f.c.Edit(999, "x"); !errors.Is(err, services.ErrSlideNotFound) {
		t.Fatalf("foreign slide: want ErrSlideNotFound, got %v", err)
	}
	if err := f.c.Edit(100, "  "); !errors.Is(err, services.ErrEmptyText) {
		t.Fatalf("blank text: want ErrEmptyText, got %v", err)
	}
	if err := f.c.Edit(100, "better intro"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	s := f.c.Snapshot()
	if s.Dirty != 1 || s.Narration != "better intro" {
		t.Fatalf("edit should overlay playback: %+v", s)
	}

	res, err := f.c.Commit(context.Background())
	if err != nil || len(res) != 1 || res[0].Status != services.ResultOK {
		t.Fatalf("Commit = %+v, %v", res, err)
	}
	if f.writer.overwrite || f.writer.deckID != "deck-1" || f.writer.items[0].Language != "en" {
		t.Fatalf("commit must use overwrite=false on the deck: %+v", f.writer)
	}
	if s := f.c.Snapshot(); s.Dirty != 0 || s.Narration != "better intro" {
		t.Fatalf("after commit: %+v", s)
	}

	// reload drops saved overlays in favour of the store
	_ = f.c.Reload(context.Background())
	if s := f.c.Snapshot(); s.Narration != "en narration 1" {
		t.Fatalf("saved overlay should be dropped on reload, got %q", s.Narration)
	}
}

func TestCommit_WriterErrorKeepsDirty(t *testing.T) {
	f := newFixture(t, 2)
	f.writer.err = errors.New("locked")
	_ = f.c.Edit(100, "x")
	if _, err := f.c.Commit(context.Background()); err == nil {
		t.Fatalf("expected commit error")
	}
	s := f.c.Snapshot()
	if s.Dirty != 1 || s.LastError != "locked" {
		t.Fatalf("failed commit must keep the edit dirty: %+v", s)
	}
}

func TestDo_DispatchAndErrors(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	for _, name := range []string{"connect", "start", "next", "pause", "resume", "prev", "stop"} {
		res, err := f.c.Do(ctx, Command{Name: name})
		if err != nil || !res.Applied {
			t.Fatalf("%s: %+v %v", name, res, err)
		}
	}
	if _, err := f.c.Do(ctx, Command{Name: "dance"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("want ErrUnknownCommand, got %v", err)
	}
	if _, err := f.c.Do(ctx, Command{Name: "goto"}); !services.IsValidation(err) {
		t.Fatalf("goto without index should be a validation error, got %v", err)
	}
	res, err := f.c.Do(ctx, Command{Name: "edit", SlideID: 101, Text: "t"})
	if err != nil || len(res.Staged) != 1 || !res.Staged[0].Dirty {
		t.Fatalf("edit: %+v %v", res, err)
	}
	res, err = f.c.Do(ctx, Command{Name: "commit"})
	if err != nil || len(res.Results) != 1 || !res.Staged[0].Saved {
		t.Fatalf("commit: %+v %v", res, err)
	}

	if _, err := f.c.HandleEvent(Event{Name: "bogus"}); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("want ErrUnknownCommand, got %v", err)
	}
	res, err = f.c.HandleEvent(Event{Name: "speechEnded"})
	if err != nil || res.Applied {
		t.Fatalf("speech end while idle should not apply: %+v %v", res, err)
	}
}

func TestSubscribe_ReceivesAndCloses(t *testing.T) {
	f := newFixture(t, 2)
	ch, cancel := f.c.Subscribe()
	first := <-ch
	if first.State != StateIdle || first.SessionID != "s1" {
		t.Fatalf("first snapshot = %+v", first)
	}
	_ = f.c.Connect()
	var last Snapshot
	for len(ch) > 0 {
		last = <-ch
	}
	if last.State != StateConnected || last.Seq <= first.Seq {
		t.Fatalf("expected a newer connected snapshot, got %+v", last)
	}
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}
	cancel()

	f.c.Close()
	ch2, _ := f.c.Subscribe()
	if _, ok := <-ch2; ok {
		t.Fatalf("subscribing to a closed controller yields a closed channel")
	}
}

package callsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/koscakluka/ema-interview/core/events"
	"github.com/koscakluka/ema-interview/core/transcript"
)

var testIdentity = Identity{UserName: "Ada", UserID: "user-1", Kind: SessionKindGenerate}

func newActiveController(t *testing.T, fake VoiceSession, opts ...ControllerOption) *Controller {
	t.Helper()

	c := NewController(fake, testIdentity, opts...)
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestNewControllerStartsInactiveWithEmptyTranscript(t *testing.T) {
	c := NewController(newFakeVoice(), testIdentity)

	if got := c.State(); got != StateInactive {
		t.Fatalf("expected inactive state, got %s", got)
	}
	if got := len(c.Transcript()); got != 0 {
		t.Fatalf("expected empty transcript, got %d entries", got)
	}
	if _, ok := c.LatestEntry(); ok {
		t.Fatalf("expected no latest entry")
	}
}

func TestSessionScenarioRecordsTranscriptAndExitsOnce(t *testing.T) {
	fake := newFakeVoice()
	exitCalls := atomic.Int32{}
	c := newActiveController(t, fake, WithExitEffect(NewExitEffect(func() { exitCalls.Add(1) })))

	fake.Emit(events.NewSessionStarted("call-1"))
	if got := c.State(); got != StateActive {
		t.Fatalf("expected active state, got %s", got)
	}

	fake.Emit(events.NewTranscriptFragment("user", "Hello", true))
	assertTranscript(t, c.Transcript(), []transcript.Speaker{transcript.SpeakerUser}, []string{"Hello"})

	fake.Emit(events.NewTranscriptFragment("assistant", "Hi there", true))
	assertTranscript(t, c.Transcript(),
		[]transcript.Speaker{transcript.SpeakerUser, transcript.SpeakerAssistant},
		[]string{"Hello", "Hi there"})

	fake.Emit(events.NewSessionEnded("customer-ended-call"))
	if got := c.State(); got != StateFinished {
		t.Fatalf("expected finished state, got %s", got)
	}
	if got := exitCalls.Load(); got != 1 {
		t.Fatalf("expected exit effect once, got %d", got)
	}

	fake.Emit(events.NewSessionEnded(""))
	if got := exitCalls.Load(); got != 1 {
		t.Fatalf("expected duplicate end event not to re-trigger exit, got %d", got)
	}
}

func TestInterimFragmentsAreExcluded(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	fake.Emit(events.NewSessionStarted("call"))
	fake.Emit(events.NewTranscriptFragment("user", "Hel", false))
	fake.Emit(events.NewTranscriptFragment("user", "Hello", true))
	fake.Emit(events.NewTranscriptFragment("assistant", "Hi th", false))
	fake.Emit(events.NewTranscriptFragment("assistant", "Hi there", true))
	fake.Emit(events.NewTranscriptFragment("system", "Interview started", true))

	assertTranscript(t, c.Transcript(),
		[]transcript.Speaker{transcript.SpeakerUser, transcript.SpeakerAssistant, transcript.SpeakerSystem},
		[]string{"Hello", "Hi there", "Interview started"})

	latest, ok := c.LatestEntry()
	if !ok || latest.Content != "Interview started" {
		t.Fatalf("expected latest entry to be the system message, got %+v", latest)
	}
}

func TestFragmentWithUnknownRoleIsDropped(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	fake.Emit(events.NewTranscriptFragment("narrator", "ignored", true))
	fake.Emit(events.NewTranscriptFragment("user", "kept", true))

	assertTranscript(t, c.Transcript(), []transcript.Speaker{transcript.SpeakerUser}, []string{"kept"})
}

func TestTranscriptCallbackReceivesEntriesInOrder(t *testing.T) {
	fake := newFakeVoice()
	var received []string
	newActiveController(t, fake, WithTranscriptCallback(func(entry transcript.Entry) {
		received = append(received, entry.Content)
	}))

	fake.Emit(events.NewTranscriptFragment("user", "one", true))
	fake.Emit(events.NewTranscriptFragment("assistant", "skipped", false))
	fake.Emit(events.NewTranscriptFragment("assistant", "two", true))

	if len(received) != 2 || received[0] != "one" || received[1] != "two" {
		t.Fatalf("expected [one two], got %v", received)
	}
}

func TestSessionStartedAfterFinishedIsIgnored(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	fake.Emit(events.NewSessionStarted("call"))
	fake.Emit(events.NewSessionEnded(""))
	fake.Emit(events.NewSessionStarted("call"))

	if got := c.State(); got != StateFinished {
		t.Fatalf("expected finished to be sticky, got %s", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	fake := newFakeVoice()
	exitCalls := atomic.Int32{}
	finishedObservations := atomic.Int32{}
	c := newActiveController(t, fake,
		WithExitEffect(NewExitEffect(func() { exitCalls.Add(1) })),
		WithStateChangedCallback(func(state State) {
			if state == StateFinished {
				finishedObservations.Add(1)
			}
		}),
	)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	fake.Emit(events.NewSessionStarted("call"))

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected second stop error: %v", err)
	}

	if got := c.State(); got != StateFinished {
		t.Fatalf("expected finished state, got %s", got)
	}
	if got := fake.endCalls.Load(); got != 1 {
		t.Fatalf("expected remote end once, got %d", got)
	}
	if got := finishedObservations.Load(); got != 1 {
		t.Fatalf("expected finished to be observed once, got %d", got)
	}
	if got := exitCalls.Load(); got != 1 {
		t.Fatalf("expected exit effect once, got %d", got)
	}

	fake.Emit(events.NewSessionEnded(""))
	if got := exitCalls.Load(); got != 1 {
		t.Fatalf("expected end event after stop not to re-trigger exit, got %d", got)
	}
}

func TestStopNotifiesFinishedBeforeRemoteEndCompletes(t *testing.T) {
	fake := newFakeVoice()
	endEntered := make(chan struct{})
	releaseEnd := make(chan struct{})
	fake.onEnd = func() {
		close(endEntered)
		<-releaseEnd
	}

	exitCalls := atomic.Int32{}
	c := newActiveController(t, fake, WithExitEffect(NewExitEffect(func() { exitCalls.Add(1) })))
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	fake.Emit(events.NewSessionStarted("call"))

	stopped := make(chan error, 1)
	go func() { stopped <- c.Stop(context.Background()) }()
	<-endEntered

	if got := exitCalls.Load(); got != 1 {
		t.Fatalf("expected exit effect to fire while end is in flight, got %d calls", got)
	}
	if got := c.State(); got != StateFinished {
		t.Fatalf("expected finished state while end is in flight, got %s", got)
	}

	fake.Emit(events.NewSpeechStarted("assistant"))
	if c.IsSpeaking() {
		t.Fatalf("expected speech started after finish to be ignored")
	}

	close(releaseEnd)
	if err := <-stopped; err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if got := exitCalls.Load(); got != 1 {
		t.Fatalf("expected exit effect once, got %d", got)
	}
	if c.IsSpeaking() {
		t.Fatalf("expected finished controller not to be speaking")
	}
}

func TestSpeechStartedAfterSessionEndedIsIgnored(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	fake.Emit(events.NewSessionStarted("call"))
	fake.Emit(events.NewSessionEnded("assistant-ended-call"))
	fake.Emit(events.NewSpeechStarted("assistant"))

	if c.IsSpeaking() {
		t.Fatalf("expected finished controller not to be speaking")
	}
}

func TestStopFromInactiveDoesNotEndRemoteSession(t *testing.T) {
	fake := newFakeVoice()
	exitCalls := atomic.Int32{}
	c := newActiveController(t, fake, WithExitEffect(NewExitEffect(func() { exitCalls.Add(1) })))

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	if got := c.State(); got != StateFinished {
		t.Fatalf("expected finished state, got %s", got)
	}
	if got := fake.endCalls.Load(); got != 0 {
		t.Fatalf("expected no remote end without a session, got %d", got)
	}
	if got := exitCalls.Load(); got != 1 {
		t.Fatalf("expected exit effect once, got %d", got)
	}
}

func TestStartPassesIdentityAsVariables(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake, WithTemplateID("assistant-123"))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	if got := c.State(); got != StateConnecting {
		t.Fatalf("expected connecting state, got %s", got)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.lastTemplate != "assistant-123" {
		t.Fatalf("expected template id to be passed through, got %q", fake.lastTemplate)
	}
	expected := map[string]string{"username": "Ada", "userid": "user-1", "type": "generate"}
	for key, value := range expected {
		if got := fake.lastVariables[key]; got != value {
			t.Fatalf("expected variable %s=%q, got %q", key, value, got)
		}
	}
}

func TestStartWhileActiveIsRejected(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	fake.Emit(events.NewSessionStarted("call"))

	err := c.Start(context.Background())
	if !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("expected ErrSessionInProgress, got %v", err)
	}
	if got := fake.beginCalls.Load(); got != 1 {
		t.Fatalf("expected begin to be called once, got %d", got)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("expected state to stay active, got %s", got)
	}
}

func TestStartWhileConnectingIsRejected(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrSessionInProgress) {
		t.Fatalf("expected ErrSessionInProgress, got %v", err)
	}
	if got := fake.beginCalls.Load(); got != 1 {
		t.Fatalf("expected begin to be called once, got %d", got)
	}
}

func TestFailedStartReturnsToInactive(t *testing.T) {
	fake := newFakeVoice()
	beginErr := errors.New("assistant not found")
	fake.failBegin(beginErr)

	var states []State
	c := newActiveController(t, fake, WithStateChangedCallback(func(state State) {
		states = append(states, state)
	}))

	err := c.Start(context.Background())
	if !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error to be returned, got %v", err)
	}
	if got := c.State(); got != StateInactive {
		t.Fatalf("expected inactive state after failed start, got %s", got)
	}
	if len(states) != 2 || states[0] != StateConnecting || states[1] != StateInactive {
		t.Fatalf("expected [connecting inactive], got %v", states)
	}

	fake.failBegin(nil)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("expected retry after failure to succeed, got %v", err)
	}
	if got := fake.beginCalls.Load(); got != 2 {
		t.Fatalf("expected two begin calls, got %d", got)
	}
}

func TestFailedStartAfterStopKeepsFinished(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	fake.mu.Lock()
	fake.beginErr = errors.New("cancelled")
	fake.onBegin = func() { _ = c.Stop(context.Background()) }
	fake.mu.Unlock()

	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if got := c.State(); got != StateFinished {
		t.Fatalf("expected stop during begin to win, got %s", got)
	}
}

func TestSessionStartedDuringBeginActivates(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	fake.mu.Lock()
	fake.onBegin = func() { fake.Emit(events.NewSessionStarted("call")) }
	fake.mu.Unlock()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("expected active state, got %s", got)
	}
}

func TestStartWithoutUserIDIsRejectedBeforeBegin(t *testing.T) {
	fake := newFakeVoice()
	c := NewController(fake, Identity{UserName: "Anonymous"})
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}
	defer c.Close(context.Background())

	if err := c.Start(context.Background()); !errors.Is(err, ErrMissingIdentity) {
		t.Fatalf("expected ErrMissingIdentity, got %v", err)
	}
	if got := fake.beginCalls.Load(); got != 0 {
		t.Fatalf("expected no begin call, got %d", got)
	}
	if got := c.State(); got != StateInactive {
		t.Fatalf("expected inactive state, got %s", got)
	}
}

func TestStartRequiresActivation(t *testing.T) {
	fake := newFakeVoice()
	c := NewController(fake, testIdentity)

	if err := c.Start(context.Background()); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if got := fake.beginCalls.Load(); got != 0 {
		t.Fatalf("expected no begin call, got %d", got)
	}
}

func TestStartFromFinishedClearsTranscript(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	fake.Emit(events.NewSessionStarted("call"))
	fake.Emit(events.NewTranscriptFragment("user", "first run", true))
	fake.Emit(events.NewSessionEnded(""))

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected restart error: %v", err)
	}
	if got := c.State(); got != StateConnecting {
		t.Fatalf("expected connecting state, got %s", got)
	}
	if got := len(c.Transcript()); got != 0 {
		t.Fatalf("expected cleared transcript on restart, got %d entries", got)
	}

	fake.Emit(events.NewSessionStarted("call-2"))
	if got := c.State(); got != StateActive {
		t.Fatalf("expected new run to become active, got %s", got)
	}
}

// Regression: speech start used to be wired to the speech-ended event, so
// the speaking flag could never be observed as true.
func TestSpeakingStateIsObservableWhileSpeechIsOngoing(t *testing.T) {
	fake := newFakeVoice()
	var changes []bool
	c := newActiveController(t, fake, WithSpeakingStateChangedCallback(func(isSpeaking bool) {
		changes = append(changes, isSpeaking)
	}))

	fake.Emit(events.NewSessionStarted("call"))
	fake.Emit(events.NewSpeechStarted("assistant"))
	if !c.IsSpeaking() {
		t.Fatalf("expected speaking to be true while speech is ongoing")
	}

	fake.Emit(events.NewSpeechStopped("assistant"))
	if c.IsSpeaking() {
		t.Fatalf("expected speaking to be false after speech stopped")
	}

	if len(changes) != 2 || !changes[0] || changes[1] {
		t.Fatalf("expected [true false], got %v", changes)
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("expected speech events not to change state, got %s", got)
	}
}

func TestSessionErrorIsReportedWithoutStateChange(t *testing.T) {
	fake := newFakeVoice()
	cause := errors.New("meeting ejected")
	var reported []error
	c := newActiveController(t, fake, WithErrorCallback(func(err error) {
		reported = append(reported, err)
	}))

	fake.Emit(events.NewSessionStarted("call"))
	fake.Emit(events.NewSessionError(cause))

	if got := c.State(); got != StateActive {
		t.Fatalf("expected error not to change state, got %s", got)
	}
	if len(reported) != 1 || !errors.Is(reported[0], cause) {
		t.Fatalf("expected cause to be reported once, got %v", reported)
	}
}

func TestTeardownDuringConnectingLeavesNoHandlers(t *testing.T) {
	fake := newFakeVoice()
	exitCalls := atomic.Int32{}
	c := NewController(fake, testIdentity, WithExitEffect(NewExitEffect(func() { exitCalls.Add(1) })))
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("unexpected activation error: %v", err)
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	if got := fake.totalHandlers(); got != 0 {
		t.Fatalf("expected no handlers after teardown, got %d", got)
	}
	if got := fake.endCalls.Load(); got != 1 {
		t.Fatalf("expected live session to be released on teardown, got %d end calls", got)
	}

	stateBefore := c.State()
	fake.Emit(events.NewSessionStarted("call"))
	fake.Emit(events.NewTranscriptFragment("user", "too late", true))
	fake.Emit(events.NewSpeechStarted("assistant"))
	fake.Emit(events.NewSessionEnded(""))

	if got := c.State(); got != stateBefore {
		t.Fatalf("expected state %s to be unchanged after teardown, got %s", stateBefore, got)
	}
	if got := len(c.Transcript()); got != 0 {
		t.Fatalf("expected transcript unchanged after teardown, got %d entries", got)
	}
	if c.IsSpeaking() {
		t.Fatalf("expected speaking flag unchanged after teardown")
	}
	if got := exitCalls.Load(); got != 0 {
		t.Fatalf("expected no exit effect after teardown, got %d", got)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("expected ErrControllerClosed, got %v", err)
	}
}

func TestInFlightHandlerFromOldActivationIsIgnored(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	var stale func(events.Event)
	c.mu.Lock()
	activation := c.activation
	c.mu.Unlock()
	stale = func(event events.Event) { c.handle(activation, event) }

	c.Deactivate()
	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("unexpected reactivation error: %v", err)
	}

	stale(events.NewSessionStarted("call"))
	if got := c.State(); got != StateInactive {
		t.Fatalf("expected stale handler to be ignored, got %s", got)
	}
}

func TestActivationIsAllOrNothing(t *testing.T) {
	fake := newFakeVoice()
	subscriber := &failingSubscriber{fakeVoice: fake, failAfter: 3}
	c := NewController(subscriber, testIdentity)

	if err := c.Activate(context.Background()); err == nil {
		t.Fatalf("expected activation error")
	}
	if got := fake.totalHandlers(); got != 0 {
		t.Fatalf("expected partial subscriptions to be released, got %d handlers", got)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after failed activation, got %v", err)
	}
}

func TestReactivationRegistersFreshSet(t *testing.T) {
	fake := newFakeVoice()
	c := newActiveController(t, fake)

	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("unexpected second activation error: %v", err)
	}
	for _, kind := range events.SessionKinds() {
		if got := fake.Count(kind); got != 1 {
			t.Fatalf("expected one handler for %s, got %d", kind, got)
		}
	}

	c.Deactivate()
	if got := fake.totalHandlers(); got != 0 {
		t.Fatalf("expected no handlers after deactivation, got %d", got)
	}
	fake.Emit(events.NewSessionStarted("call"))
	if got := c.State(); got != StateInactive {
		t.Fatalf("expected deactivated controller to ignore events, got %s", got)
	}

	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("unexpected reactivation error: %v", err)
	}
	for _, kind := range events.SessionKinds() {
		if got := fake.Count(kind); got != 1 {
			t.Fatalf("expected one handler for %s after reactivation, got %d", kind, got)
		}
	}
	fake.Emit(events.NewSessionStarted("call"))
	if got := c.State(); got != StateActive {
		t.Fatalf("expected reactivated controller to handle events, got %s", got)
	}
}

func TestConcurrentStopAndEndEventExitOnce(t *testing.T) {
	for range 20 {
		fake := newFakeVoice()
		exitCalls := atomic.Int32{}
		c := newActiveController(t, fake, WithExitEffect(NewExitEffect(func() { exitCalls.Add(1) })))
		if err := c.Start(context.Background()); err != nil {
			t.Fatalf("unexpected start error: %v", err)
		}
		fake.Emit(events.NewSessionStarted("call"))

		wg := sync.WaitGroup{}
		wg.Add(3)
		go func() { defer wg.Done(); _ = c.Stop(context.Background()) }()
		go func() { defer wg.Done(); fake.Emit(events.NewSessionEnded("")) }()
		go func() { defer wg.Done(); _ = c.Stop(context.Background()) }()
		wg.Wait()

		if got := c.State(); got != StateFinished {
			t.Fatalf("expected finished state, got %s", got)
		}
		if got := exitCalls.Load(); got != 1 {
			t.Fatalf("expected exit effect exactly once, got %d", got)
		}
	}
}

func assertTranscript(t *testing.T, entries []transcript.Entry, speakers []transcript.Speaker, contents []string) {
	t.Helper()

	if len(entries) != len(contents) {
		t.Fatalf("expected %d entries, got %d", len(contents), len(entries))
	}
	for i, entry := range entries {
		if entry.Speaker != speakers[i] || entry.Content != contents[i] {
			t.Fatalf("entry %d: expected {%s %q}, got {%s %q}", i, speakers[i], contents[i], entry.Speaker, entry.Content)
		}
	}
}

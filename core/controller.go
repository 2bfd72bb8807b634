// Package callsession drives a single voice interview session: it owns the
// session state machine, listens to the remote event stream and keeps the
// transcript of finalized speech turns.
package callsession

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-interview/core/events"
	"github.com/koscakluka/ema-interview/core/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrSessionInProgress = errors.New("voice session already in progress")
	ErrNotActive         = errors.New("controller is not subscribed to voice session events")
	ErrControllerClosed  = errors.New("controller closed")
	ErrMissingIdentity   = errors.New("missing user id")
)

type Controller struct {
	voice      VoiceSession
	identity   Identity
	templateID string

	stateObservers         []func(State)
	onTranscript           func(transcript.Entry)
	onSpeakingStateChanged func(bool)
	onError                func(error)

	mu         sync.Mutex
	state      State
	transcript *transcript.Transcript
	isSpeaking bool
	// run is bumped by every Start so a late Begin failure can tell whether
	// the state it is about to reset still belongs to it.
	run uint64

	// activation identifies the current subscription set. Handlers from an
	// older activation are ignored even if they are still in flight.
	activation    uint64
	subscriptions *subscriptionSet
	closed        bool

	baseContext context.Context
}

func NewController(voice VoiceSession, identity Identity, opts ...ControllerOption) *Controller {
	c := &Controller{
		voice:       voice,
		identity:    identity,
		state:       StateInactive,
		transcript:  transcript.New(),
		baseContext: context.Background(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Activate subscribes the controller to every session event kind.
//
// The subscriptions are acquired as a unit: when any of them fails, the ones
// already acquired are released before the error is returned. Activating an
// already active controller is a no-op.
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}
	if c.subscriptions != nil {
		return nil
	}
	if ctx != nil {
		c.baseContext = ctx
	}

	c.activation++
	activation := c.activation
	subscriptions, err := acquireSubscriptions(c.voice, events.SessionKinds(), func(event events.Event) {
		c.handle(activation, event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to voice session events: %w", err)
	}

	c.subscriptions = subscriptions
	return nil
}

// Deactivate releases the subscriptions of the current activation. Events
// delivered afterwards, including ones already in flight, do not change the
// controller.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	subscriptions := c.subscriptions
	c.subscriptions = nil
	c.activation++
	c.mu.Unlock()

	subscriptions.release()
}

// Start begins a new voice session.
//
// Start is only valid from StateInactive or StateFinished. Starting from
// StateFinished begins a new run with an empty transcript. When the remote
// begin call fails the controller returns to StateInactive and the error is
// returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrControllerClosed
	case c.subscriptions == nil:
		c.mu.Unlock()
		return ErrNotActive
	case c.identity.UserID == "":
		c.mu.Unlock()
		return ErrMissingIdentity
	case c.state.IsLive():
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot start from %s: %w", state, ErrSessionInProgress)
	}

	if c.state == StateFinished {
		c.transcript = transcript.New()
		c.isSpeaking = false
	}
	c.run++
	run := c.run
	notify := c.setStateLocked(StateConnecting)
	c.mu.Unlock()
	notify()

	ctx, span := tracer.Start(ctx, "begin voice session")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.template_id", c.templateID),
		attribute.String("session.kind", string(c.identity.Kind)),
	)

	if err := c.voice.Begin(ctx, c.templateID, c.identity.variables()); err != nil {
		err = fmt.Errorf("failed to begin voice session: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		sessionStartFailures.Add(ctx, 1)

		c.mu.Lock()
		notify := func() {}
		if !c.closed && c.run == run && c.state == StateConnecting {
			notify = c.setStateLocked(StateInactive)
		}
		c.mu.Unlock()
		notify()

		return err
	}

	sessionsStarted.Add(ctx, 1)
	return nil
}

// Stop ends the session from any state. Calling Stop once the controller is
// finished does nothing.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.state == StateFinished {
		c.mu.Unlock()
		return nil
	}

	wasLive := c.state.IsLive()
	notify := c.setStateLocked(StateFinished)
	notifySpeaking := c.setSpeakingLocked(false)
	c.mu.Unlock()

	// Observers see Finished before the remote session is released, End can
	// take as long as the transport close handshake.
	notifySpeaking()
	notify()

	var err error
	if wasLive {
		if endErr := c.voice.End(ctx); endErr != nil {
			err = fmt.Errorf("failed to end voice session: %w", endErr)
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	return err
}

// Close tears the controller down. Subscriptions are released before Close
// returns and a remote session that may still be live is ended. After Close
// the controller ignores every event and operation.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subscriptions := c.subscriptions
	c.subscriptions = nil
	c.activation++
	wasLive := c.state.IsLive()
	c.mu.Unlock()

	subscriptions.release()

	if wasLive {
		if err := c.voice.End(ctx); err != nil {
			return fmt.Errorf("failed to release voice session: %w", err)
		}
	}
	return nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *Controller) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.isSpeaking
}

func (c *Controller) Identity() Identity { return c.identity }

// Transcript returns a snapshot of the current run's transcript.
func (c *Controller) Transcript() []transcript.Entry {
	c.mu.Lock()
	current := c.transcript
	c.mu.Unlock()

	return current.All()
}

func (c *Controller) LatestEntry() (transcript.Entry, bool) {
	c.mu.Lock()
	current := c.transcript
	c.mu.Unlock()

	return current.Latest()
}

func (c *Controller) handle(activation uint64, event events.Event) {
	c.mu.Lock()
	if c.closed || activation != c.activation || c.subscriptions == nil {
		c.mu.Unlock()
		return
	}

	notify := func() {}
	switch typedEvent := event.(type) {
	case events.SessionStarted:
		// Finished is sticky: a late start for this run must not revive it.
		if c.state != StateFinished {
			notify = c.setStateLocked(StateActive)
		}

	case events.SessionEnded:
		notifyState := c.setStateLocked(StateFinished)
		notifySpeaking := c.setSpeakingLocked(false)
		notify = func() { notifySpeaking(); notifyState() }

	case events.TranscriptFragment:
		if !typedEvent.IsFinal {
			break
		}
		speaker, err := transcript.ParseSpeaker(typedEvent.Role)
		if err != nil {
			logger.WarnContext(c.baseContext, "dropping transcript fragment", "error", err)
			break
		}
		entry := transcript.NewEntry(speaker, typedEvent.Text)
		c.transcript.Append(entry)
		transcriptEntries.Add(c.baseContext, 1)
		if callback := c.onTranscript; callback != nil {
			notify = func() { callback(entry) }
		}

	case events.SpeechStarted:
		// A finished session never speaks again, late updates included.
		if c.state != StateFinished {
			notify = c.setSpeakingLocked(true)
		}

	case events.SpeechStopped:
		notify = c.setSpeakingLocked(false)

	case events.SessionError:
		err := fmt.Errorf("voice session error: %w", typedEvent)
		streamErrors.Add(c.baseContext, 1)
		logger.ErrorContext(c.baseContext, "voice session reported an error", "error", err, "state", c.state)
		span := trace.SpanFromContext(c.baseContext)
		span.RecordError(err)
		if callback := c.onError; callback != nil {
			notify = func() { callback(err) }
		}

	default:
		logger.DebugContext(c.baseContext, "ignoring unknown voice session event", "kind", event.Kind())
	}
	c.mu.Unlock()

	notify()
}

// setStateLocked changes the state and returns the notification to run once
// the lock is released. Setting the current state again notifies nobody.
func (c *Controller) setStateLocked(state State) func() {
	if c.state == state {
		return func() {}
	}
	c.state = state

	observers := c.stateObservers
	return func() {
		for _, observe := range observers {
			observe(state)
		}
	}
}

func (c *Controller) setSpeakingLocked(isSpeaking bool) func() {
	if c.isSpeaking == isSpeaking {
		return func() {}
	}
	c.isSpeaking = isSpeaking

	callback := c.onSpeakingStateChanged
	if callback == nil {
		return func() {}
	}
	return func() { callback(isSpeaking) }
}

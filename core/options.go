package callsession

import (
	"context"

	"github.com/koscakluka/ema-interview/core/events"
	"github.com/koscakluka/ema-interview/core/transcript"
)

// VoiceSession is the remote voice agent the controller drives.
//
// Subscribe registers handler for a single event kind and returns a function
// that removes exactly that registration. Implementations deliver events for
// one session serially.
type VoiceSession interface {
	Begin(ctx context.Context, templateID string, variables map[string]string) error
	End(ctx context.Context) error
	Subscribe(kind events.Kind, handler func(events.Event)) (unsubscribe func(), err error)
}

type ControllerOption func(*Controller)

// WithTemplateID sets the remote agent (assistant) the session is started
// with.
func WithTemplateID(templateID string) ControllerOption {
	return func(c *Controller) {
		c.templateID = templateID
	}
}

// WithExitEffect registers an effect that observes every state change.
func WithExitEffect(effect *ExitEffect) ControllerOption {
	return func(c *Controller) {
		if effect != nil {
			c.stateObservers = append(c.stateObservers, effect.Observe)
		}
	}
}

// WithStateChangedCallback registers a callback for state transitions.
//
// Callbacks run on the goroutine that caused the transition, after the
// controller released its lock, so they can call back into the controller.
func WithStateChangedCallback(callback func(state State)) ControllerOption {
	return func(c *Controller) {
		if callback != nil {
			c.stateObservers = append(c.stateObservers, callback)
		}
	}
}

// WithTranscriptCallback registers a callback for every appended transcript
// entry.
func WithTranscriptCallback(callback func(entry transcript.Entry)) ControllerOption {
	return func(c *Controller) {
		c.onTranscript = callback
	}
}

// WithSpeakingStateChangedCallback registers a callback for agent speaking
// state updates.
func WithSpeakingStateChangedCallback(callback func(isSpeaking bool)) ControllerOption {
	return func(c *Controller) {
		c.onSpeakingStateChanged = callback
	}
}

// WithErrorCallback registers a callback for errors reported by the event
// stream. Errors are logged regardless.
func WithErrorCallback(callback func(err error)) ControllerOption {
	return func(c *Controller) {
		c.onError = callback
	}
}

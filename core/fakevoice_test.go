package callsession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-interview/core/events"
	"github.com/koscakluka/ema-interview/core/voice"
)

type fakeVoice struct {
	*voice.Emitter

	beginCalls atomic.Int32
	endCalls   atomic.Int32

	mu            sync.Mutex
	beginErr      error
	onBegin       func()
	onEnd         func()
	lastTemplate  string
	lastVariables map[string]string
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{Emitter: voice.NewEmitter()}
}

func (f *fakeVoice) Begin(_ context.Context, templateID string, variables map[string]string) error {
	f.beginCalls.Add(1)

	f.mu.Lock()
	f.lastTemplate = templateID
	f.lastVariables = variables
	beginErr := f.beginErr
	onBegin := f.onBegin
	f.mu.Unlock()

	if onBegin != nil {
		onBegin()
	}
	return beginErr
}

func (f *fakeVoice) End(context.Context) error {
	f.endCalls.Add(1)

	f.mu.Lock()
	onEnd := f.onEnd
	f.mu.Unlock()

	if onEnd != nil {
		onEnd()
	}
	return nil
}

func (f *fakeVoice) failBegin(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginErr = err
}

func (f *fakeVoice) totalHandlers() int {
	total := 0
	for _, kind := range events.SessionKinds() {
		total += f.Count(kind)
	}
	return total
}

// failingSubscriber lets the first failAfter subscriptions through and
// rejects the rest.
type failingSubscriber struct {
	*fakeVoice
	failAfter int
	calls     int
}

func (f *failingSubscriber) Subscribe(kind events.Kind, handler func(events.Event)) (func(), error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, errors.New("subscription refused")
	}
	return f.fakeVoice.Subscribe(kind, handler)
}

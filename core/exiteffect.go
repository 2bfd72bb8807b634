package callsession

import "sync/atomic"

// ExitEffect runs an action the first time it observes StateFinished.
//
// Later observations, including repeated Finished states caused by
// duplicate stop calls or duplicate end events, are ignored.
type ExitEffect struct {
	action func()
	fired  atomic.Bool
}

func NewExitEffect(action func()) *ExitEffect {
	return &ExitEffect{action: action}
}

func (e *ExitEffect) Observe(state State) {
	if state != StateFinished {
		return
	}

	if e.fired.CompareAndSwap(false, true) && e.action != nil {
		e.action()
	}
}

func (e *ExitEffect) Fired() bool { return e.fired.Load() }

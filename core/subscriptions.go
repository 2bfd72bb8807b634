package callsession

import (
	"fmt"

	"github.com/koscakluka/ema-interview/core/events"
)

type subscriber interface {
	Subscribe(kind events.Kind, handler func(events.Event)) (unsubscribe func(), err error)
}

// subscriptionSet holds the subscriptions of one activation. It is acquired
// as a whole and released as a whole.
type subscriptionSet struct {
	unsubscribes []func()
}

func acquireSubscriptions(source subscriber, kinds []events.Kind, handler func(events.Event)) (set *subscriptionSet, err error) {
	set = &subscriptionSet{}
	defer func() {
		if recovered := recover(); recovered != nil {
			set.release()
			set = nil
			err = fmt.Errorf("subscribing panicked: %v", recovered)
		}
	}()

	for _, kind := range kinds {
		unsubscribe, err := source.Subscribe(kind, handler)
		if err != nil {
			set.release()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", kind, err)
		}
		if unsubscribe != nil {
			set.unsubscribes = append(set.unsubscribes, unsubscribe)
		}
	}

	return set, nil
}

func (s *subscriptionSet) release() {
	if s == nil {
		return
	}

	for i := len(s.unsubscribes) - 1; i >= 0; i-- {
		s.unsubscribes[i]()
	}
	s.unsubscribes = nil
}

package events

const (
	// KindSessionStarted identifies the start of a live call.
	KindSessionStarted Kind = "session.started"
	// KindSessionEnded identifies the end of a call.
	KindSessionEnded Kind = "session.ended"
	// KindSessionError identifies an error reported during a call.
	KindSessionError Kind = "session.error"
)

// SessionStarted marks when the remote agent joined the call.
type SessionStarted struct {
	Base
	CallID string
}

// NewSessionStarted creates a session started event.
func NewSessionStarted(callID string) SessionStarted {
	return SessionStarted{Base: NewBase(KindSessionStarted), CallID: callID}
}

// SessionEnded marks when the call ended.
type SessionEnded struct {
	Base
	// Reason is the remote ended reason when known, empty otherwise.
	Reason string
}

// NewSessionEnded creates a session ended event.
func NewSessionEnded(reason string) SessionEnded {
	return SessionEnded{Base: NewBase(KindSessionEnded), Reason: reason}
}

// SessionError carries an error reported during the call.
type SessionError struct {
	Base
	Err error
}

// NewSessionError creates a session error event.
func NewSessionError(err error) SessionError {
	return SessionError{Base: NewBase(KindSessionError), Err: err}
}

func (e SessionError) Error() string {
	if e.Err == nil {
		return "unknown session error"
	}
	return e.Err.Error()
}

func (e SessionError) Unwrap() error { return e.Err }

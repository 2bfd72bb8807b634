package callsession

type State string

const (
	StateInactive   State = "inactive"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateFinished   State = "finished"
)

func (s State) String() string { return string(s) }

// IsLive reports whether a remote session may exist in this state and has
// to be released with End.
func (s State) IsLive() bool {
	return s == StateConnecting || s == StateActive
}

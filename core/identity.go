package callsession

import (
	"errors"
	"fmt"
)

type SessionKind string

const (
	SessionKindGenerate SessionKind = "generate"
	SessionKindReview   SessionKind = "review"
)

var ErrUnknownSessionKind = errors.New("unknown session kind")

// ParseSessionKind accepts the kinds the remote agent understands.
func ParseSessionKind(kind string) (SessionKind, error) {
	switch SessionKind(kind) {
	case SessionKindGenerate, SessionKindReview:
		return SessionKind(kind), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSessionKind, kind)
}

// Identity describes who the session is for. It is passed to the remote
// agent as session variables.
type Identity struct {
	UserName string
	UserID   string
	Kind     SessionKind
}

func (i Identity) variables() map[string]string {
	kind := i.Kind
	if kind == "" {
		kind = SessionKindGenerate
	}

	return map[string]string{
		"username": i.UserName,
		"userid":   i.UserID,
		"type":     string(kind),
	}
}

package events

const (
	// KindSpeechStarted identifies the agent starting to speak.
	KindSpeechStarted Kind = "speech.started"
	// KindSpeechStopped identifies the agent stopping speaking.
	KindSpeechStopped Kind = "speech.stopped"
)

// SpeechStarted marks when the agent started speaking.
type SpeechStarted struct {
	Base
	Role string
}

// NewSpeechStarted creates a speech started event.
func NewSpeechStarted(role string) SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted), Role: role}
}

// SpeechStopped marks when the agent stopped speaking.
type SpeechStopped struct {
	Base
	Role string
}

// NewSpeechStopped creates a speech stopped event.
func NewSpeechStopped(role string) SpeechStopped {
	return SpeechStopped{Base: NewBase(KindSpeechStopped), Role: role}
}

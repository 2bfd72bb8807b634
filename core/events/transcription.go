package events

// KindTranscriptFragment identifies a speech-to-text result for one speaker.
const KindTranscriptFragment Kind = "transcript.fragment"

// TranscriptFragment carries a transcribed piece of speech.
//
// Role is the raw speaker role reported by the remote side ("user",
// "assistant" or "system").
type TranscriptFragment struct {
	Base
	Role    string
	Text    string
	IsFinal bool
}

// NewTranscriptFragment creates a transcript fragment event.
func NewTranscriptFragment(role, text string, isFinal bool) TranscriptFragment {
	return TranscriptFragment{
		Base:    NewBase(KindTranscriptFragment),
		Role:    role,
		Text:    text,
		IsFinal: isFinal,
	}
}

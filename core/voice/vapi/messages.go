package vapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-interview/core/events"
)

const (
	messageTypeTranscript   = "transcript"
	messageTypeSpeechUpdate = "speech-update"
	messageTypeStatusUpdate = "status-update"
	messageTypeHang         = "hang"
	messageTypeError        = "error"

	controlTypeEndCall = "end-call"

	transcriptTypeFinal = "final"

	speechStatusStarted = "started"
	speechStatusStopped = "stopped"

	callStatusEnded = "ended"

	roleAssistant = "assistant"
)

type createCallRequest struct {
	AssistantID        string              `json:"assistantId"`
	AssistantOverrides *assistantOverrides `json:"assistantOverrides,omitempty"`
	Transport          callTransport       `json:"transport"`
}

type assistantOverrides struct {
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

type callTransport struct {
	Provider         string       `json:"provider"`
	AudioFormat      *audioFormat `json:"audioFormat,omitempty"`
	WebsocketCallURL string       `json:"websocketCallUrl,omitempty"`
}

type audioFormat struct {
	Format     string `json:"format"`
	Container  string `json:"container"`
	SampleRate int    `json:"sampleRate"`
}

type createCallResponse struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"`
	Transport callTransport `json:"transport"`
}

type serverMessage struct {
	Type           string          `json:"type"`
	Role           string          `json:"role,omitempty"`
	TranscriptType string          `json:"transcriptType,omitempty"`
	Transcript     string          `json:"transcript,omitempty"`
	Status         string          `json:"status,omitempty"`
	EndedReason    string          `json:"endedReason,omitempty"`
	Error          json.RawMessage `json:"error,omitempty"`
}

type controlMessage struct {
	Type string `json:"type"`
}

// toEvent translates a server message into a session event. The second
// return value is false for messages that have no event counterpart.
func toEvent(raw []byte) (events.Event, bool) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return events.NewSessionError(fmt.Errorf("failed to unmarshal call message: %w", err)), true
	}

	switch msg.Type {
	case messageTypeTranscript:
		return events.NewTranscriptFragment(
			msg.Role,
			strings.TrimSpace(msg.Transcript),
			msg.TranscriptType == transcriptTypeFinal,
		), true

	case messageTypeSpeechUpdate:
		// Only the agent's speech drives the speaking indicator.
		if msg.Role != roleAssistant {
			return nil, false
		}
		switch msg.Status {
		case speechStatusStarted:
			return events.NewSpeechStarted(msg.Role), true
		case speechStatusStopped:
			return events.NewSpeechStopped(msg.Role), true
		}

	case messageTypeStatusUpdate:
		if msg.Status == callStatusEnded {
			return events.NewSessionEnded(msg.EndedReason), true
		}

	case messageTypeHang:
		return events.NewSessionError(errors.New("assistant did not respond in time")), true

	case messageTypeError:
		return events.NewSessionError(fmt.Errorf("call error: %s", errorText(msg.Error))), true
	}

	return nil, false
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var structured struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil && structured.Message != "" {
		return structured.Message
	}

	return string(raw)
}

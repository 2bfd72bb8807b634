// Package events defines the typed voice-session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - transcript.*
//   - speech.*
//
// session events
//
//   - SessionStarted (session.started): the remote agent joined and the call
//     is live.
//   - SessionEnded (session.ended): the call ended, either side hung up or
//     the transport closed.
//   - SessionError (session.error): the remote side or the transport reported
//     an error. Errors do not end the session on their own.
//
// transcript events
//
//   - TranscriptFragment (transcript.fragment): speech-to-text result for one
//     speaker. Interim fragments can still be revised; final fragments cannot.
//
// speech events
//
//   - SpeechStarted (speech.started): the agent started speaking.
//   - SpeechStopped (speech.stopped): the agent stopped speaking.
package events

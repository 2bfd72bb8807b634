package vapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-interview/core/audio"
)

type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, mostly useful for tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithEncodingInfo sets the audio format negotiated for the call transport.
// Only linear16 is supported by the websocket transport.
func WithEncodingInfo(encodingInfo audio.EncodingInfo) ClientOption {
	return func(c *Client) {
		c.encodingInfo = encodingInfo
	}
}

// WithAudioCallback registers a callback for assistant audio received over
// the call transport.
//
// The callback runs inline on the read loop and should not block.
func WithAudioCallback(callback func(audio []byte)) ClientOption {
	return func(c *Client) {
		c.onAudio = callback
	}
}

// WithCloseTimeout bounds how long End waits for the remote side to close the
// transport before closing it locally.
func WithCloseTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.closeTimeout = timeout
		}
	}
}

// Package vapi implements a voice session on top of the Vapi API using the
// websocket call transport.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-interview/core/audio"
	"github.com/koscakluka/ema-interview/core/events"
	"github.com/koscakluka/ema-interview/core/voice"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultBaseURL = "https://api.vapi.ai"

	transportProvider   = "vapi.websocket"
	defaultCloseTimeout = 2 * time.Second
)

var (
	ErrSessionInProgress = errors.New("call already in progress")
	ErrNoSession         = errors.New("no call in progress")
)

// Client is a voice session backed by a single Vapi call at a time.
//
// Events are emitted from one read goroutine per call, so subscribers see
// them in transport order.
type Client struct {
	*voice.Emitter

	apiKey       string
	baseURL      string
	httpClient   *http.Client
	dialer       *websocket.Dialer
	encodingInfo audio.EncodingInfo
	onAudio      func(audio []byte)
	closeTimeout time.Duration

	connMu      sync.Mutex
	conn        *websocket.Conn
	callID      string
	done        chan struct{}
	cancelBegin context.CancelFunc
	beginning   bool
	ending      bool

	writeMu sync.Mutex
}

func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vapi api key not provided")
	}

	client := &Client{
		Emitter:      voice.NewEmitter(),
		apiKey:       apiKey,
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		dialer:       websocket.DefaultDialer,
		encodingInfo: audio.GetDefaultEncodingInfo(),
		closeTimeout: defaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.encodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported call encoding: %s", client.encodingInfo.Format.Name())
	}

	return client, nil
}

// Begin creates a call for the assistant and connects to its transport.
//
// Begin returns once the transport is connected; the session started event
// is delivered through the emitter. End cancels a Begin that is still in
// flight.
func (c *Client) Begin(ctx context.Context, assistantID string, variables map[string]string) error {
	ctx, span := tracer.Start(ctx, "begin call")
	defer span.End()
	span.SetAttributes(attribute.String("call.assistant_id", assistantID))

	c.connMu.Lock()
	if c.conn != nil || c.beginning {
		c.connMu.Unlock()
		return ErrSessionInProgress
	}
	ctx, cancel := context.WithCancel(ctx)
	c.beginning = true
	c.ending = false
	c.cancelBegin = cancel
	c.connMu.Unlock()

	defer func() {
		c.connMu.Lock()
		c.beginning = false
		c.cancelBegin = nil
		c.connMu.Unlock()
		cancel()
	}()

	call, err := c.createCall(ctx, assistantID, variables)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(attribute.String("call.id", call.ID))

	conn, _, err := c.dialer.DialContext(ctx, call.Transport.WebsocketCallURL, nil)
	if err != nil {
		err = fmt.Errorf("failed to open call transport: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	c.connMu.Lock()
	if err := ctx.Err(); err != nil {
		c.connMu.Unlock()
		conn.Close()
		return fmt.Errorf("call cancelled while connecting: %w", err)
	}
	done := make(chan struct{})
	c.conn = conn
	c.callID = call.ID
	c.done = done
	c.connMu.Unlock()

	go c.readAndProcessMessages(conn, call.ID, done)

	return nil
}

func (c *Client) createCall(ctx context.Context, assistantID string, variables map[string]string) (*createCallResponse, error) {
	reqBody := createCallRequest{
		AssistantID: assistantID,
		Transport: callTransport{
			Provider: transportProvider,
			AudioFormat: &audioFormat{
				Format:     "pcm_s16le",
				Container:  "raw",
				SampleRate: c.encodingInfo.SampleRate,
			},
		},
	}
	if len(variables) > 0 {
		reqBody.AssistantOverrides = &assistantOverrides{VariableValues: variables}
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.baseURL, "/")+"/call", bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, strings.TrimSpace(string(respBodyBytes)))
	}

	var call createCallResponse
	if err := json.Unmarshal(respBodyBytes, &call); err != nil {
		return nil, fmt.Errorf("error unmarshalling response: %w", err)
	}
	if call.Transport.WebsocketCallURL == "" {
		return nil, fmt.Errorf("call %s has no websocket transport url", call.ID)
	}

	return &call, nil
}

func (c *Client) readAndProcessMessages(conn *websocket.Conn, callID string, done chan struct{}) {
	defer close(done)

	c.Emit(events.NewSessionStarted(callID))

	ended := false
	for !ended {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if !c.isEnding() &&
				!websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				c.Emit(events.NewSessionError(fmt.Errorf("failed to read call transport message: %w", err)))
			}
			break
		}

		if msgType == websocket.BinaryMessage {
			if c.onAudio != nil {
				c.onAudio(msg)
			}
			continue
		}

		event, ok := toEvent(msg)
		if !ok {
			continue
		}
		if event.Kind() == events.KindSessionEnded {
			ended = true
		}
		c.Emit(event)
	}

	c.connMu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.callID = ""
	}
	c.connMu.Unlock()
	conn.Close()

	if !ended {
		c.Emit(events.NewSessionEnded("transport-closed"))
	}
}

func (c *Client) isEnding() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	return c.ending
}

// End hangs up the current call. It cancels a Begin still in flight, asks the
// remote side to end the call and waits for the transport to close. Calling
// End without a call is a no-op.
func (c *Client) End(ctx context.Context) error {
	c.connMu.Lock()
	c.ending = true
	cancelBegin := c.cancelBegin
	conn := c.conn
	done := c.done
	c.connMu.Unlock()

	if cancelBegin != nil {
		cancelBegin()
	}
	if conn == nil {
		return nil
	}

	var err error
	if writeErr := c.writeJSON(conn, controlMessage{Type: controlTypeEndCall}); writeErr != nil {
		err = fmt.Errorf("failed to send end call message: %w", writeErr)
		logger.WarnContext(ctx, "failed to request call end", "error", writeErr)
	}

	timer := time.NewTimer(c.closeTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return err
	case <-ctx.Done():
	case <-timer.C:
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	conn.Close()
	<-done

	return err
}

// SendAudio streams user audio into the current call.
func (c *Client) SendAudio(audio []byte) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		return ErrNoSession
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to call transport: %w", err)
	}
	return nil
}

func (c *Client) EncodingInfo() audio.EncodingInfo { return c.encodingInfo }

// CallID returns the ID of the current call or an empty string.
func (c *Client) CallID() string {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	return c.callID
}

// Close ends the current call and drops every subscription.
func (c *Client) Close(ctx context.Context) error {
	err := c.End(ctx)
	c.Emitter.Close()
	return err
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return conn.WriteJSON(v)
}

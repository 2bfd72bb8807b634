// Package miniaudio captures microphone audio and plays back agent audio
// through the default system devices.
package miniaudio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-interview/core/audio"
)

const (
	// Short capture periods keep the call transport latency low.
	capturePeriod  = 20 * time.Millisecond
	playbackPeriod = 100 * time.Millisecond
)

// Client owns one capture and one playback device sharing an audio context.
type Client struct {
	audioContext *malgo.AllocatedContext
	encodingInfo audio.EncodingInfo

	capture  *device
	playback *device
	buffer   *playbackBuffer

	onAudio atomic.Pointer[func(audio []byte)]
}

// NewClient opens the default capture and playback devices. Only linear16
// audio is supported.
func NewClient(encodingInfo audio.EncodingInfo) (*Client, error) {
	if encodingInfo.IsZero() {
		encodingInfo = audio.GetDefaultEncodingInfo()
	}
	if encodingInfo.Format != audio.EncodingLinear16 {
		return nil, fmt.Errorf("unsupported device encoding: %s", encodingInfo.Format.Name())
	}

	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	c := &Client{
		audioContext: audioContext,
		encodingInfo: encodingInfo,
		buffer:       &playbackBuffer{silence: encodingInfo.SilenceValue()},
	}

	c.playback, err = openDevice(audioContext, malgo.Playback, encodingInfo, playbackPeriod, 4,
		malgo.DeviceCallbacks{Data: c.play})
	if err != nil {
		c.Close()
		return nil, err
	}

	c.capture, err = openDevice(audioContext, malgo.Capture, encodingInfo, capturePeriod, 3,
		malgo.DeviceCallbacks{Data: c.captured})
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

func (c *Client) play(output, _ []byte, frameCount uint32) {
	c.buffer.fill(output, int(frameCount)*frameSize())
}

func (c *Client) captured(_, input []byte, frameCount uint32) {
	n := int(frameCount) * frameSize()
	if n == 0 || len(input) < n {
		return
	}

	if onAudio := c.onAudio.Load(); onAudio != nil {
		// The device reuses its buffer after the callback returns.
		(*onAudio)(append([]byte(nil), input[:n]...))
	}
}

// Stream starts playback and capture. Captured audio is passed to onAudio
// until StopCapture or Close.
func (c *Client) Stream(_ context.Context, onAudio func(audio []byte)) error {
	if err := c.playback.start(); err != nil {
		return err
	}

	c.onAudio.Store(&onAudio)
	if err := c.capture.start(); err != nil {
		c.onAudio.Store(nil)
		return err
	}
	return nil
}

func (c *Client) StopCapture() error {
	c.onAudio.Store(nil)
	return c.capture.stop()
}

func (c *Client) StopPlayback() error {
	defer c.buffer.clear()
	return c.playback.stop()
}

// SendAudio queues agent audio for playback.
func (c *Client) SendAudio(audio []byte) error {
	if !c.playback.isStarted() {
		return ErrDeviceNotStarted
	}
	c.buffer.write(audio)
	return nil
}

// ClearBuffer drops queued agent audio, e.g. when the agent is interrupted.
func (c *Client) ClearBuffer() {
	c.buffer.clear()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return c.encodingInfo
}

func (c *Client) Close() {
	c.onAudio.Store(nil)
	c.capture.close()
	c.playback.close()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

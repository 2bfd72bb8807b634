package miniaudio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-interview/core/audio"
)

var (
	ErrDeviceClosed     = errors.New("audio device closed")
	ErrDeviceNotStarted = errors.New("audio device not started")
)

// device wraps one malgo device of either direction. The mutex guards the
// device handle, the data callbacks never take it.
type device struct {
	name string

	mu     sync.Mutex
	device *malgo.Device
}

func openDevice(
	audioContext *malgo.AllocatedContext,
	deviceType malgo.DeviceType,
	encodingInfo audio.EncodingInfo,
	period time.Duration,
	periods uint32,
	callbacks malgo.DeviceCallbacks,
) (*device, error) {
	config := malgo.DefaultDeviceConfig(deviceType)
	config.SampleRate = uint32(encodingInfo.SampleRate)
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(encodingInfo.ChunkSize(period) / frameSize())
	config.Periods = periods

	name := "playback"
	if deviceType == malgo.Capture {
		name = "capture"
		config.Capture.Format = malgo.FormatS16
		config.Capture.Channels = audio.DefaultChannels
		config.PerformanceProfile = malgo.LowLatency
	} else {
		config.Playback.Format = malgo.FormatS16
		config.Playback.Channels = audio.DefaultChannels
	}

	handle, err := malgo.InitDevice(audioContext.Context, config, callbacks)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s device: %w", name, err)
	}
	return &device{name: name, device: handle}, nil
}

func frameSize() int {
	return malgo.SampleSizeInBytes(malgo.FormatS16) * audio.DefaultChannels
}

func (d *device) start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.device == nil:
		return ErrDeviceClosed
	case d.device.IsStarted():
		return nil
	}
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("failed to start %s device: %w", d.name, err)
	}
	return nil
}

func (d *device) stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.device == nil:
		return ErrDeviceClosed
	case !d.device.IsStarted():
		return nil
	}
	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop %s device: %w", d.name, err)
	}
	return nil
}

func (d *device) isStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.device != nil && d.device.IsStarted()
}

func (d *device) close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
}

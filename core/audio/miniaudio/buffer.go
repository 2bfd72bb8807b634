package miniaudio

import "sync"

// playbackBuffer queues agent audio between the network and the device
// callback.
type playbackBuffer struct {
	mu       sync.Mutex
	leftover []byte
	silence  byte
}

func (b *playbackBuffer) write(audio []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.leftover = append(b.leftover, audio...)
}

// fill copies up to need bytes into out and pads the rest with silence.
func (b *playbackBuffer) fill(out []byte, need int) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	need = min(need, len(out))
	n := copy(out[:need], b.leftover)
	b.leftover = b.leftover[n:]
	if len(b.leftover) == 0 {
		b.leftover = nil
	}
	for i := n; i < need; i++ {
		out[i] = b.silence
	}
	return n
}

func (b *playbackBuffer) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.leftover = nil
}

func (b *playbackBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.leftover)
}

package session

import "time"

// pcm16BytesPerSecond is the wire rate of the negotiated capture format:
// 16kHz mono, two bytes per sample.
const pcm16BytesPerSecond = 16000 * 2

// videoThrottle drops frames arriving faster than the configured
// interval. The newest frame wins: there is no queue, a dropped frame
// is simply never forwarded.
type videoThrottle struct {
	interval time.Duration
	last     time.Time
}

func newVideoThrottle(interval time.Duration) *videoThrottle {
	return &videoThrottle{interval: interval}
}

func (t *videoThrottle) Allow(now time.Time) bool {
	if t == nil {
		return true
	}
	if t.interval <= 0 {
		return true
	}
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

func (t *videoThrottle) Reset() {
	if t == nil {
		return
	}
	t.last = time.Time{}
}

// audioAccumulator buffers raw PCM until roughly one buffer duration
// has arrived, then releases it as a single unit. Chunks are never
// split; a unit may run slightly over the target.
type audioAccumulator struct {
	target int
	buf    []byte
}

func newAudioAccumulator(bufferFor time.Duration) *audioAccumulator {
	target := int(bufferFor.Seconds() * pcm16BytesPerSecond)
	if target <= 0 {
		target = pcm16BytesPerSecond / 2
	}
	return &audioAccumulator{target: target}
}

// Append adds one chunk and returns a full unit when the target is
// reached, or nil while still accumulating.
func (a *audioAccumulator) Append(chunk []byte) []byte {
	if a == nil || len(chunk) == 0 {
		return nil
	}
	a.buf = append(a.buf, chunk...)
	if len(a.buf) < a.target {
		return nil
	}
	unit := a.buf
	a.buf = nil
	return unit
}

// Discard drops any partially accumulated audio. Used on stop and
// reset: a partial unit is stale context, not a shorter unit.
func (a *audioAccumulator) Discard() {
	if a == nil {
		return
	}
	a.buf = nil
}

func (a *audioAccumulator) Buffered() int {
	if a == nil {
		return 0
	}
	return len(a.buf)
}

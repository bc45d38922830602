package core

import "github.com/spaghettifunk/lumen/engine/containers"

const AVG_COUNT uint8 = 30

// FrameMetrics keeps a rolling average of the last AVG_COUNT frame times
// and a once per second FPS counter.
type FrameMetrics struct {
	msTimes            *containers.RingQueue[float64]
	msSum              float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{msTimes: containers.NewRingQueue[float64](int(AVG_COUNT))}
}

// Update records a frame that took frameElapsedTime seconds. The average
// is reported once AVG_COUNT frames were recorded.
func (m *FrameMetrics) Update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	if old, dropped := m.msTimes.Push(frameMS); dropped {
		m.msSum -= old
	}
	m.msSum += frameMS
	if m.msTimes.IsFull() {
		m.msAvg = m.msSum / float64(m.msTimes.Len())
	}

	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.msAvg
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}

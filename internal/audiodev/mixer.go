package audiodev

import (
	"fmt"
	"math"
	"sync"
)

// mixer sums scheduled buffers into the output stream and keeps the playback
// clock as a frame counter.
type mixer struct {
	rate int

	mu      sync.Mutex
	frame   int64
	sources []*mixSource
}

type mixSource struct {
	m       *mixer
	samples []float32
	start   int64
	onEnded func()
	stopped bool
}

func newMixer(rate int) *mixer {
	return &mixer{rate: rate}
}

func (m *mixer) now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return float64(m.frame) / float64(m.rate)
}

func (m *mixer) schedule(samples []float32, sampleRate int, at float64, onEnded func()) (*mixSource, error) {
	if sampleRate != m.rate {
		return nil, fmt.Errorf("sample rate %d does not match output rate %d", sampleRate, m.rate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	start := int64(math.Round(at * float64(m.rate)))
	if start < m.frame {
		start = m.frame
	}
	src := &mixSource{m: m, samples: samples, start: start, onEnded: onEnded}
	m.sources = append(m.sources, src)
	return src, nil
}

// mix fills buf with the next len(buf) frames and advances the clock.
func (m *mixer) mix(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
	var ended []func()

	m.mu.Lock()
	from := m.frame
	to := from + int64(len(buf))
	kept := m.sources[:0]
	for _, s := range m.sources {
		end := s.start + int64(len(s.samples))
		lo := max(s.start, from)
		hi := min(end, to)
		for f := lo; f < hi; f++ {
			v := buf[f-from] + s.samples[f-s.start]
			buf[f-from] = min(max(v, -1), 1)
		}
		if end <= to {
			if s.onEnded != nil {
				ended = append(ended, s.onEnded)
			}
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(m.sources); i++ {
		m.sources[i] = nil
	}
	m.sources = kept
	m.frame = to
	m.mu.Unlock()

	for _, fn := range ended {
		go fn()
	}
}

func (m *mixer) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		s.stopped = true
	}
	m.sources = nil
}

func (s *mixSource) Stop() {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for i, other := range m.sources {
		if other == s {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			break
		}
	}
}

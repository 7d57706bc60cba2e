package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/symptomcheck/internal/audio"
)

var errOutputClosed = errors.New("playback context closed")

// RelayChunk is a scheduled playback buffer forwarded to a remote player.
// StartAt is expressed on the server playback clock in seconds.
type RelayChunk struct {
	ID         string
	PCM        []byte
	SampleRate int
	StartAt    float64
}

// RelayDevices stands in for local audio hardware when capture and playback
// happen on a remote client: microphone frames are pushed in, and scheduled
// buffers are pushed out with their start times.
type RelayDevices struct {
	play func(RelayChunk) error
	stop func(id string) error
	now  func() time.Time

	mu      sync.Mutex
	capture *RelayCapture
}

func NewRelayDevices(play func(RelayChunk) error, stop func(id string) error) *RelayDevices {
	return &RelayDevices{play: play, stop: stop, now: time.Now}
}

func (d *RelayDevices) OpenCapture(context.Context, int) (CaptureContext, error) {
	c := &RelayCapture{}
	d.mu.Lock()
	d.capture = c
	d.mu.Unlock()
	return c, nil
}

func (d *RelayDevices) OpenOutput(context.Context, int) (OutputContext, error) {
	return &RelayOutput{
		origin: d.now(),
		now:    d.now,
		play:   d.play,
		stop:   d.stop,
		timers: make(map[string]*time.Timer),
	}, nil
}

// PushFrame feeds remote microphone samples into the current capture.
func (d *RelayDevices) PushFrame(samples []float32) {
	d.mu.Lock()
	c := d.capture
	d.mu.Unlock()
	if c != nil {
		c.Push(samples)
	}
}

// RelayCapture re-frames arbitrary pushed sample runs into fixed blocks.
type RelayCapture struct {
	mu      sync.Mutex
	buf     []float32
	onBlock func([]float32)
	closed  bool
}

func (c *RelayCapture) Start(_ context.Context, onBlock func([]float32), _ func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("capture closed")
	}
	c.onBlock = onBlock
	return nil
}

func (c *RelayCapture) Push(samples []float32) {
	c.mu.Lock()
	if c.closed || c.onBlock == nil {
		c.mu.Unlock()
		return
	}
	c.buf = append(c.buf, samples...)
	var blocks [][]float32
	for len(c.buf) >= audio.BlockSize {
		block := make([]float32, audio.BlockSize)
		copy(block, c.buf[:audio.BlockSize])
		blocks = append(blocks, block)
		c.buf = c.buf[audio.BlockSize:]
	}
	onBlock := c.onBlock
	c.mu.Unlock()

	for _, b := range blocks {
		onBlock(b)
	}
}

func (c *RelayCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.onBlock = nil
	c.buf = nil
	return nil
}

// RelayOutput keeps a virtual playback clock and fires onEnded when a
// buffer's scheduled end time passes.
type RelayOutput struct {
	origin time.Time
	now    func() time.Time
	play   func(RelayChunk) error
	stop   func(id string) error

	mu     sync.Mutex
	closed bool
	timers map[string]*time.Timer
}

func (o *RelayOutput) Now() float64 {
	return o.now().Sub(o.origin).Seconds()
}

func (o *RelayOutput) Schedule(samples []float32, sampleRate int, at float64, onEnded func()) (Source, error) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, errOutputClosed
	}
	o.mu.Unlock()

	id := uuid.NewString()
	if err := o.play(RelayChunk{ID: id, PCM: audio.FloatToPCM16(samples), SampleRate: sampleRate, StartAt: at}); err != nil {
		return nil, err
	}

	end := at + audio.Duration(len(samples), sampleRate)
	delay := time.Duration((end - o.Now()) * float64(time.Second))

	o.mu.Lock()
	defer o.mu.Unlock()
	o.timers[id] = time.AfterFunc(delay, func() {
		o.mu.Lock()
		_, live := o.timers[id]
		delete(o.timers, id)
		o.mu.Unlock()
		if live {
			onEnded()
		}
	})
	return &relaySource{out: o, id: id}, nil
}

func (o *RelayOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
	return nil
}

type relaySource struct {
	out *RelayOutput
	id  string
}

func (s *relaySource) Stop() {
	s.out.mu.Lock()
	t, ok := s.out.timers[s.id]
	delete(s.out.timers, s.id)
	s.out.mu.Unlock()
	if ok {
		t.Stop()
		if s.out.stop != nil {
			_ = s.out.stop(s.id)
		}
	}
}

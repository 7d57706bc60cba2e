// Package audiodev plays and captures audio on the local sound card.
package audiodev

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/audio"
	"github.com/ent0n29/symptomcheck/internal/realtime"
)

const outputFramesPerBuffer = 1024

// Init must be called once before any stream is opened.
func Init() error {
	return portaudio.Initialize()
}

func Terminate() {
	_ = portaudio.Terminate()
}

// Devices opens the default PortAudio input and output streams.
type Devices struct {
	Logger zerolog.Logger
}

func (d Devices) OpenCapture(_ context.Context, sampleRate int) (realtime.CaptureContext, error) {
	buf := make([]float32, audio.BlockSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), &buf)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	return &capture{stream: stream, buf: buf, log: d.Logger, done: make(chan struct{})}, nil
}

func (d Devices) OpenOutput(_ context.Context, sampleRate int) (realtime.OutputContext, error) {
	buf := make([]float32, outputFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), len(buf), &buf)
	if err != nil {
		return nil, fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start output stream: %w", err)
	}
	o := &output{
		stream: stream,
		buf:    buf,
		mixer:  newMixer(sampleRate),
		log:    d.Logger,
		done:   make(chan struct{}),
	}
	o.wg.Add(1)
	go o.run()
	return o, nil
}

type capture struct {
	stream *portaudio.Stream
	buf    []float32
	log    zerolog.Logger

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func (c *capture) Start(ctx context.Context, onBlock func([]float32), onError func(error)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("start input stream: %w", err)
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			default:
			}
			if err := c.stream.Read(); err != nil {
				if !errors.Is(err, portaudio.InputOverflowed) {
					c.log.Warn().Err(err).Msg("microphone read failed")
					if onError != nil {
						// Close waits for this goroutine, so report asynchronously.
						go onError(fmt.Errorf("read input stream: %w", err))
					}
					return
				}
			}
			block := make([]float32, len(c.buf))
			copy(block, c.buf)
			onBlock(block)
		}
	}()
	return nil
}

func (c *capture) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.wg.Wait()
		_ = c.stream.Stop()
		err = c.stream.Close()
	})
	return err
}

type output struct {
	stream *portaudio.Stream
	buf    []float32
	mixer  *mixer
	log    zerolog.Logger

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func (o *output) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.done:
			return
		default:
		}
		o.mixer.mix(o.buf)
		if err := o.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			o.log.Warn().Err(err).Msg("speaker write failed")
			return
		}
	}
}

func (o *output) Now() float64 {
	return o.mixer.now()
}

func (o *output) Schedule(samples []float32, sampleRate int, at float64, onEnded func()) (realtime.Source, error) {
	select {
	case <-o.done:
		return nil, errors.New("output closed")
	default:
	}
	return o.mixer.schedule(samples, sampleRate, at, onEnded)
}

func (o *output) Close() error {
	var err error
	o.once.Do(func() {
		close(o.done)
		o.wg.Wait()
		o.mixer.stopAll()
		_ = o.stream.Stop()
		err = o.stream.Close()
	})
	return err
}

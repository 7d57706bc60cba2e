package realtime

import (
	"context"

	"github.com/ent0n29/symptomcheck/internal/audio"
)

// PlaybackSink plays whole PCM16 clips on an output context and blocks until
// the clip has finished or ctx is cancelled.
type PlaybackSink struct {
	Output OutputContext
}

func (s PlaybackSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	samples := audio.PCM16ToFloat(pcm)
	if len(samples) == 0 {
		return nil
	}
	done := make(chan struct{})
	src, err := s.Output.Schedule(samples, sampleRate, s.Output.Now(), func() { close(done) })
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		src.Stop()
		return ctx.Err()
	}
}

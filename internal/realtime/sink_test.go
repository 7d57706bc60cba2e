package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/symptomcheck/internal/audio"
)

func constant(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSinkPlaysUntilEnded(t *testing.T) {
	devices := NewRelayDevices(func(RelayChunk) error { return nil }, nil)
	out, err := devices.OpenOutput(context.Background(), audio.OutputSampleRate)
	require.NoError(t, err)
	defer out.Close()

	pcm := audio.FloatToPCM16(constant(240, 0.1))
	require.NoError(t, PlaybackSink{Output: out}.Play(context.Background(), pcm, audio.OutputSampleRate))
	require.NoError(t, PlaybackSink{Output: out}.Play(context.Background(), nil, audio.OutputSampleRate))
}

func TestSinkStopsOnCancel(t *testing.T) {
	var stopped []string
	devices := NewRelayDevices(func(RelayChunk) error { return nil }, func(id string) error {
		stopped = append(stopped, id)
		return nil
	})
	out, err := devices.OpenOutput(context.Background(), audio.OutputSampleRate)
	require.NoError(t, err)
	defer out.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pcm := audio.FloatToPCM16(constant(audio.OutputSampleRate*10, 0.1))
	err = PlaybackSink{Output: out}.Play(ctx, pcm, audio.OutputSampleRate)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, stopped, 1)
}

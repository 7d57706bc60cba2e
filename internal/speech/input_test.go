package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	startErr error
	starts   []string
	stops    int
}

func (f *fakeRecognizer) Start(_ context.Context, locale string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.starts = append(f.starts, locale)
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.stops++
	return nil
}

type inputHarness struct {
	rec      *fakeRecognizer
	in       *Input
	live     []string
	commits  []string
	errs     []error
	activity []bool
}

func newInputHarness() *inputHarness {
	h := &inputHarness{rec: &fakeRecognizer{}}
	h.in = NewInput(InputConfig{
		Recognizer:   h.rec,
		OnTranscript: func(s string) { h.live = append(h.live, s) },
		OnCommit:     func(s string) { h.commits = append(h.commits, s) },
		OnError:      func(err error) { h.errs = append(h.errs, err) },
		OnActive:     func(a bool) { h.activity = append(h.activity, a) },
		Logger:       zerolog.Nop(),
	})
	return h
}

func TestInputAccumulatesFinalsAndShowsInterims(t *testing.T) {
	h := newInputHarness()
	require.NoError(t, h.in.Start(context.Background()))
	assert.Equal(t, []string{"th-TH"}, h.rec.starts)

	h.in.Handle(Event{Kind: EventResult, Results: []Result{{Transcript: "ปวด", Final: false}}})
	h.in.Handle(Event{Kind: EventResult, Results: []Result{{Transcript: "ปวดหัว ", Final: true}}})
	h.in.Handle(Event{Kind: EventResult, Results: []Result{{Transcript: "มีไข้", Final: true}, {Transcript: "นิด", Final: false}}})
	h.in.Handle(Event{Kind: EventEnd})

	assert.Equal(t, []string{"ปวด", "ปวดหัว", "ปวดหัว มีไข้ นิด"}, h.live)
	assert.Equal(t, []string{"ปวดหัว มีไข้"}, h.commits)
	assert.Equal(t, []bool{true, false}, h.activity)
	assert.False(t, h.in.Active())
}

func TestInputToggleSeedsWithCurrentText(t *testing.T) {
	h := newInputHarness()
	require.NoError(t, h.in.Toggle(context.Background(), "ไอ"))
	h.in.Handle(Event{Kind: EventResult, Results: []Result{{Transcript: "เจ็บคอ", Final: true}}})

	require.NoError(t, h.in.Toggle(context.Background(), "ignored"))
	assert.Equal(t, 1, h.rec.stops)
	h.in.Handle(Event{Kind: EventEnd})

	assert.Equal(t, []string{"ไอ เจ็บคอ"}, h.commits)
}

func TestInputCommitTrimsTrailingWhitespace(t *testing.T) {
	h := newInputHarness()
	require.NoError(t, h.in.Toggle(context.Background(), "ปวดท้อง  "))
	h.in.Handle(Event{Kind: EventEnd})
	assert.Equal(t, []string{"ปวดท้อง"}, h.commits)
}

func TestInputErrorMapping(t *testing.T) {
	cases := map[string]error{
		"not-allowed":         ErrPermissionDenied,
		"service-not-allowed": ErrPermissionDenied,
		"no-speech":           ErrNoSpeech,
		"network":             ErrRecognition,
		"audio-capture":       ErrRecognition,
	}
	messages := map[string]bool{}
	for code, want := range cases {
		h := newInputHarness()
		require.NoError(t, h.in.Start(context.Background()))
		h.in.Handle(Event{Kind: EventError, Code: code})
		require.Len(t, h.errs, 1, code)
		assert.ErrorIs(t, h.errs[0], want, code)
		assert.Equal(t, 1, h.rec.stops, code)
		messages[UserMessage(h.errs[0])] = true
		assert.False(t, h.in.Active(), code)
	}
	assert.Len(t, messages, 3)
}

func TestInputStartFailure(t *testing.T) {
	h := newInputHarness()
	h.rec.startErr = RecognitionError("not-allowed")
	err := h.in.Start(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.False(t, h.in.Active())
	assert.Len(t, h.errs, 1)

	in := NewInput(InputConfig{Logger: zerolog.Nop()})
	assert.True(t, errors.Is(in.Start(context.Background()), ErrUnsupported))
}

func TestInputIgnoresEventsWhenInactive(t *testing.T) {
	h := newInputHarness()
	h.in.Handle(Event{Kind: EventResult, Results: []Result{{Transcript: "x", Final: true}}})
	h.in.Handle(Event{Kind: EventEnd})
	assert.Empty(t, h.live)
	assert.Empty(t, h.commits)
}

func TestInputErrorStopsWithoutEndEvent(t *testing.T) {
	h := newInputHarness()
	require.NoError(t, h.in.Toggle(context.Background(), ""))
	h.in.Handle(Event{Kind: EventResult, Results: []Result{{Transcript: "ปวดหัว", Final: true}}})
	h.in.Handle(Event{Kind: EventError, Code: "not-allowed"})

	assert.False(t, h.in.Active())
	assert.Equal(t, []bool{true, false}, h.activity)
	assert.Equal(t, []string{"ปวดหัว"}, h.commits)
	assert.Equal(t, 1, h.rec.stops)

	h.in.Handle(Event{Kind: EventEnd})
	assert.Len(t, h.commits, 1)

	require.NoError(t, h.in.Toggle(context.Background(), "ปวดหัว"))
	assert.True(t, h.in.Active())
	assert.Len(t, h.rec.starts, 2)
	assert.Equal(t, 1, h.rec.stops)
}

package voicecall

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voicebot-server/internal/callflow"
	openaiclient "voicebot-server/internal/clients/openai"
	"voicebot-server/internal/menu"
	"voicebot-server/internal/observability"
	"voicebot-server/internal/store"
	"voicebot-server/internal/voice/audio"
	"voicebot-server/internal/voicecall/twilio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePhone struct {
	mu      sync.Mutex
	media   [][]byte
	marks   []string
	stopped bool
}

func (p *fakePhone) SendMedia(muLaw []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := make([]byte, len(muLaw))
	copy(frame, muLaw)
	p.media = append(p.media, frame)
	return nil
}

func (p *fakePhone) SendMark(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks = append(p.marks, name)
	return nil
}

func (p *fakePhone) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakePhone) mediaCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.media)
}

func (p *fakePhone) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

type fakeSpeech struct {
	mu        sync.Mutex
	appended  [][]byte
	responses []string
	events    chan openaiclient.Event
	closeOnce sync.Once
}

func newFakeSpeech() *fakeSpeech {
	return &fakeSpeech{events: make(chan openaiclient.Event, 16)}
}

func (s *fakeSpeech) AppendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk := make([]byte, len(pcm))
	copy(chunk, pcm)
	s.appended = append(s.appended, chunk)
	return nil
}

func (s *fakeSpeech) CreateResponse(instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, instructions)
	return nil
}

func (s *fakeSpeech) Events() <-chan openaiclient.Event {
	return s.events
}

func (s *fakeSpeech) Close() {
	s.closeOnce.Do(func() { close(s.events) })
}

func (s *fakeSpeech) responseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.responses)
}

func (s *fakeSpeech) response(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responses[i]
}

func (s *fakeSpeech) appendedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appended)
}

type stubSettings struct {
	settings store.LiveSettings
}

func (s stubSettings) GetLiveSettings(ctx context.Context) (store.LiveSettings, error) {
	return s.settings, nil
}

type recordedEvent struct {
	callSid string
	event   string
	detail  string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) InsertCallEvent(ctx context.Context, callSID, event, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{callSid: callSID, event: event, detail: detail})
	return nil
}

func (r *fakeRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for _, e := range r.events {
		names = append(names, e.event)
	}
	return names
}

func testFlow(t *testing.T) *callflow.StateMachine {
	t.Helper()
	rules, err := callflow.NewRules("Ristorante Adam Spanbroek", "Europe/Amsterdam")
	require.NoError(t, err)

	catalog := menu.NewCatalog(menu.Menu{
		Categories: []string{"pizza", "pasta", "schotel"},
		Items: []menu.MenuItem{
			{Code: "pz-margherita", Name: "margherita", Category: "pizza", PriceEur: 12.0, Available: true},
		},
	})
	return callflow.NewStateMachine(rules, catalog, stubSettings{settings: store.DefaultLiveSettings()})
}

type sessionHarness struct {
	session  *Session
	phone    *fakePhone
	speech   *fakeSpeech
	recorder *fakeRecorder
	incoming chan twilio.StreamEvent
	done     chan error
}

func startSession(t *testing.T) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		phone:    &fakePhone{},
		speech:   newFakeSpeech(),
		recorder: &fakeRecorder{},
		incoming: make(chan twilio.StreamEvent, 16),
		done:     make(chan error, 1),
	}
	h.session = NewSession(SessionConfig{
		Flow: testFlow(t),
		Connect: func(ctx context.Context) (SpeechLeg, error) {
			return h.speech, nil
		},
		Phone:  h.phone,
		Events: h.recorder,
	}, observability.NewLogger())

	go func() {
		h.done <- h.session.Run(context.Background(), h.incoming)
	}()
	return h
}

func (h *sessionHarness) waitDone(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}

func startEvent() twilio.StreamEvent {
	return twilio.StreamEvent{Type: twilio.EventStart, CallSid: "CA123", StreamSid: "MZ456"}
}

func TestSession_GreetsOnStart(t *testing.T) {
	t.Setenv("VOICEBOT_FORCE_TIME", "18:00")
	h := startSession(t)

	h.incoming <- startEvent()

	require.Eventually(t, func() bool { return h.speech.responseCount() >= 1 },
		time.Second, 5*time.Millisecond)
	assert.Contains(t, h.speech.response(0), "Goedenavond")

	h.incoming <- twilio.StreamEvent{Type: twilio.EventStop}
	require.NoError(t, h.waitDone(t))
	assert.True(t, h.phone.isStopped())
}

func TestSession_ForwardsCallerAudioUpsampled(t *testing.T) {
	t.Setenv("VOICEBOT_FORCE_TIME", "18:00")
	h := startSession(t)

	h.incoming <- startEvent()
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 1 },
		time.Second, 5*time.Millisecond)

	frame := make([]byte, frameBytes)
	for i := range frame {
		frame[i] = muLawSilence
	}
	h.incoming <- twilio.StreamEvent{Type: twilio.EventMedia, Audio: frame}

	require.Eventually(t, func() bool { return h.speech.appendedCount() == 1 },
		time.Second, 5*time.Millisecond)

	// 160 samples at 8 kHz become 480 samples at 24 kHz, two bytes each.
	h.speech.mu.Lock()
	size := len(h.speech.appended[0])
	h.speech.mu.Unlock()
	assert.Equal(t, 960, size)

	h.incoming <- twilio.StreamEvent{Type: twilio.EventStop}
	require.NoError(t, h.waitDone(t))
}

func TestSession_ChunksBotAudioIntoTelephonyFrames(t *testing.T) {
	t.Setenv("VOICEBOT_FORCE_TIME", "18:00")
	h := startSession(t)

	h.incoming <- startEvent()
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 1 },
		time.Second, 5*time.Millisecond)

	// 720 samples at 24 kHz decimate to 240 at 8 kHz: one full frame out,
	// 80 bytes held for the next delta.
	delta := audio.EncodePCM16(make([]int16, 720))
	h.speech.events <- openaiclient.Event{Type: openaiclient.EventAudioDelta, Audio: delta}

	require.Eventually(t, func() bool { return h.phone.mediaCount() == 1 },
		time.Second, 5*time.Millisecond)

	h.incoming <- twilio.StreamEvent{Type: twilio.EventStop}
	require.NoError(t, h.waitDone(t))

	// The held remainder is flushed, padded to a full frame, at teardown.
	h.phone.mu.Lock()
	defer h.phone.mu.Unlock()
	require.Len(t, h.phone.media, 2)
	assert.Len(t, h.phone.media[0], frameBytes)
	assert.Len(t, h.phone.media[1], frameBytes)
}

func TestSession_TranscriptDrivesConversation(t *testing.T) {
	t.Setenv("VOICEBOT_FORCE_TIME", "18:00")
	h := startSession(t)

	h.incoming <- startEvent()
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 1 },
		time.Second, 5*time.Millisecond)

	h.speech.events <- openaiclient.Event{
		Type:       openaiclient.EventTranscriptCompleted,
		Transcript: "een margherita bezorgen graag",
	}
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 2 },
		time.Second, 5*time.Millisecond)
	assert.Contains(t, h.speech.response(1), "1× margherita")
	assert.Contains(t, h.speech.response(1), "Klopt dat zo?")

	h.speech.events <- openaiclient.Event{Type: openaiclient.EventResponseDone}
	require.Eventually(t, func() bool {
		h.phone.mu.Lock()
		defer h.phone.mu.Unlock()
		return len(h.phone.marks) == 1
	}, time.Second, 5*time.Millisecond)

	h.incoming <- twilio.StreamEvent{Type: twilio.EventStop}
	require.NoError(t, h.waitDone(t))
}

func TestSession_FinalizedCallHangsUpAfterPlayback(t *testing.T) {
	t.Setenv("VOICEBOT_FORCE_TIME", "18:00")
	h := startSession(t)

	h.incoming <- startEvent()
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 1 },
		time.Second, 5*time.Millisecond)

	h.speech.events <- openaiclient.Event{
		Type:       openaiclient.EventTranscriptCompleted,
		Transcript: "een margherita bezorgen graag",
	}
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 2 },
		time.Second, 5*time.Millisecond)

	h.speech.events <- openaiclient.Event{
		Type:       openaiclient.EventTranscriptCompleted,
		Transcript: "ja dat klopt",
	}
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 3 },
		time.Second, 5*time.Millisecond)
	assert.Contains(t, h.speech.response(2), "genoteerd")

	// Hangup waits for Twilio to confirm the goodbye played out.
	h.speech.events <- openaiclient.Event{Type: openaiclient.EventResponseDone}
	require.Eventually(t, func() bool {
		h.phone.mu.Lock()
		defer h.phone.mu.Unlock()
		return len(h.phone.marks) == 1
	}, time.Second, 5*time.Millisecond)

	h.incoming <- twilio.StreamEvent{Type: twilio.EventMark, Mark: "response-1"}
	require.NoError(t, h.waitDone(t))
	assert.True(t, h.phone.isStopped())
	assert.Contains(t, h.recorder.names(), "call_ended")
}

func TestSession_RecordsCallEvents(t *testing.T) {
	t.Setenv("VOICEBOT_FORCE_TIME", "18:00")
	h := startSession(t)

	h.incoming <- startEvent()
	require.Eventually(t, func() bool { return h.speech.responseCount() >= 1 },
		time.Second, 5*time.Millisecond)

	h.incoming <- twilio.StreamEvent{Type: twilio.EventStop}
	require.NoError(t, h.waitDone(t))

	names := h.recorder.names()
	assert.Contains(t, names, "call_started")
	assert.Contains(t, names, "reply")
	assert.Contains(t, names, "call_ended")

	h.recorder.mu.Lock()
	defer h.recorder.mu.Unlock()
	assert.Equal(t, "CA123", h.recorder.events[0].callSid)
}

type fakeAnnouncer struct {
	pcm []byte
}

func (a fakeAnnouncer) SynthesizePCM(ctx context.Context, text, voice string) ([]byte, error) {
	return a.pcm, nil
}

func TestSession_SpeechConnectFailurePlaysAnnouncement(t *testing.T) {
	t.Setenv("VOICEBOT_FORCE_TIME", "18:00")
	phone := &fakePhone{}
	incoming := make(chan twilio.StreamEvent, 16)
	session := NewSession(SessionConfig{
		Flow: testFlow(t),
		Connect: func(ctx context.Context) (SpeechLeg, error) {
			return nil, errors.New("dial failed")
		},
		Phone: phone,
		// One full telephony frame after 24k->8k decimation.
		Announcer: fakeAnnouncer{pcm: audio.EncodePCM16(make([]int16, 480))},
	}, observability.NewLogger())

	done := make(chan error, 1)
	go func() { done <- session.Run(context.Background(), incoming) }()

	incoming <- startEvent()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
	assert.Equal(t, 1, phone.mediaCount())
	assert.True(t, phone.isStopped())
}

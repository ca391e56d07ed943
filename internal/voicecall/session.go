package voicecall

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"voicebot-server/internal/callflow"
	openaiclient "voicebot-server/internal/clients/openai"
	"voicebot-server/internal/observability"
	"voicebot-server/internal/voice/audio"
	"voicebot-server/internal/voicecall/twilio"

	"github.com/google/uuid"
)

const (
	telephonyRate = 8000
	realtimeRate  = 24000
	frameBytes    = 160 // 20 ms of mu-law at 8 kHz

	muLawSilence = 0xFF
)

const connectFailureAnnouncement = "Onze excuses, er gaat iets mis met de verbinding. Probeert u het later opnieuw."

// TelephonyLeg is the session's view of the Twilio media stream.
type TelephonyLeg interface {
	SendMedia(muLaw []byte) error
	SendMark(name string) error
	Stop()
}

// SpeechLeg is the session's view of one realtime conversation.
type SpeechLeg interface {
	AppendAudio(pcm []byte) error
	CreateResponse(instructions string) error
	Events() <-chan openaiclient.Event
	Close()
}

// SpeechConnector dials the speech leg when the telephony stream starts.
type SpeechConnector func(ctx context.Context) (SpeechLeg, error)

// Announcer produces pcm16 speech at 24 kHz outside the realtime leg.
type Announcer interface {
	SynthesizePCM(ctx context.Context, text string, voice string) ([]byte, error)
}

// EventRecorder persists call events. Failures are logged and never abort
// the call.
type EventRecorder interface {
	InsertCallEvent(ctx context.Context, callSID, event, detail string) error
}

// Session bridges one phone call between the telephony leg and the speech
// leg. The telephony pump runs on the Run goroutine; the speech pump runs on
// its own goroutine and is the only writer to the conversation flow.
type Session struct {
	id      uuid.UUID
	logger  *observability.Logger
	flow    *callflow.StateMachine
	connect SpeechConnector
	phone   TelephonyLeg
	events  EventRecorder

	announcer Announcer
	voice     string

	speech    SpeechLeg
	chunker   *audio.Chunker
	callSid   string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closing   atomic.Bool
	marks     int
	downOnce  sync.Once
}

type SessionConfig struct {
	Flow      *callflow.StateMachine
	Connect   SpeechConnector
	Phone     TelephonyLeg
	Events    EventRecorder
	Announcer Announcer
	Voice     string
}

func NewSession(cfg SessionConfig, logger *observability.Logger) *Session {
	return &Session{
		id:        uuid.New(),
		logger:    logger,
		flow:      cfg.Flow,
		connect:   cfg.Connect,
		phone:     cfg.Phone,
		events:    cfg.Events,
		announcer: cfg.Announcer,
		voice:     cfg.Voice,
		chunker:   audio.NewChunker(frameBytes),
	}
}

// Run drives the session until the caller hangs up, either leg drops, or ctx
// is cancelled. It always tears both legs down before returning.
func (s *Session) Run(ctx context.Context, incoming <-chan twilio.StreamEvent) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "session_id", Value: s.id.String()})
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer s.teardown(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-incoming:
			if !ok {
				return nil
			}
			switch event.Type {
			case twilio.EventStart:
				if err := s.handleStart(ctx, event); err != nil {
					return err
				}
			case twilio.EventMedia:
				s.handleCallerAudio(ctx, event.Audio)
			case twilio.EventMark:
				// The final reply has fully played out once Twilio echoes
				// the mark back; only then does a finalized call hang up.
				if s.closing.Load() {
					return nil
				}
			case twilio.EventStop:
				return nil
			}
		}
	}
}

func (s *Session) handleStart(ctx context.Context, event twilio.StreamEvent) error {
	s.callSid = event.CallSid
	s.record(ctx, "call_started", event.StreamSid)

	speech, err := s.connect(ctx)
	if err != nil {
		s.logger.Error(ctx, "Failed to connect speech leg", err)
		s.record(ctx, "speech_leg_failed", err.Error())
		s.announceFailure(ctx)
		return fmt.Errorf("failed to connect speech leg: %w", err)
	}
	s.speech = speech

	s.wg.Add(1)
	go s.pumpSpeech(ctx)
	return nil
}

// handleCallerAudio transcodes one inbound telephony frame for the speech
// leg. A malformed frame is dropped, never session-fatal.
func (s *Session) handleCallerAudio(ctx context.Context, muLaw []byte) {
	if s.speech == nil {
		return
	}
	samples := audio.DecodeMuLaw(muLaw)
	samples = audio.Resample(samples, telephonyRate, realtimeRate)
	if err := s.speech.AppendAudio(audio.EncodePCM16(samples)); err != nil {
		s.logger.Error(ctx, "Failed to forward caller audio", err)
		s.cancel()
	}
}

// pumpSpeech is the outbound pump and the single writer to the conversation
// flow. It opens the conversation, then reacts to realtime events until the
// speech leg ends.
func (s *Session) pumpSpeech(ctx context.Context) {
	defer s.wg.Done()
	defer s.flushOutbound()

	greeting, err := s.flow.Begin(ctx)
	if err != nil {
		s.logger.Error(ctx, "Failed to open conversation", err)
		s.cancel()
		return
	}
	s.say(ctx, greeting)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.speech.Events():
			if !ok {
				s.cancel()
				return
			}
			switch event.Type {
			case openaiclient.EventAudioDelta:
				s.handleBotAudio(ctx, event.Audio)
			case openaiclient.EventTranscriptCompleted:
				s.handleTranscript(ctx, event.Transcript)
			case openaiclient.EventResponseDone:
				s.handleResponseDone(ctx)
			case openaiclient.EventError:
				s.logger.Warn(ctx, "Speech leg reported error: "+event.Message)
			}
		}
	}
}

// handleBotAudio transcodes synthesized speech into fixed telephony frames.
// Partial frames stay buffered until the next delta.
func (s *Session) handleBotAudio(ctx context.Context, pcm []byte) {
	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		s.logger.Error(ctx, "Failed to decode synthesized audio", err)
		return
	}
	samples = audio.Resample(samples, realtimeRate, telephonyRate)
	for _, frame := range s.chunker.Push(audio.EncodeMuLaw(samples)) {
		if err := s.phone.SendMedia(frame); err != nil {
			s.logger.Error(ctx, "Failed to send audio to caller", err)
			s.cancel()
			return
		}
	}
}

func (s *Session) handleTranscript(ctx context.Context, transcript string) {
	s.record(ctx, "transcript", transcript)

	reply, err := s.flow.HandleUtterance(ctx, transcript)
	if err != nil {
		s.logger.Error(ctx, "Conversation flow failed", err)
		return
	}
	if reply != "" {
		s.say(ctx, reply)
	}
}

func (s *Session) handleResponseDone(ctx context.Context) {
	s.marks++
	if err := s.phone.SendMark(fmt.Sprintf("response-%d", s.marks)); err != nil {
		s.logger.Error(ctx, "Failed to send playback mark", err)
		s.cancel()
		return
	}
	if s.flow.State() == callflow.StateFinalized {
		s.closing.Store(true)
	}
}

// say instructs the speech leg to speak the given Dutch sentence verbatim.
func (s *Session) say(ctx context.Context, text string) {
	s.record(ctx, "reply", text)
	instructions := fmt.Sprintf("Zeg letterlijk en alleen het volgende, in het Nederlands: %q", text)
	if err := s.speech.CreateResponse(instructions); err != nil {
		s.logger.Error(ctx, "Failed to request spoken response", err)
		s.cancel()
	}
}

// flushOutbound pushes the buffered partial frame, padded with mu-law
// silence to the fixed frame size. Best effort during teardown.
func (s *Session) flushOutbound() {
	remainder := s.chunker.Flush()
	if len(remainder) == 0 {
		return
	}
	for len(remainder) < frameBytes {
		remainder = append(remainder, muLawSilence)
	}
	_ = s.phone.SendMedia(remainder)
}

// announceFailure plays a pre-synthesized apology over the telephony leg
// when the speech leg could not be established.
func (s *Session) announceFailure(ctx context.Context) {
	if s.announcer == nil {
		return
	}
	pcm, err := s.announcer.SynthesizePCM(ctx, connectFailureAnnouncement, s.voice)
	if err != nil {
		s.logger.Error(ctx, "Failed to synthesize fallback announcement", err)
		return
	}
	samples, err := audio.DecodePCM16(pcm)
	if err != nil {
		s.logger.Error(ctx, "Failed to decode fallback announcement", err)
		return
	}
	samples = audio.Resample(samples, realtimeRate, telephonyRate)
	encoded := audio.EncodeMuLaw(samples)

	chunker := audio.NewChunker(frameBytes)
	for _, frame := range chunker.Push(encoded) {
		if err := s.phone.SendMedia(frame); err != nil {
			return
		}
	}
	if remainder := chunker.Flush(); len(remainder) > 0 {
		for len(remainder) < frameBytes {
			remainder = append(remainder, muLawSilence)
		}
		_ = s.phone.SendMedia(remainder)
	}
}

// teardown closes both legs exactly once. The speech pump is joined before
// the telephony leg closes so its final frames still have a socket.
func (s *Session) teardown(ctx context.Context) {
	s.downOnce.Do(func() {
		s.cancel()
		if s.speech != nil {
			s.speech.Close()
		}
		s.wg.Wait()
		s.phone.Stop()
		s.record(context.WithoutCancel(ctx), "call_ended", "")
	})
}

// record persists a call event without ever failing the call.
func (s *Session) record(ctx context.Context, event, detail string) {
	if s.events == nil {
		return
	}
	if err := s.events.InsertCallEvent(ctx, s.callSid, event, detail); err != nil {
		s.logger.Error(ctx, "Failed to record call event", err)
	}
}

package openai

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"voicebot-server/internal/observability"
	"voicebot-server/internal/voice/audio"

	"github.com/gorilla/websocket"
)

const realtimeBaseURL = "wss://api.openai.com/v1/realtime"

// RealtimeConfig holds the per-call session parameters sent in the initial
// session.update.
type RealtimeConfig struct {
	Model        string // e.g. "gpt-4o-realtime-preview"
	Voice        string // e.g. "marin"
	Language     string // ISO-639-1 code for input transcription, e.g. "nl"
	Instructions string
}

// EventType discriminates the realtime events the call session cares about.
type EventType string

const (
	EventAudioDelta          EventType = "audio_delta"
	EventTranscriptCompleted EventType = "transcript_completed"
	EventResponseDone        EventType = "response_done"
	EventError               EventType = "error"
)

// Event is one upstream realtime event, already decoded.
type Event struct {
	Type       EventType
	Audio      []byte // pcm16, 24 kHz, for audio_delta
	Transcript string // for transcript_completed
	Message    string // for error
}

// RealtimeClient dials OpenAI realtime sessions.
type RealtimeClient struct {
	apiKey string
	logger *observability.Logger
}

func NewRealtimeClient(apiKey string, logger *observability.Logger) (*RealtimeClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &RealtimeClient{apiKey: apiKey, logger: logger}, nil
}

// RealtimeSession is one live websocket session. Writes are serialized with
// a mutex because the inbound audio pump and the transcript handler both
// send commands.
type RealtimeSession struct {
	conn      *websocket.Conn
	logger    *observability.Logger
	events    chan Event
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Connect opens the websocket, configures the session, and starts the event
// reader. The returned session's Events channel is closed when the upstream
// connection ends.
func (c *RealtimeClient) Connect(ctx context.Context, cfg RealtimeConfig) (*RealtimeSession, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")

	url := realtimeBaseURL + "?model=" + cfg.Model
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to OpenAI realtime endpoint: %w", err)
	}

	s := &RealtimeSession{
		conn:   conn,
		logger: c.logger,
		events: make(chan Event, 64),
	}

	sessionUpdate := map[string]interface{}{
		"type": "session.update",
		"session": map[string]interface{}{
			"modalities":          []string{"audio", "text"},
			"voice":               cfg.Voice,
			"instructions":        cfg.Instructions,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]string{
				"model":    "whisper-1",
				"language": cfg.Language,
			},
			"turn_detection": map[string]interface{}{
				"type":                "server_vad",
				"threshold":           0.5,
				"prefix_padding_ms":   300,
				"silence_duration_ms": 500,
			},
		},
	}
	if err := s.writeJSON(sessionUpdate); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure realtime session: %w", err)
	}

	go s.readEvents(ctx)
	return s, nil
}

// Events delivers decoded upstream events until the session ends.
func (s *RealtimeSession) Events() <-chan Event {
	return s.events
}

// AppendAudio streams one chunk of pcm16 caller audio into the input buffer.
func (s *RealtimeSession) AppendAudio(pcm []byte) error {
	return s.writeJSON(map[string]interface{}{
		"type":  "input_audio_buffer.append",
		"audio": audio.BytesToBase64(pcm),
	})
}

// CommitAudio forces the input buffer into the conversation. Server VAD
// commits on detected end of speech, so this is only needed when a caller
// hangs up mid-utterance and the tail should still be transcribed.
func (s *RealtimeSession) CommitAudio() error {
	return s.writeJSON(map[string]interface{}{
		"type": "input_audio_buffer.commit",
	})
}

// CreateResponse asks the model to speak. With instructions set the model
// says exactly what the conversation flow decided; server VAD handles the
// turn-taking otherwise.
func (s *RealtimeSession) CreateResponse(instructions string) error {
	response := map[string]interface{}{
		"modalities": []string{"audio", "text"},
	}
	if instructions != "" {
		response["instructions"] = instructions
	}
	return s.writeJSON(map[string]interface{}{
		"type":     "response.create",
		"response": response,
	})
}

// Close is idempotent; the reader goroutine exits on the closed connection
// and closes the events channel.
func (s *RealtimeSession) Close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		s.conn.Close()
	})
}

func (s *RealtimeSession) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *RealtimeSession) readEvents(ctx context.Context) {
	defer close(s.events)

	for {
		var event struct {
			Type       string `json:"type"`
			Delta      string `json:"delta"`
			Transcript string `json:"transcript"`
			Error      struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := s.conn.ReadJSON(&event); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Error(ctx, "Realtime websocket read failed", err)
			}
			return
		}

		switch event.Type {
		case "response.audio.delta":
			pcm, err := audio.Base64ToBytes(event.Delta)
			if err != nil {
				s.logger.Error(ctx, "Failed to decode realtime audio delta", err)
				continue
			}
			s.emit(ctx, Event{Type: EventAudioDelta, Audio: pcm})

		case "conversation.item.input_audio_transcription.completed":
			s.emit(ctx, Event{Type: EventTranscriptCompleted, Transcript: event.Transcript})

		case "response.done":
			s.emit(ctx, Event{Type: EventResponseDone})

		case "error":
			s.logger.Warn(ctx, "Realtime session error: "+event.Error.Message)
			s.emit(ctx, Event{Type: EventError, Message: event.Error.Message})
		}
	}
}

func (s *RealtimeSession) emit(ctx context.Context, e Event) {
	select {
	case s.events <- e:
	case <-ctx.Done():
	}
}

package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"voicebot-server/internal/observability"
	"voicebot-server/internal/voice/audio"

	"github.com/gorilla/websocket"
)

// EventType is the subset of Twilio media-stream events the call session
// consumes.
type EventType string

const (
	EventStart EventType = "start"
	EventMedia EventType = "media"
	EventMark  EventType = "mark"
	EventStop  EventType = "stop"
)

// StreamEvent is one decoded inbound event. For media events Audio holds the
// raw mu-law bytes, already base64-decoded.
type StreamEvent struct {
	Type      EventType
	CallSid   string
	StreamSid string
	Audio     []byte
	Mark      string
}

// wireEvent mirrors Twilio's media-stream JSON envelope.
type wireEvent struct {
	Event string `json:"event"`
	Start struct {
		StreamSid string `json:"streamSid"`
		CallSid   string `json:"callSid"`
	} `json:"start,omitempty"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media,omitempty"`
	Mark struct {
		Name string `json:"name"`
	} `json:"mark,omitempty"`
	Stop struct {
		StreamSid string `json:"streamSid"`
	} `json:"stop,omitempty"`
}

// StreamHandler owns one Twilio media-stream websocket. Reads happen on a
// single goroutine; writes are serialized with a mutex because audio frames
// and marks come from different goroutines.
type StreamHandler struct {
	conn       *websocket.Conn
	logger     *observability.Logger
	streamSid  string
	writeMutex sync.Mutex
	stopOnce   sync.Once
}

func NewStreamHandler(conn *websocket.Conn, logger *observability.Logger) *StreamHandler {
	return &StreamHandler{conn: conn, logger: logger}
}

// Receive reads inbound events until the stream stops, the connection drops,
// or ctx is cancelled. The events channel is closed on return.
func (h *StreamHandler) Receive(ctx context.Context, events chan<- StreamEvent) {
	defer close(events)

	for {
		_, msg, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Info(ctx, "Twilio websocket closed normally")
			} else if ctx.Err() == nil {
				h.logger.Error(ctx, "Twilio websocket read failed", err)
			}
			return
		}

		var event wireEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			h.logger.Error(ctx, "Failed to parse Twilio event", err)
			continue
		}

		switch event.Event {
		case "start":
			h.streamSid = event.Start.StreamSid
			h.logger.Info(ctx, fmt.Sprintf("Twilio stream started: %s", h.streamSid))
			h.emit(ctx, events, StreamEvent{
				Type:      EventStart,
				CallSid:   event.Start.CallSid,
				StreamSid: event.Start.StreamSid,
			})

		case "media":
			payload, err := audio.Base64ToBytes(event.Media.Payload)
			if err != nil {
				h.logger.Error(ctx, "Failed to decode media payload", err)
				continue
			}
			h.emit(ctx, events, StreamEvent{Type: EventMedia, Audio: payload})

		case "mark":
			h.emit(ctx, events, StreamEvent{Type: EventMark, Mark: event.Mark.Name})

		case "stop":
			h.logger.Info(ctx, fmt.Sprintf("Twilio stream stopped: %s", event.Stop.StreamSid))
			h.emit(ctx, events, StreamEvent{Type: EventStop, StreamSid: event.Stop.StreamSid})
			return

		default:
			h.logger.Debug(ctx, fmt.Sprintf("Ignoring Twilio event: %s", event.Event))
		}
	}
}

func (h *StreamHandler) emit(ctx context.Context, events chan<- StreamEvent, e StreamEvent) {
	select {
	case events <- e:
	case <-ctx.Done():
	}
}

// SendMedia writes one outbound mu-law frame. The payload must already be
// sized to Twilio's 20 ms framing.
func (h *StreamHandler) SendMedia(muLaw []byte) error {
	if h.streamSid == "" {
		return fmt.Errorf("stream not started")
	}
	msg := map[string]interface{}{
		"event":     "media",
		"streamSid": h.streamSid,
		"media": map[string]string{
			"payload": audio.BytesToBase64(muLaw),
		},
	}
	return h.writeJSON(msg)
}

// SendMark asks Twilio to echo the name back once all queued audio before it
// has been played to the caller.
func (h *StreamHandler) SendMark(name string) error {
	if h.streamSid == "" {
		return fmt.Errorf("stream not started")
	}
	msg := map[string]interface{}{
		"event":     "mark",
		"streamSid": h.streamSid,
		"mark": map[string]string{
			"name": name,
		},
	}
	return h.writeJSON(msg)
}

func (h *StreamHandler) writeJSON(v interface{}) error {
	h.writeMutex.Lock()
	defer h.writeMutex.Unlock()
	return h.conn.WriteJSON(v)
}

// Stop closes the websocket. Safe to call from multiple teardown paths.
func (h *StreamHandler) Stop() {
	h.stopOnce.Do(func() {
		h.writeMutex.Lock()
		h.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		h.writeMutex.Unlock()
		h.conn.Close()
	})
}

func (h *StreamHandler) StreamSID() string {
	return h.streamSid
}

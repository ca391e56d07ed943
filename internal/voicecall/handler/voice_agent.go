package handler

import (
	"context"
	"fmt"
	"net/http"

	"voicebot-server/internal/callflow"
	openaiclient "voicebot-server/internal/clients/openai"
	"voicebot-server/internal/voicecall"
	"voicebot-server/internal/voicecall/twilio"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

// HandleAnswerCall is the Twilio voice webhook. It answers with TwiML that
// connects the call's media stream to the voice-agent WebSocket.
func (h *Handler) HandleAnswerCall(c *gin.Context) {
	ctx := c.Request.Context()
	wsURL := h.mediaStreamURL()
	h.logger.Info(ctx, fmt.Sprintf("Answering call, media stream URL: %s", wsURL))

	stream := twiml.VoiceStream{
		Name: "voice-agent-stream",
		Url:  wsURL,
	}
	connect := twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}

	twimlResult, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		h.logger.Error(ctx, "Failed to build answer TwiML", err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twimlResult)
}

// HandleVoiceAgent upgrades the media-stream connection and runs one call
// session until the call ends.
func (h *Handler) HandleVoiceAgent(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error(ctx, "WebSocket upgrade failed", err)
		return
	}

	h.logger.Info(ctx, "Twilio media stream connected")

	stream := twilio.NewStreamHandler(conn, h.logger)
	defer stream.Stop()

	receiveCtx, cancelReceive := context.WithCancel(ctx)
	defer cancelReceive()

	events := make(chan twilio.StreamEvent, 256)
	go stream.Receive(receiveCtx, events)

	flow := callflow.NewStateMachine(h.rules, h.catalog, h.store)
	session := voicecall.NewSession(voicecall.SessionConfig{
		Flow:      flow,
		Connect:   h.connectSpeechLeg,
		Phone:     stream,
		Events:    h.store,
		Announcer: h.speech,
		Voice:     h.cfg.Voice,
	}, h.logger)

	if err := session.Run(ctx, events); err != nil {
		h.logger.Error(ctx, "Call session ended with error", err)
		return
	}
	h.logger.Info(ctx, "Call session ended")
}

func (h *Handler) connectSpeechLeg(ctx context.Context) (voicecall.SpeechLeg, error) {
	session, err := h.realtime.Connect(ctx, openaiclient.RealtimeConfig{
		Model:        h.cfg.RealtimeModel,
		Voice:        h.cfg.Voice,
		Language:     h.cfg.Language,
		Instructions: h.instructions(),
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

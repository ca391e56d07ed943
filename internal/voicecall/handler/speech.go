package handler

import (
	"io"
	"net/http"

	"voicebot-server/internal/apierrors"

	"github.com/gin-gonic/gin"
)

type synthesizeRequest struct {
	Text  string `json:"text" binding:"required"`
	Voice string `json:"voice"`
}

// HandleSynthesize renders text to MP3 speech. Utility endpoint, not part of
// the live call path.
func (h *Handler) HandleSynthesize(c *gin.Context) {
	var req synthesizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", "text is required")
		return
	}
	voice := req.Voice
	if voice == "" {
		voice = h.cfg.Voice
	}

	audio, err := h.speech.Synthesize(c.Request.Context(), req.Text, voice)
	if err != nil {
		apierrors.ServiceUnavailable(c, "TTS_FAILED", "speech synthesis failed", err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// HandleTranscribe transcribes an uploaded recording.
func (h *Handler) HandleTranscribe(c *gin.Context) {
	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		apierrors.BadRequest(c, "INVALID_REQUEST", "audio file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		apierrors.InternalError(c, err)
		return
	}

	text, err := h.speech.Transcribe(c.Request.Context(), data, header.Filename, h.cfg.Language)
	if err != nil {
		apierrors.ServiceUnavailable(c, "ASR_FAILED", "transcription failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

// SpeechClient wraps the one-shot audio endpoints used by the utility API
// routes. The realtime path does not go through here.
type SpeechClient struct {
	client openai.Client
}

func NewSpeechClient(apiKey string) (*SpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &SpeechClient{
		client: openai.NewClient(openaiOption.WithAPIKey(apiKey)),
	}, nil
}

// Transcribe sends recorded audio to Whisper and returns the transcript.
func (c *SpeechClient) Transcribe(ctx context.Context, audioData []byte, filename string, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		Model:    openai.AudioModelWhisper1,
		File:     openai.File(bytes.NewReader(audioData), filename, "application/octet-stream"),
		Language: openai.String(language),
	}
	resp, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}
	return resp.Text, nil
}

// SynthesizePCM renders text to raw pcm16 samples at 24 kHz, the format the
// telephony path can transcode. Used for the fallback announcement when the
// realtime leg is unavailable.
func (c *SpeechClient) SynthesizePCM(ctx context.Context, text string, voice string) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatPCM,
	}
	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return data, nil
}

// Synthesize renders text to MP3 speech.
func (c *SpeechClient) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	params := openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	}
	resp, err := c.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return data, nil
}

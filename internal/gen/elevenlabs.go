package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const elevenLabsTTSEndpoint = "https://api.elevenlabs.io/v1/text-to-speech"

// ElevenLabsClient calls the ElevenLabs Text-to-Speech API. It is the
// secondary speech provider; unlike Gemini it returns a ready-to-play MP3,
// so its output bypasses the WAV encoder.
type ElevenLabsClient struct {
	baseURL string
	voiceID string
	model   string
	client  *http.Client
}

// NewElevenLabsClient creates an ElevenLabs TTS client.
func NewElevenLabsClient(voiceID string, timeout time.Duration) *ElevenLabsClient {
	return &ElevenLabsClient{
		baseURL: elevenLabsTTSEndpoint,
		voiceID: voiceID,
		model:   "eleven_multilingual_v2",
		client:  &http.Client{Timeout: timeout},
	}
}

// Synthesize converts narration text to MP3 audio.
func (el *ElevenLabsClient) Synthesize(ctx context.Context, key, text string) ([]byte, error) {
	body := map[string]any{
		"text":     text,
		"model_id": el.model,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := el.baseURL + "/" + el.voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", key)

	resp, err := el.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return respBody, nil
}

package gen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// defaultSampleRate is what Gemini TTS emits when the response mime type
// carries no rate parameter.
const defaultSampleRate = 24000

// GeminiClient calls the Gemini generateContent API for script analysis,
// speech synthesis, and image generation. The API key is passed per call so
// the rotation executor can supply a different one on each attempt.
type GeminiClient struct {
	baseURL    string
	llmModel   string
	ttsModel   string
	imageModel string
	ttsVoice   string
	client     *http.Client
}

// GeminiOptions configures a GeminiClient. BaseURL overrides the public
// endpoint, for proxies and tests.
type GeminiOptions struct {
	LLMModel   string
	TTSModel   string
	ImageModel string
	TTSVoice   string
	Timeout    time.Duration
	BaseURL    string
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	if opts.BaseURL == "" {
		opts.BaseURL = geminiBaseURL
	}
	return &GeminiClient{
		baseURL:    opts.BaseURL,
		llmModel:   opts.LLMModel,
		ttsModel:   opts.TTSModel,
		imageModel: opts.ImageModel,
		ttsVoice:   opts.TTSVoice,
		client:     &http.Client{Timeout: opts.Timeout},
	}
}

// SegmentDraft is one narration unit proposed by the model.
type SegmentDraft struct {
	Narration   string `json:"narration"`
	ImagePrompt string `json:"image_prompt"`
}

// Speech is raw synthesized audio before container encoding.
type Speech struct {
	Base64PCM  string
	SampleRate int
}

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType   string        `json:"responseMimeType,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
	Temperature        *float64      `json:"temperature,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

// geminiResponse is the subset of the generateContent response we read.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

const segmentPrompt = `Split the following script into short narration segments suitable for a
narrated slideshow. For each segment provide the narration text (verbatim from
the script, lightly cleaned) and a vivid illustration prompt describing a
single image for that segment. Respond with a JSON array of objects with
fields "narration" and "image_prompt". Return only JSON.

Script:
%s`

// SegmentScript asks the LLM to split a script into narration segments with
// illustration prompts.
func (g *GeminiClient) SegmentScript(ctx context.Context, key, script string) ([]SegmentDraft, error) {
	temp := 0.3
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(segmentPrompt, script)}}}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			Temperature:      &temp,
		},
	}

	resp, err := g.generate(ctx, key, g.llmModel, req)
	if err != nil {
		return nil, err
	}

	text := firstText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini returned no text candidate")
	}

	drafts, err := parseSegmentJSON(text)
	if err != nil {
		return nil, err
	}
	return drafts, nil
}

// Synthesize converts narration text to raw PCM speech.
func (g *GeminiClient) Synthesize(ctx context.Context, key, text string) (Speech, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: g.ttsVoice},
				},
			},
		},
	}

	resp, err := g.generate(ctx, key, g.ttsModel, req)
	if err != nil {
		return Speech{}, err
	}

	data := firstInlineData(resp, "audio/")
	if data == nil {
		return Speech{}, fmt.Errorf("gemini returned no audio data")
	}

	return Speech{
		Base64PCM:  data.Data,
		SampleRate: parseSampleRate(data.MimeType),
	}, nil
}

// GenerateImage produces a PNG illustration for the prompt.
func (g *GeminiClient) GenerateImage(ctx context.Context, key, prompt string) ([]byte, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	resp, err := g.generate(ctx, key, g.imageModel, req)
	if err != nil {
		return nil, err
	}

	data := firstInlineData(resp, "image/")
	if data == nil {
		return nil, fmt.Errorf("gemini returned no image data")
	}

	img, err := base64.StdEncoding.DecodeString(data.Data)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	return img, nil
}

// generate posts one generateContent request and decodes the response.
func (g *GeminiClient) generate(ctx context.Context, key, model string, body geminiRequest) (*geminiResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", key)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// firstText returns the first text part across candidates.
func firstText(resp *geminiResponse) string {
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

// firstInlineData returns the first inline blob whose mime type has the
// given prefix.
func firstInlineData(resp *geminiResponse, mimePrefix string) *inlineData {
	for _, c := range resp.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MimeType, mimePrefix) {
				return p.InlineData
			}
		}
	}
	return nil
}

// parseSampleRate extracts the rate parameter from a mime type like
// "audio/L16;codec=pcm;rate=24000".
func parseSampleRate(mimeType string) int {
	for _, part := range strings.Split(mimeType, ";") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "rate="); ok {
			if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
				return rate
			}
		}
	}
	return defaultSampleRate
}

// parseSegmentJSON decodes the model's segment list, tolerating a markdown
// code fence and an object wrapper, both of which models emit occasionally.
func parseSegmentJSON(text string) ([]SegmentDraft, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var drafts []SegmentDraft
	if err := json.Unmarshal([]byte(text), &drafts); err == nil {
		return drafts, nil
	}

	var wrapper struct {
		Segments []SegmentDraft `json:"segments"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Segments != nil {
		return wrapper.Segments, nil
	}

	return nil, fmt.Errorf("response is not a segment list")
}

// Package gen orchestrates remote generation calls: script analysis, speech
// synthesis, and image generation. Every remote call goes through the
// rotation executor; callers never see individual API keys.
package gen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/narratage/narratage/internal/events"
	"github.com/narratage/narratage/internal/metrics"
	"github.com/narratage/narratage/internal/project"
	"github.com/narratage/narratage/internal/provider"
	"github.com/narratage/narratage/internal/rotation"
	"github.com/narratage/narratage/internal/storage"
	"github.com/narratage/narratage/internal/wav"
	"github.com/rs/zerolog"
)

// ErrEmptyScript indicates an analyze request with no usable text.
var ErrEmptyScript = fmt.Errorf("script is empty")

// Service ties the provider clients, rotation executor, media store, and
// project state together.
type Service struct {
	executor *rotation.Executor
	gemini   *GeminiClient
	eleven   *ElevenLabsClient
	media    storage.MediaStore
	proj     *project.Store
	bus      *events.Bus
	log      zerolog.Logger
}

// NewService creates the generation service.
func NewService(
	executor *rotation.Executor,
	gemini *GeminiClient,
	eleven *ElevenLabsClient,
	media storage.MediaStore,
	proj *project.Store,
	bus *events.Bus,
	log zerolog.Logger,
) *Service {
	return &Service{
		executor: executor,
		gemini:   gemini,
		eleven:   eleven,
		media:    media,
		proj:     proj,
		bus:      bus,
		log:      log.With().Str("component", "gen").Logger(),
	}
}

// AnalyzeScript segments the script into narration units with illustration
// prompts and replaces the current project state.
func (s *Service) AnalyzeScript(ctx context.Context, script string) (project.Project, error) {
	if strings.TrimSpace(script) == "" {
		return project.Project{}, ErrEmptyScript
	}

	drafts, err := rotation.Execute(ctx, s.executor, provider.Gemini,
		func(ctx context.Context, key string) ([]SegmentDraft, error) {
			return s.gemini.SegmentScript(ctx, key, script)
		})
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("analyze", "failure").Inc()
		return project.Project{}, err
	}

	segments := make([]project.Segment, len(drafts))
	for i, d := range drafts {
		segments[i] = project.Segment{
			ID:          uuid.NewString(),
			Index:       i,
			Narration:   strings.TrimSpace(d.Narration),
			ImagePrompt: strings.TrimSpace(d.ImagePrompt),
		}
	}

	if err := s.proj.Replace(ctx, script, segments); err != nil {
		return project.Project{}, err
	}

	metrics.GenerationsTotal.WithLabelValues("analyze", "success").Inc()
	s.bus.Publish("analyze", "", map[string]int{"segments": len(segments)})
	s.log.Info().Int("segments", len(segments)).Msg("script analyzed")

	return s.proj.Get(), nil
}

// GenerateSegmentAudio synthesizes speech for one segment using the chosen
// speech provider and attaches the stored blob to the segment. Gemini
// returns raw PCM which is wrapped into a WAV container; ElevenLabs returns
// a ready MP3.
func (s *Service) GenerateSegmentAudio(ctx context.Context, segmentID string, speech provider.Provider) (project.Segment, error) {
	seg, err := s.proj.Segment(segmentID)
	if err != nil {
		return project.Segment{}, err
	}
	if strings.TrimSpace(seg.Narration) == "" {
		return project.Segment{}, fmt.Errorf("segment %s has no narration", segmentID)
	}

	var data []byte
	var ext, contentType string

	switch speech {
	case provider.ElevenLabs:
		data, err = rotation.Execute(ctx, s.executor, provider.ElevenLabs,
			func(ctx context.Context, key string) ([]byte, error) {
				return s.eleven.Synthesize(ctx, key, seg.Narration)
			})
		ext, contentType = "mp3", "audio/mpeg"
	default:
		var sp Speech
		sp, err = rotation.Execute(ctx, s.executor, provider.Gemini,
			func(ctx context.Context, key string) (Speech, error) {
				return s.gemini.Synthesize(ctx, key, seg.Narration)
			})
		if err == nil {
			var samples []float64
			samples, err = wav.DecodeBase64PCM16(sp.Base64PCM, sp.SampleRate)
			if err == nil {
				data = wav.Encode(samples, sp.SampleRate, 1)
			}
		}
		ext, contentType = "wav", "audio/wav"
	}
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("audio", "failure").Inc()
		return project.Segment{}, err
	}

	key := fmt.Sprintf("audio/%s_%d.%s", segmentID, time.Now().Unix(), ext)
	if err := s.media.Save(ctx, key, data, contentType); err != nil {
		return project.Segment{}, fmt.Errorf("store audio: %w", err)
	}

	url := s.mediaURL(ctx, key)
	if err := s.proj.SetAudio(ctx, segmentID, key, url); err != nil {
		return project.Segment{}, err
	}

	metrics.GenerationsTotal.WithLabelValues("audio", "success").Inc()
	s.bus.Publish("audio", segmentID, map[string]string{"key": key, "url": url})
	s.log.Info().Str("segment", segmentID).Str("key", key).Int("bytes", len(data)).Msg("audio generated")

	return s.proj.Segment(segmentID)
}

// GenerateSegmentImage produces an illustration for one segment and attaches
// the stored blob.
func (s *Service) GenerateSegmentImage(ctx context.Context, segmentID string) (project.Segment, error) {
	seg, err := s.proj.Segment(segmentID)
	if err != nil {
		return project.Segment{}, err
	}
	if strings.TrimSpace(seg.ImagePrompt) == "" {
		return project.Segment{}, fmt.Errorf("segment %s has no image prompt", segmentID)
	}

	img, err := rotation.Execute(ctx, s.executor, provider.Gemini,
		func(ctx context.Context, key string) ([]byte, error) {
			return s.gemini.GenerateImage(ctx, key, seg.ImagePrompt)
		})
	if err != nil {
		metrics.GenerationsTotal.WithLabelValues("image", "failure").Inc()
		return project.Segment{}, err
	}

	key := fmt.Sprintf("images/%s_%d.png", segmentID, time.Now().Unix())
	if err := s.media.Save(ctx, key, img, "image/png"); err != nil {
		return project.Segment{}, fmt.Errorf("store image: %w", err)
	}

	url := s.mediaURL(ctx, key)
	if err := s.proj.SetImage(ctx, segmentID, key, url); err != nil {
		return project.Segment{}, err
	}

	metrics.GenerationsTotal.WithLabelValues("image", "success").Inc()
	s.bus.Publish("image", segmentID, map[string]string{"key": key, "url": url})
	s.log.Info().Str("segment", segmentID).Str("key", key).Int("bytes", len(img)).Msg("image generated")

	return s.proj.Segment(segmentID)
}

// mediaURL picks the browser-facing URL for a stored blob: presigned for
// S3-only backends, the local media route otherwise.
func (s *Service) mediaURL(ctx context.Context, key string) string {
	if s.media.Type() == "s3" {
		if url, err := s.media.URL(ctx, key); err == nil && url != "" {
			return url
		}
	}
	return "/media/" + key
}

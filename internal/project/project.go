// Package project holds the working state of the current script: the raw
// text and the segments derived from it, with references to generated media.
// The whole project persists as one record, rewritten on every mutation.
package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/narratage/narratage/internal/recordstore"
	"github.com/rs/zerolog"
)

// RecordName is the record under which the project persists.
const RecordName = "project"

// ErrSegmentNotFound is returned when a segment id does not exist.
var ErrSegmentNotFound = errors.New("segment not found")

// Segment is one narration unit with its illustration prompt and any
// generated media attached so far.
type Segment struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	Narration   string `json:"narration"`
	ImagePrompt string `json:"image_prompt"`
	AudioKey    string `json:"audio_key,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
	ImageKey    string `json:"image_key,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Project is the full working state.
type Project struct {
	Script   string    `json:"script"`
	Segments []Segment `json:"segments"`
}

// Store guards the project state and persists every mutation.
type Store struct {
	mu   sync.Mutex
	proj Project
	rec  recordstore.Store
	log  zerolog.Logger
}

// Load reads the persisted project, if any, and returns a ready store.
func Load(ctx context.Context, rec recordstore.Store, log zerolog.Logger) (*Store, error) {
	s := &Store{
		rec: rec,
		log: log.With().Str("component", "project").Logger(),
	}

	data, err := rec.Load(ctx, RecordName)
	if errors.Is(err, recordstore.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	if err := json.Unmarshal(data, &s.proj); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return s, nil
}

// Get returns a deep copy of the current project.
func (s *Store) Get() Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Segment returns a copy of one segment by id.
func (s *Store) Segment(id string) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.proj.Segments {
		if seg.ID == id {
			return seg, nil
		}
	}
	return Segment{}, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
}

// Replace swaps in a new script and segment list (after script analysis),
// discarding previous media references, and persists.
func (s *Store) Replace(ctx context.Context, script string, segments []Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.proj = Project{Script: script, Segments: segments}
	return s.persistLocked(ctx)
}

// UpdateText edits a segment's narration and/or image prompt. Empty fields
// are left untouched.
func (s *Store) UpdateText(ctx context.Context, id, narration, imagePrompt string) (Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, seg := range s.proj.Segments {
		if seg.ID != id {
			continue
		}
		if narration != "" {
			s.proj.Segments[i].Narration = narration
		}
		if imagePrompt != "" {
			s.proj.Segments[i].ImagePrompt = imagePrompt
		}
		if err := s.persistLocked(ctx); err != nil {
			return Segment{}, err
		}
		return s.proj.Segments[i], nil
	}
	return Segment{}, fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
}

// SetAudio records the generated audio blob for a segment and persists.
func (s *Store) SetAudio(ctx context.Context, id, key, url string) error {
	return s.setMedia(ctx, id, func(seg *Segment) {
		seg.AudioKey = key
		seg.AudioURL = url
	})
}

// SetImage records the generated image blob for a segment and persists.
func (s *Store) SetImage(ctx context.Context, id, key, url string) error {
	return s.setMedia(ctx, id, func(seg *Segment) {
		seg.ImageKey = key
		seg.ImageURL = url
	})
}

func (s *Store) setMedia(ctx context.Context, id string, apply func(*Segment)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.proj.Segments {
		if s.proj.Segments[i].ID == id {
			apply(&s.proj.Segments[i])
			return s.persistLocked(ctx)
		}
	}
	return fmt.Errorf("%w: %s", ErrSegmentNotFound, id)
}

func (s *Store) copyLocked() Project {
	out := Project{Script: s.proj.Script}
	out.Segments = append([]Segment(nil), s.proj.Segments...)
	return out
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.proj)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if err := s.rec.Save(ctx, RecordName, data); err != nil {
		return fmt.Errorf("persist project: %w", err)
	}
	return nil
}

// Package provider defines the closed set of external generative AI services
// narratage can call. Every credential and every remote call is tagged with
// one of these.
package provider

import "fmt"

// Provider identifies one external generative AI service.
type Provider string

const (
	// Gemini handles script analysis, speech synthesis, and image generation.
	Gemini Provider = "gemini"
	// ElevenLabs is the secondary speech synthesis provider.
	ElevenLabs Provider = "elevenlabs"
)

// All lists every supported provider, in display order.
func All() []Provider {
	return []Provider{Gemini, ElevenLabs}
}

// Parse validates a provider tag from an untrusted source (persisted records,
// HTTP request bodies). Unknown tags are rejected rather than carried along.
func Parse(s string) (Provider, error) {
	switch Provider(s) {
	case Gemini, ElevenLabs:
		return Provider(s), nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Valid reports whether p is a member of the closed set.
func (p Provider) Valid() bool {
	_, err := Parse(string(p))
	return err == nil
}

func (p Provider) String() string { return string(p) }

// Package keystore manages the user's API credentials across providers.
// The full credential set is held in memory and rewritten to the record
// store on every mutation (last-write-wins, no partial updates).
package keystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/narratage/narratage/internal/provider"
	"github.com/narratage/narratage/internal/recordstore"
	"github.com/rs/zerolog"
)

// RecordName is the record under which all credentials persist.
const RecordName = "credentials"

// defaultLabelLen is how many key characters a generated label keeps.
const defaultLabelLen = 8

var (
	// ErrEmptyKey indicates the submitted key material was blank.
	ErrEmptyKey = errors.New("key material is empty")
	// ErrDuplicate indicates a credential with identical key material
	// already exists for the provider.
	ErrDuplicate = errors.New("credential already exists for provider")
)

// Credential is one API key owned by the user for one provider.
type Credential struct {
	ID       string            `json:"id"`
	Key      string            `json:"key"`
	Provider provider.Provider `json:"provider"`
	Label    string            `json:"label,omitempty"`
	Enabled  bool              `json:"enabled"`
}

// storedCredential is the persisted shape, including fields only older
// schema versions wrote.
type storedCredential struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Provider string `json:"provider"`
	Label    string `json:"label,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
	// Source was written by a previous design that auto-injected a key
	// from the environment. Entries marked "env" are purged on load.
	Source string `json:"source,omitempty"`
}

// Store holds all credentials and persists every mutation.
type Store struct {
	mu    sync.Mutex
	creds []Credential
	rec   recordstore.Store
	log   zerolog.Logger
}

// Load reads the credential record, migrates legacy entries, and returns a
// ready store. A missing record yields an empty store.
func Load(ctx context.Context, rec recordstore.Store, log zerolog.Logger) (*Store, error) {
	s := &Store{
		rec: rec,
		log: log.With().Str("component", "keystore").Logger(),
	}

	data, err := rec.Load(ctx, RecordName)
	if errors.Is(err, recordstore.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	var stored []storedCredential
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}

	creds, migrated := migrate(stored, s.log)
	s.creds = creds

	// A migration changed the on-disk shape; rewrite immediately so the
	// next load sees the current schema.
	if migrated {
		if err := s.persistLocked(ctx); err != nil {
			return nil, fmt.Errorf("persist migrated credentials: %w", err)
		}
		s.log.Info().Int("count", len(creds)).Msg("credential record migrated and rewritten")
	}

	return s, nil
}

// migrate converts persisted entries to the current schema: env-injected
// entries are dropped, unknown providers are dropped, missing IDs and
// enabled flags are backfilled. Returns the live set and whether anything
// changed relative to what was stored.
func migrate(stored []storedCredential, log zerolog.Logger) ([]Credential, bool) {
	var creds []Credential
	migrated := false

	for _, sc := range stored {
		if sc.Source == "env" {
			log.Debug().Str("provider", sc.Provider).Msg("dropping legacy env-injected credential")
			migrated = true
			continue
		}

		prov, err := provider.Parse(sc.Provider)
		if err != nil {
			log.Warn().Str("provider", sc.Provider).Msg("dropping credential with unknown provider tag")
			migrated = true
			continue
		}

		c := Credential{
			ID:       sc.ID,
			Key:      sc.Key,
			Provider: prov,
			Label:    sc.Label,
			Enabled:  true,
		}
		if sc.ID == "" {
			c.ID = uuid.NewString()
			migrated = true
		}
		if sc.Enabled != nil {
			c.Enabled = *sc.Enabled
		} else {
			migrated = true
		}
		creds = append(creds, c)
	}

	return creds, migrated
}

// Keys returns all credentials for the provider, enabled or not, in store
// order. The returned slice is a copy.
func (s *Store) Keys(p provider.Provider) []Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Credential
	for _, c := range s.creds {
		if c.Provider == p {
			out = append(out, c)
		}
	}
	return out
}

// EnabledKeys returns the enabled credential pool for the provider, in store
// order. This is the rotation executor's input.
func (s *Store) EnabledKeys(p provider.Provider) []Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Credential
	for _, c := range s.creds {
		if c.Provider == p && c.Enabled {
			out = append(out, c)
		}
	}
	return out
}

// Add validates and appends a new credential, then persists. The new entry
// starts enabled; a blank label defaults to a prefix of the key material.
func (s *Store) Add(ctx context.Context, key string, p provider.Provider, label string) (Credential, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Credential{}, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.creds {
		if c.Provider == p && c.Key == key {
			return Credential{}, fmt.Errorf("%w: %s", ErrDuplicate, p)
		}
	}

	if label == "" {
		label = defaultLabel(key)
	}

	cred := Credential{
		ID:       uuid.NewString(),
		Key:      key,
		Provider: p,
		Label:    label,
		Enabled:  true,
	}
	s.creds = append(s.creds, cred)

	if err := s.persistLocked(ctx); err != nil {
		// Roll back the in-memory append so memory and disk agree.
		s.creds = s.creds[:len(s.creds)-1]
		return Credential{}, err
	}

	s.log.Info().Str("id", cred.ID).Str("provider", string(p)).Msg("credential added")
	return cred, nil
}

// Remove deletes the credential with the given id. Removing an unknown id is
// a logged no-op: the caller's intent (key gone) already holds.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.creds {
		if c.ID == id {
			s.creds = append(s.creds[:i], s.creds[i+1:]...)
			if err := s.persistLocked(ctx); err != nil {
				return err
			}
			s.log.Info().Str("id", id).Str("provider", string(c.Provider)).Msg("credential removed")
			return nil
		}
	}

	s.log.Debug().Str("id", id).Msg("remove: credential not found, nothing to do")
	return nil
}

// Toggle flips the enabled flag of the credential with the given id.
// Unknown ids are a no-op.
func (s *Store) Toggle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.creds {
		if c.ID == id {
			s.creds[i].Enabled = !c.Enabled
			if err := s.persistLocked(ctx); err != nil {
				s.creds[i].Enabled = c.Enabled
				return err
			}
			s.log.Info().Str("id", id).Bool("enabled", s.creds[i].Enabled).Msg("credential toggled")
			return nil
		}
	}

	s.log.Debug().Str("id", id).Msg("toggle: credential not found, nothing to do")
	return nil
}

// Relabel updates the human-readable label. Unknown ids are a no-op.
func (s *Store) Relabel(ctx context.Context, id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.creds {
		if c.ID == id {
			old := c.Label
			s.creds[i].Label = label
			if err := s.persistLocked(ctx); err != nil {
				s.creds[i].Label = old
				return err
			}
			return nil
		}
	}
	return nil
}

// persistLocked rewrites the full credential record. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	stored := make([]storedCredential, len(s.creds))
	for i, c := range s.creds {
		enabled := c.Enabled
		stored[i] = storedCredential{
			ID:       c.ID,
			Key:      c.Key,
			Provider: string(c.Provider),
			Label:    c.Label,
			Enabled:  &enabled,
		}
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := s.rec.Save(ctx, RecordName, data); err != nil {
		return fmt.Errorf("persist credentials: %w", err)
	}
	return nil
}

func defaultLabel(key string) string {
	if len(key) <= defaultLabelLen {
		return key
	}
	return key[:defaultLabelLen] + "…"
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/narratage/narratage/internal/keystore"
	"github.com/narratage/narratage/internal/provider"
)

type KeysHandler struct {
	keys *keystore.Store
}

func NewKeysHandler(keys *keystore.Store) *KeysHandler {
	return &KeysHandler{keys: keys}
}

// keyView is a credential as exposed over the API. Key material never leaves
// the server; the label is what the UI shows.
type keyView struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Label    string `json:"label"`
	Enabled  bool   `json:"enabled"`
}

func toKeyView(c keystore.Credential) keyView {
	return keyView{
		ID:       c.ID,
		Provider: string(c.Provider),
		Label:    c.Label,
		Enabled:  c.Enabled,
	}
}

// List returns all stored credentials across providers, without key material.
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	views := []keyView{}
	for _, p := range provider.All() {
		for _, c := range h.keys.Keys(p) {
			views = append(views, toKeyView(c))
		}
	}
	WriteJSON(w, http.StatusOK, views)
}

// Add stores a new credential.
func (h *KeysHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key      string `json:"key"`
		Provider string `json:"provider"`
		Label    string `json:"label"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := provider.Parse(req.Provider)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "unknown provider")
		return
	}

	cred, err := h.keys.Add(r.Context(), req.Key, p, req.Label)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toKeyView(cred))
}

// Remove deletes a credential. Unknown ids succeed: the key is gone either way.
func (h *KeysHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle flips a credential's enabled flag.
func (h *KeysHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if err := h.keys.Toggle(r.Context(), chi.URLParam(r, "id")); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Relabel updates a credential's display label.
func (h *KeysHandler) Relabel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label string `json:"label"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.keys.Relabel(r.Context(), chi.URLParam(r, "id"), req.Label); err != nil {
		WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Routes registers key management routes on the given router.
func (h *KeysHandler) Routes(r chi.Router) {
	r.Get("/keys", h.List)
	r.Post("/keys", h.Add)
	r.Delete("/keys/{id}", h.Remove)
	r.Post("/keys/{id}/toggle", h.Toggle)
	r.Patch("/keys/{id}", h.Relabel)
}

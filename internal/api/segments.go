package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/narratage/narratage/internal/gen"
	"github.com/narratage/narratage/internal/project"
	"github.com/narratage/narratage/internal/provider"
)

type SegmentsHandler struct {
	svc  *gen.Service
	proj *project.Store
}

func NewSegmentsHandler(svc *gen.Service, proj *project.Store) *SegmentsHandler {
	return &SegmentsHandler{svc: svc, proj: proj}
}

// Update edits a segment's narration and/or image prompt.
func (h *SegmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Narration   string `json:"narration"`
		ImagePrompt string `json:"image_prompt"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	seg, err := h.proj.UpdateText(r.Context(), chi.URLParam(r, "id"), req.Narration, req.ImagePrompt)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, seg)
}

// GenerateAudio synthesizes speech for one segment. An optional provider
// field selects the speech backend; Gemini is the default.
func (h *SegmentsHandler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	speech := provider.Gemini
	var req struct {
		Provider string `json:"provider"`
	}
	// Body is optional; a missing or empty body means defaults.
	if err := DecodeJSON(r, &req); err == nil && req.Provider != "" {
		p, err := provider.Parse(req.Provider)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "unknown provider")
			return
		}
		speech = p
	}

	seg, err := h.svc.GenerateSegmentAudio(r.Context(), chi.URLParam(r, "id"), speech)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, seg)
}

// GenerateImage produces an illustration for one segment.
func (h *SegmentsHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	seg, err := h.svc.GenerateSegmentImage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, seg)
}

// Routes registers segment routes on the given router.
func (h *SegmentsHandler) Routes(r chi.Router) {
	r.Patch("/segments/{id}", h.Update)
	r.Post("/segments/{id}/audio", h.GenerateAudio)
	r.Post("/segments/{id}/image", h.GenerateImage)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/narratage/narratage/internal/gen"
	"github.com/narratage/narratage/internal/provider"
)

type GenerateHandler struct {
	runner *gen.Runner
}

func NewGenerateHandler(runner *gen.Runner) *GenerateHandler {
	return &GenerateHandler{runner: runner}
}

// StartAudio enqueues audio generation for every segment without audio.
func (h *GenerateHandler) StartAudio(w http.ResponseWriter, r *http.Request) {
	speech := provider.Gemini
	var req struct {
		Provider string `json:"provider"`
	}
	if err := DecodeJSON(r, &req); err == nil && req.Provider != "" {
		p, err := provider.Parse(req.Provider)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "unknown provider")
			return
		}
		speech = p
	}

	n, err := h.runner.StartBatch(gen.BatchAudio, speech)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]int{"enqueued": n})
}

// StartImages enqueues image generation for every segment without an image.
func (h *GenerateHandler) StartImages(w http.ResponseWriter, r *http.Request) {
	n, err := h.runner.StartBatch(gen.BatchImages, provider.Gemini)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]int{"enqueued": n})
}

// Status reports batch runner state.
func (h *GenerateHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.runner.Stats())
}

// Routes registers batch generation routes on the given router.
func (h *GenerateHandler) Routes(r chi.Router) {
	r.Post("/generate/audio", h.StartAudio)
	r.Post("/generate/images", h.StartImages)
	r.Get("/generate/status", h.Status)
}

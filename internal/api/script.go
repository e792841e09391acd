package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/narratage/narratage/internal/gen"
	"github.com/narratage/narratage/internal/project"
)

type ScriptHandler struct {
	svc  *gen.Service
	proj *project.Store
}

func NewScriptHandler(svc *gen.Service, proj *project.Store) *ScriptHandler {
	return &ScriptHandler{svc: svc, proj: proj}
}

// Analyze segments a script into narration units, replacing the current
// project. Existing media references are discarded.
func (h *ScriptHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Script string `json:"script"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proj, err := h.svc.AnalyzeScript(r.Context(), req.Script)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, proj)
}

// GetProject returns the current project state.
func (h *ScriptHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.proj.Get())
}

// Routes registers script routes on the given router.
func (h *ScriptHandler) Routes(r chi.Router) {
	r.Post("/script/analyze", h.Analyze)
	r.Get("/project", h.GetProject)
}

package api

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/narratage/narratage/internal/storage"
	"github.com/rs/zerolog/hlog"
)

type MediaHandler struct {
	media storage.MediaStore
}

func NewMediaHandler(media storage.MediaStore) *MediaHandler {
	return &MediaHandler{media: media}
}

// Serve streams a stored media blob. Keys look like "audio/{file}" or
// "images/{file}"; anything that escapes those prefixes is rejected.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !validMediaKey(key) {
		WriteError(w, http.StatusBadRequest, "invalid media key")
		return
	}

	if p := h.media.LocalPath(key); p != "" {
		http.ServeFile(w, r, p)
		return
	}

	rc, err := h.media.Open(r.Context(), key)
	if err != nil {
		WriteError(w, http.StatusNotFound, "media not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeForKey(key))
	if _, err := io.Copy(w, rc); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("media stream interrupted")
	}
}

// Routes registers the media route on the given router.
func (h *MediaHandler) Routes(r chi.Router) {
	r.Get("/media/*", h.Serve)
}

func validMediaKey(key string) bool {
	if key == "" || path.Clean(key) != key || strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(key, "audio/") || strings.HasPrefix(key, "images/")
}

func contentTypeForKey(key string) string {
	switch path.Ext(key) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

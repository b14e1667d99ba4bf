package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/imagefmt"
	"github.com/starford/imgclean/internal/models"
	"github.com/starford/imgclean/internal/storage"
)

// Handler holds API route handlers.
type Handler struct {
	svc    Service
	images storage.Provider // nil when the images directory does not exist yet
}

// NewHandler creates a new Handler.
func NewHandler(svc Service, images storage.Provider) *Handler {
	return &Handler{svc: svc, images: images}
}

// ListRuns handles GET /api/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		h.fail(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []models.Run{}
	}
	writeJSON(w, http.StatusOK, RunList{Runs: runs})
}

// RunImages handles GET /api/runs/{id}/images.
func (h *Handler) RunImages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	imgs, err := h.svc.RunImages(r.Context(), id)
	if err != nil {
		h.fail(w, "run images", err)
		return
	}
	out := ImageList{RunID: id, Images: make([]ImageItem, 0, len(imgs))}
	for _, img := range imgs {
		out.Images = append(out.Images, ImageItem{Image: img, URL: h.imageURL(img.Path)})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListBackups handles GET /api/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Backups(r.Context())
	if err != nil {
		h.fail(w, "list backups", err)
		return
	}
	if list == nil {
		list = []models.Backup{}
	}
	writeJSON(w, http.StatusOK, BackupList{Backups: list})
}

// ServeImage handles GET /images/*, serving files under the images directory.
func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	if h.images == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(rel); err == nil {
		rel = decoded
	}
	if rel == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	abs, err := h.images.Resolve(rel)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid path"))
		return
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if ct := contentType(abs); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, abs)
}

// imageURL maps an absolute image path to its /images URL, or "" when the
// file lies outside the served directory.
func (h *Handler) imageURL(p string) string {
	if h.images == nil {
		return ""
	}
	rel, err := filepath.Rel(h.images.Root(), p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return "/images/" + filepath.ToSlash(rel)
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case imagefmt.PNG.Extension():
		return "image/png"
	case imagefmt.JPEG.Extension():
		return "image/jpeg"
	case imagefmt.GIF.Extension():
		return "image/gif"
	case imagefmt.WEBP.Extension():
		return "image/webp"
	case imagefmt.BMP.Extension():
		return "image/bmp"
	case imagefmt.SVG.Extension():
		return "image/svg+xml"
	}
	return ""
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrCatalogDisabled):
		writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

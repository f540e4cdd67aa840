package fonts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/signhub/signhub/internal/content"
)

// Lister returns the font media of the library.
type Lister interface {
	ListFonts(ctx context.Context) ([]content.Media, error)
}

// Handler serves the font stylesheet.
type Handler struct {
	logger *slog.Logger
	cache  *Cache
	fonts  Lister
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, cache *Cache, fonts Lister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, cache: cache, fonts: fonts}
}

// MountRoutes registers the stylesheet route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/fonts.css", h.stylesheet)
}

func (h *Handler) stylesheet(w http.ResponseWriter, r *http.Request) {
	css, err := h.cache.Stylesheet(r.Context(), h.build)
	if err != nil {
		h.logger.Error("build font stylesheet", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write([]byte(css))
}

func (h *Handler) build(ctx context.Context) (string, error) {
	fonts, err := h.fonts.ListFonts(ctx)
	if err != nil {
		return "", err
	}
	return BuildStylesheet(fonts), nil
}

// BuildStylesheet renders one @font-face rule per font.
func BuildStylesheet(fonts []content.Media) string {
	var b strings.Builder
	for _, f := range fonts {
		family := strings.ReplaceAll(f.Name, `"`, "")
		fmt.Fprintf(&b, "@font-face {\n  font-family: \"%s\";\n  src: url(\"/library/download/%d\");\n}\n", family, f.MediaID)
	}
	return b.String()
}

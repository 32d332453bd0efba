package barcode

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/yuchialin/cvspay/internal"
	"github.com/yuchialin/cvspay/internal/transport"
	"github.com/yuchialin/cvspay/pkg/logger"
)

// Handler exposes the symbol encoder directly, with no order context.
type Handler struct {
	*transport.BaseHandler
}

func NewHandler() *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{BaseHandler: transport.NewBaseHandler(lg)}
}

// MultiRenderDTO is the request payload for a stacked multi-segment render.
type MultiRenderDTO struct {
	Segments   []string `json:"segments"`
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	Spacing    int      `json:"spacing,omitempty"`
	Labels     []string `json:"labels,omitempty"`
	ShowLabels bool     `json:"show_labels,omitempty"`
	ShowText   bool     `json:"show_text,omitempty"`
}

// RenderResponse is the JSON render shape carrying the document alongside
// validation output, so a caller can surface warnings next to a usable
// barcode instead of failing outright.
type RenderResponse struct {
	SVG        string `json:"svg"`
	Pattern    string `json:"pattern"`
	Validation Result `json:"validation"`
}

// Generate serves a single-symbol render. The format query switches between
// the raw SVG document (default) and a JSON envelope with validation
// warnings.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	text := chi.URLParam(r, "text")

	opts := Options{
		Width:    queryInt(r, "width"),
		Height:   queryInt(r, "height"),
		ShowText: r.URL.Query().Get("show_text") != "false",
	}

	svg, err := RenderSVG(text, opts)
	if err != nil {
		h.writeEncodingError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		pattern, _ := Encode(text)
		h.WriteJSON(w, http.StatusOK, RenderResponse{
			SVG:        svg,
			Pattern:    string(pattern),
			Validation: Validate(text),
		})
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(svg)); err != nil {
		h.Logger.Error("failed to write barcode response", "error", err)
	}
}

// GenerateMulti serves a stacked render of up to three segments.
func (h *Handler) GenerateMulti(w http.ResponseWriter, r *http.Request) {
	var dto MultiRenderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := MultiOptions{
		Options: Options{
			Width:    dto.Width,
			Height:   dto.Height,
			ShowText: dto.ShowText,
		},
		Spacing:    dto.Spacing,
		Labels:     dto.Labels,
		ShowLabels: dto.ShowLabels,
	}

	svg, err := RenderMultiSVG(dto.Segments, opts)
	if err != nil {
		h.writeEncodingError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(svg)); err != nil {
		h.Logger.Error("failed to write barcode response", "error", err)
	}
}

// writeEncodingError reports bad input with the offending characters
// enumerated. Encoding problems are always the caller's input, never retried.
func (h *Handler) writeEncodingError(w http.ResponseWriter, err error) {
	var encErr *EncodingError
	if errors.As(err, &encErr) {
		invalid := make([]string, len(encErr.Invalid))
		for i, r := range encErr.Invalid {
			invalid[i] = string(r)
		}
		h.HandleError(w, &internal.AppError{
			Type:       internal.ErrorTypeValidation,
			Code:       internal.ErrCodeEncodingFailed,
			Message:    err.Error(),
			Details:    map[string]interface{}{"invalid_characters": invalid},
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	h.HandleError(w, &internal.AppError{
		Type:       internal.ErrorTypeValidation,
		Code:       internal.ErrCodeInvalidSegments,
		Message:    err.Error(),
		StatusCode: http.StatusBadRequest,
	})
}

func queryInt(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/masonry/internal/loader"
	"github.com/eugenenazirov/masonry/internal/packer"
	"github.com/eugenenazirov/masonry/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const (
	defaultMaxUploadBytes = 64 << 20
	multipartMemory       = 32 << 20
	uploadField           = "images"
	maxOutputSize         = 10_000
)

// CompositionStore keeps the most recent composition for later retrieval.
type CompositionStore interface {
	SaveEncoded(data []byte) error
	Latest() ([]byte, time.Time, error)
}

// Handler wires the packer and composition store into HTTP handlers.
type Handler struct {
	store          CompositionStore
	packerOptions  []packer.Option
	outputSize     int
	quality        int
	maxUploadBytes int64
	logger         *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithPackerOptions sets the base options applied to every packing run.
func WithPackerOptions(opts ...packer.Option) HandlerOption {
	return func(h *Handler) {
		h.packerOptions = append(h.packerOptions, opts...)
	}
}

// WithOutputSize sets the canvas size used when a request does not specify one.
func WithOutputSize(size int) HandlerOption {
	return func(h *Handler) {
		h.outputSize = size
	}
}

// WithQuality sets the JPEG quality of packed responses.
func WithQuality(quality int) HandlerOption {
	return func(h *Handler) {
		h.quality = quality
	}
}

// WithMaxUploadBytes caps the size of a pack request body.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithHandlerLogger sets the logger used for per-upload diagnostics.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store CompositionStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:          store,
		outputSize:     2000,
		quality:        storage.DefaultQuality,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePack(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large", fmt.Sprintf("upload exceeds %d bytes", h.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "expected a multipart form with image files")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	size := h.outputSize
	if raw := strings.TrimSpace(r.FormValue("size")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 || value > maxOutputSize {
			writeError(w, http.StatusBadRequest, "Invalid size", fmt.Sprintf("size must be an integer between 1 and %d", maxOutputSize))
			return
		}
		size = value
	}

	items, skipped := h.decodeUploads(r)
	if len(items) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "No images to pack",
			fmt.Sprintf("%d uploaded files could not be decoded", len(skipped)),
			fmt.Sprintf("Upload JPEG or PNG files under the %q field", uploadField))
		return
	}

	opts := append(append([]packer.Option{}, h.packerOptions...), packer.WithOutputSize(size))
	result, err := packer.New(opts...).Pack(items)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := storage.Encode(&buf, result.Canvas, h.quality); err != nil {
		writeInternalError(w, err)
		return
	}
	data := buf.Bytes()
	if err := h.store.SaveEncoded(data); err != nil {
		writeInternalError(w, err)
		return
	}

	h.logger.Info("composition packed",
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Int("packed", result.Packed()),
		zap.Int("visible", result.Visible()),
		zap.Int("skipped", len(skipped)),
		zap.Float64("scale", result.Scale),
	)

	w.Header().Set("X-Packed-Count", strconv.Itoa(result.Packed()))
	w.Header().Set("X-Visible-Count", strconv.Itoa(result.Visible()))
	w.Header().Set("X-Skipped-Count", strconv.Itoa(len(skipped)))
	w.Header().Set("X-Scale", strconv.FormatFloat(result.Scale, 'f', 6, 64))
	writeJPEG(w, data)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	_ = r
	data, savedAt, err := h.store.Latest()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", "no composition has been packed yet")
			return
		}
		writeInternalError(w, err)
		return
	}

	w.Header().Set("Last-Modified", savedAt.UTC().Format(http.TimeFormat))
	writeJPEG(w, data)
}

// decodeUploads decodes every uploaded file in form order, skipping the ones that fail.
func (h *Handler) decodeUploads(r *http.Request) ([]packer.Item, []loader.Skipped) {
	files := r.MultipartForm.File[uploadField]
	items := make([]packer.Item, 0, len(files))
	var skipped []loader.Skipped

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			skipped = append(skipped, loader.Skipped{Path: fh.Filename, Err: err})
			continue
		}
		img, err := loader.DecodeReader(f)
		_ = f.Close()
		if err != nil {
			h.logger.Warn("skipping upload",
				zap.String("request_id", requestIDFromContext(r.Context())),
				zap.String("filename", fh.Filename),
				zap.Error(err),
			)
			skipped = append(skipped, loader.Skipped{Path: fh.Filename, Err: err})
			continue
		}
		items = append(items, packer.Item{Name: fh.Filename, Image: img})
	}
	return items, skipped
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJPEG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/masonry/internal/storage"
)

var fixedNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

type upload struct {
	name string
	data []byte
}

func pngUpload(t *testing.T, name string, w, h int) upload {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 40, G: 80, B: 120, A: 255}), imaging.PNG); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return upload{name: name, data: buf.Bytes()}
}

func multipartBody(t *testing.T, fields map[string]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(uploadField, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

func setupTestRouter(t *testing.T, opts ...HandlerOption) (http.Handler, *storage.MemoryStorage) {
	t.Helper()

	store := storage.NewMemoryStorage()
	logger := zaptest.NewLogger(t)
	opts = append([]HandlerOption{WithClock(func() time.Time { return fixedNow }), WithHandlerLogger(logger)}, opts...)
	handler := NewHandler(store, opts...)
	router := NewRouter(handler, logger, WithLogging(false), WithRateLimit(0, 0))

	return router, store
}

func postPack(t *testing.T, router http.Handler, fields map[string]string, files ...upload) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/pack", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(fixedNow) {
		t.Fatalf("expected timestamp %s, got %s", fixedNow, body.Timestamp)
	}
}

func TestPackEndpointReturnsJPEG(t *testing.T) {
	router, store := setupTestRouter(t)

	rec := postPack(t, router, map[string]string{"size": "128"},
		pngUpload(t, "a.png", 40, 30),
		upload{name: "broken.png", data: []byte("nope")},
		pngUpload(t, "b.png", 30, 40),
	)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", ct)
	}
	if got := rec.Header().Get("X-Packed-Count"); got != "2" {
		t.Fatalf("expected 2 packed, got %s", got)
	}
	if got := rec.Header().Get("X-Skipped-Count"); got != "1" {
		t.Fatalf("expected 1 skipped, got %s", got)
	}
	if _, err := strconv.ParseFloat(rec.Header().Get("X-Scale"), 64); err != nil {
		t.Fatalf("expected numeric scale header: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("expected valid JPEG body: %v", err)
	}
	if cfg.Width != 128 || cfg.Height != 128 {
		t.Fatalf("expected 128x128 canvas, got %dx%d", cfg.Width, cfg.Height)
	}

	stored, _, err := store.Latest()
	if err != nil {
		t.Fatalf("expected composition to be stored: %v", err)
	}
	if !bytes.Equal(stored, rec.Body.Bytes()) {
		t.Fatalf("expected stored composition to match response")
	}
}

func TestPackEndpointUsesDefaultSize(t *testing.T) {
	router, _ := setupTestRouter(t, WithOutputSize(96))

	rec := postPack(t, router, nil, pngUpload(t, "a.png", 10, 10))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("expected valid JPEG body: %v", err)
	}
	if cfg.Width != 96 || cfg.Height != 96 {
		t.Fatalf("expected 96x96 canvas, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestPackEndpointNoDecodableImages(t *testing.T) {
	router, store := setupTestRouter(t)

	rec := postPack(t, router, nil, upload{name: "broken.jpg", data: []byte("nope")})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}

	var body struct {
		Suggestion string `json:"suggestion"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Suggestion == "" {
		t.Fatalf("expected suggestion to be populated")
	}
	if _, _, err := store.Latest(); err == nil {
		t.Fatalf("expected nothing to be stored")
	}
}

func TestPackEndpointRejectsInvalidSize(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, size := range []string{"0", "-5", "abc", "20000"} {
		rec := postPack(t, router, map[string]string{"size": size}, pngUpload(t, "a.png", 4, 4))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400 for size %q, got %d", size, rec.Code)
		}
	}
}

func TestPackEndpointRejectsNonMultipart(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/pack", bytes.NewReader([]byte(`{"images":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestPackEndpointRejectsOversizedUpload(t *testing.T) {
	router, _ := setupTestRouter(t, WithMaxUploadBytes(64))

	rec := postPack(t, router, nil, pngUpload(t, "a.png", 64, 64))
	if rec.Code != http.StatusRequestEntityTooLarge && rec.Code != http.StatusBadRequest {
		t.Fatalf("expected upload to be rejected, got %d", rec.Code)
	}
}

func TestLatestEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/compositions/latest", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 before any pack, got %d", rec.Code)
	}

	if rec := postPack(t, router, nil, pngUpload(t, "a.png", 8, 8)); rec.Code != http.StatusOK {
		t.Fatalf("expected pack to succeed, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/compositions/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", ct)
	}
	if rec.Header().Get("Last-Modified") == "" {
		t.Fatalf("expected Last-Modified header")
	}
}

func TestCorsPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/pack", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}
}

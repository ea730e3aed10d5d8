package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photodrop/internal/config"
	"photodrop/internal/service"
	"photodrop/internal/storage"
	"photodrop/internal/storage/local"
)

const testMaxFileSize = 1024

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*UploadHandler, *local.Store) {
	t.Helper()

	store, err := local.New(storage.Config{
		Root:              filepath.Join(t.TempDir(), "uploads"),
		MaxFileSize:       testMaxFileSize,
		AllowedExtensions: []string{"jpg", "jpeg", "png", "gif", "webp"},
	}, quietLogger())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	svc := service.NewPhotoService(store, nil, quietLogger())
	return NewUploadHandler(svc, testMaxFileSize, quietLogger()), store
}

func newTestRouter(t *testing.T) (http.Handler, *local.Store) {
	t.Helper()

	handler, store := newTestHandler(t)
	cfg := &config.Config{
		Environment:        "test",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
	}
	return NewRouter(cfg, handler, quietLogger()), store
}

func newMultipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var resp errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

// permanentFiles 返回临时区之外的所有文件
func permanentFiles(t *testing.T, store *local.Store) []string {
	t.Helper()

	files, err := local.ListFiles(store.Root(), local.ListOptions{Recursive: true})
	if err != nil {
		t.Fatalf("list root: %v", err)
	}
	var out []string
	for _, f := range files {
		if !strings.HasPrefix(f, store.TempDir()+string(filepath.Separator)) {
			out = append(out, f)
		}
	}
	return out
}

func TestUploadHandler_Upload(t *testing.T) {
	handler, store := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Upload(rec, newMultipartRequest(t, "photo", "vacation.jpg", []byte("jpeg bytes")))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data storage.StoredFileRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	year := time.Now().UTC().Format("2006")
	if !strings.HasPrefix(resp.Data.RelativePath, year+"/") {
		t.Fatalf("unexpected relative path %s", resp.Data.RelativePath)
	}
	if resp.Data.OriginalName != "vacation.jpg" || resp.Data.MimeType != "image/jpeg" || resp.Data.Size != 10 {
		t.Fatalf("unexpected record %+v", resp.Data)
	}
	if strings.Contains(rec.Body.String(), store.Root()) {
		t.Fatal("absolute path must not be exposed")
	}

	entries, err := os.ReadDir(store.TempDir())
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp area should be empty after ingest, found %d entries", len(entries))
	}
}

func TestUploadHandler_RejectsExtensionBeforeStaging(t *testing.T) {
	handler, store := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Upload(rec, newMultipartRequest(t, "photo", "setup.exe", []byte("MZ")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "Invalid file" {
		t.Fatalf("unexpected error %+v", resp)
	}
	files, err := local.ListFiles(store.Root(), local.ListOptions{Recursive: true})
	if err != nil {
		t.Fatalf("list root: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("nothing may be written for rejected uploads, found %v", files)
	}
}

func TestUploadHandler_RejectsOversize(t *testing.T) {
	handler, store := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Upload(rec, newMultipartRequest(t, "photo", "big.png", bytes.Repeat([]byte("x"), testMaxFileSize+1)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
	if files := permanentFiles(t, store); len(files) != 0 {
		t.Fatalf("nothing may be stored, found %v", files)
	}
}

func TestUploadHandler_BodyOverLimit(t *testing.T) {
	handler, _ := newTestHandler(t)
	content := bytes.Repeat([]byte("x"), int(testMaxFileSize+multipartOverhead)+1)

	rec := httptest.NewRecorder()
	handler.Upload(rec, newMultipartRequest(t, "photo", "huge.png", content))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", rec.Code)
	}
}

func TestUploadHandler_MissingField(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.Upload(rec, newMultipartRequest(t, "file", "a.jpg", []byte("x")))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Error != "No file uploaded" {
		t.Fatalf("unexpected error %+v", resp)
	}
}

func TestUploadHandler_NotMultipart(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.Upload(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRouter_UploadThenDelete(t *testing.T) {
	router, store := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newMultipartRequest(t, "photo", "cat.gif", []byte("GIF89a")))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data storage.StoredFileRecord `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/photos/"+resp.Data.RelativePath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if files := permanentFiles(t, store); len(files) != 0 {
		t.Fatalf("photo should be deleted, found %v", files)
	}
}

func TestRouter_DeleteRejectsTempArea(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/photos/temp/upload-1", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "OK" || resp.Environment != "test" || resp.Uptime < 0 {
		t.Fatalf("unexpected health response %+v", resp)
	}
	if _, err := time.Parse(time.RFC3339Nano, resp.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %v", err)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}

func TestRouter_ListPhotosNotImplemented(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/photos", nil))

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rec.Code)
	}
}

func TestRouter_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope?x=1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	resp := decodeError(t, rec)
	if resp.Error != "Route not found" || resp.Message != "Cannot GET /nope?x=1" {
		t.Fatalf("unexpected body %+v", resp)
	}
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "photodrop_http_requests_total") {
		t.Fatal("expected http metrics to be exported")
	}
}

func TestRouter_DeleteRejectsPartitionDirectories(t *testing.T) {
	router, store := newTestRouter(t)
	partition := filepath.Join(store.Root(), "2024", "03")
	if err := os.MkdirAll(partition, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, rel := range []string{"2024/03", "2024"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/photos/"+rel, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("DELETE %s: expected status 400, got %d: %s", rel, rec.Code, rec.Body.String())
		}
	}
	if _, err := os.Stat(partition); err != nil {
		t.Fatalf("partition directory must survive: %v", err)
	}
}

package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"photodrop/internal/service"
	"photodrop/internal/storage"

	"github.com/go-chi/chi/v5"
)

const (
	// photoField 是 multipart 表单中文件字段的名称
	photoField = "photo"
	// multipartOverhead 为表单边界和其他字段预留的字节数
	multipartOverhead     int64 = 1 << 20
	multipartMemoryBudget int64 = 8 << 20
)

// UploadHandler 提供照片上传相关的 HTTP 端点。
type UploadHandler struct {
	service        *service.PhotoService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewUploadHandler(s *service.PhotoService, maxUploadBytes int64, logger *slog.Logger) *UploadHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &UploadHandler{service: s, maxUploadBytes: maxUploadBytes, logger: logger}
}

func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/upload", h.Upload)
	r.Route("/photos", func(r chi.Router) {
		r.Get("/", h.ListPhotos)
		r.Delete("/*", h.DeletePhoto)
	})
}

// Upload 接受 multipart/form-data 上传：先校验名称和大小，再暂存并入库。
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	defer r.Body.Close()

	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorDetail(w, http.StatusRequestEntityTooLarge, "File too large",
				fmt.Sprintf("maximum size is %d bytes", h.maxUploadBytes))
			return
		}
		writeErrorDetail(w, http.StatusBadRequest, "Invalid multipart form", err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(photoField)
	if err != nil {
		writeErrorDetail(w, http.StatusBadRequest, "No file uploaded", "multipart field \"photo\" is required")
		return
	}
	defer file.Close()

	size, err := determineFileSize(file, header)
	if err != nil {
		writeErrorDetail(w, http.StatusBadRequest, "Invalid upload", err.Error())
		return
	}

	candidate := storage.UploadCandidate{
		OriginalName: header.Filename,
		Size:         size,
		ContentType:  header.Header.Get("Content-Type"),
	}
	if err := h.service.Validate(candidate); err != nil {
		h.writeServiceError(w, err)
		return
	}

	tempPath, written, err := h.service.Stage(r.Context(), file)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	candidate.Size = written
	candidate.TempPath = tempPath

	record, err := h.service.Ingest(r.Context(), candidate)
	if err != nil {
		h.service.Discard(tempPath)
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{Data: record})
}

// ListPhotos 照片列表尚未提供。
func (h *UploadHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	writeErrorDetail(w, http.StatusNotImplemented, "Not implemented", "photo listing is not available yet")
}

// DeletePhoto 按相对路径删除已入库的照片。
func (h *UploadHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		writeError(w, http.StatusInternalServerError, "handler not initialized")
		return
	}

	rel := strings.TrimSpace(chi.URLParam(r, "*"))
	if rel == "" {
		writeError(w, http.StatusBadRequest, "photo path is required")
		return
	}

	if err := h.service.Delete(r.Context(), rel); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Data: map[string]any{"relativePath": rel, "deleted": true}})
}

// writeServiceError 把服务层错误映射为 HTTP 状态码。
func (h *UploadHandler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *storage.ValidationError
	switch {
	case errors.As(err, &ve) && ve.Field == "size":
		writeErrorDetail(w, http.StatusRequestEntityTooLarge, "File too large", ve.Error())
	case errors.As(err, &ve):
		writeErrorDetail(w, http.StatusBadRequest, "Invalid file", ve.Error())
	case errors.Is(err, storage.ErrOutsideRoot), errors.Is(err, storage.ErrNotRegularFile):
		writeErrorDetail(w, http.StatusBadRequest, "Invalid path", err.Error())
	default:
		h.logger.Error("上传处理失败", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Failed to store file")
	}
}

func determineFileSize(file multipart.File, header *multipart.FileHeader) (int64, error) {
	if header != nil && header.Size > 0 {
		return header.Size, nil
	}

	seeker, ok := file.(io.Seeker)
	if !ok {
		return 0, fmt.Errorf("cannot determine file size")
	}

	size, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("measure file: %w", err)
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind file: %w", err)
	}

	return size, nil
}

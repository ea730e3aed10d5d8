package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"photodrop/internal/storage"
	"photodrop/internal/storage/local"
)

type mockMirror struct {
	writes   map[string][]byte
	deletes  []string
	writeErr error
}

func (m *mockMirror) Write(ctx context.Context, key string, r io.Reader) (storage.Location, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return storage.Location{}, err
	}
	if m.writeErr != nil {
		return storage.Location{}, m.writeErr
	}
	if m.writes == nil {
		m.writes = map[string][]byte{}
	}
	m.writes[key] = body
	return storage.Location{Path: key, URL: "s3://test/" + key}, nil
}

func (m *mockMirror) Delete(ctx context.Context, key string) error {
	m.deletes = append(m.deletes, key)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *local.Store {
	t.Helper()

	store, err := local.New(storage.Config{
		Root:              filepath.Join(t.TempDir(), "uploads"),
		MaxFileSize:       10 * 1024 * 1024,
		AllowedExtensions: []string{"jpg", "jpeg", "png", "gif", "webp"},
	}, quietLogger())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func stage(t *testing.T, svc *PhotoService, content string) (string, int64) {
	t.Helper()

	path, n, err := svc.Stage(context.Background(), strings.NewReader(content))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	return path, n
}

func TestPhotoService_Ingest_StoresUnderYearMonth(t *testing.T) {
	store := newTestStore(t)
	svc := NewPhotoService(store, nil, quietLogger())
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }

	content := strings.Repeat("x", 500000)
	tempPath, size := stage(t, svc, content)

	record, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "vacation.jpg",
		Size:         size,
		ContentType:  "image/jpeg",
		TempPath:     tempPath,
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	if !regexp.MustCompile(`^2024/03/vacation-1710496800000-[0-9a-z]+\.jpg$`).MatchString(record.RelativePath) {
		t.Fatalf("unexpected relative path %s", record.RelativePath)
	}
	if record.MimeType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", record.MimeType)
	}
	if record.Size != 500000 {
		t.Fatalf("expected size 500000, got %d", record.Size)
	}
	if record.Filename == record.OriginalName {
		t.Fatal("stored filename must differ from original name")
	}
	if !record.UploadDate.Equal(time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected upload date %s", record.UploadDate)
	}
	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Fatal("temp file should be consumed by the move")
	}
	data, err := os.ReadFile(record.AbsolutePath)
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != content {
		t.Fatal("stored content differs from upload")
	}
}

func TestPhotoService_Ingest_RejectsBeforeAnyIO(t *testing.T) {
	store := newTestStore(t)
	svc := NewPhotoService(store, nil, quietLogger())

	_, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "setup.exe",
		Size:         1024,
		TempPath:     filepath.Join(store.TempDir(), "does-not-matter"),
	})
	if !storage.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	files, err := local.ListFiles(store.Root(), local.ListOptions{Recursive: true})
	if err != nil {
		t.Fatalf("list root: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("no file may appear under the root, found %v", files)
	}
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != storage.TempDirName {
		t.Fatalf("no partition directory may be created, found %v", entries)
	}
}

func TestPhotoService_Ingest_RejectsOversize(t *testing.T) {
	svc := NewPhotoService(newTestStore(t), nil, quietLogger())

	_, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "huge.png",
		Size:         10*1024*1024 + 1,
		TempPath:     "/nonexistent",
	})
	var ve *storage.ValidationError
	if !errors.As(err, &ve) || ve.Field != "size" {
		t.Fatalf("expected size validation error, got %v", err)
	}
}

func TestPhotoService_Ingest_AcceptsZeroByteFile(t *testing.T) {
	svc := NewPhotoService(newTestStore(t), nil, quietLogger())
	tempPath, size := stage(t, svc, "")

	record, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "empty.gif",
		Size:         size,
		TempPath:     tempPath,
	})
	if err != nil {
		t.Fatalf("zero-byte upload should be accepted, got %v", err)
	}
	if record.Size != 0 {
		t.Fatalf("expected size 0, got %d", record.Size)
	}
}

func TestPhotoService_Ingest_MissingTempFile(t *testing.T) {
	store := newTestStore(t)
	svc := NewPhotoService(store, nil, quietLogger())

	record, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "lost.jpg",
		Size:         10,
		TempPath:     filepath.Join(store.TempDir(), "vanished"),
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if record != nil {
		t.Fatal("no record may be built after a failed move")
	}
}

func TestPhotoService_Ingest_MirrorsStoredFile(t *testing.T) {
	mirror := &mockMirror{}
	svc := NewPhotoService(newTestStore(t), mirror, quietLogger())
	tempPath, size := stage(t, svc, "png bytes")

	record, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "shot.png",
		Size:         size,
		TempPath:     tempPath,
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if got := string(mirror.writes[record.RelativePath]); got != "png bytes" {
		t.Fatalf("expected mirrored content under %s, got %q", record.RelativePath, got)
	}
}

func TestPhotoService_Ingest_MirrorFailureDoesNotFailIngest(t *testing.T) {
	mirror := &mockMirror{writeErr: errors.New("bucket unavailable")}
	svc := NewPhotoService(newTestStore(t), mirror, quietLogger())
	tempPath, size := stage(t, svc, "data")

	record, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "shot.webp",
		Size:         size,
		TempPath:     tempPath,
	})
	if err != nil {
		t.Fatalf("mirror failure must not fail ingest, got %v", err)
	}
	if _, err := os.Stat(record.AbsolutePath); err != nil {
		t.Fatalf("local file must exist: %v", err)
	}
}

func TestPhotoService_Delete(t *testing.T) {
	mirror := &mockMirror{}
	svc := NewPhotoService(newTestStore(t), mirror, quietLogger())
	tempPath, size := stage(t, svc, "bye")

	record, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "bye.jpg",
		Size:         size,
		TempPath:     tempPath,
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	if err := svc.Delete(context.Background(), record.RelativePath); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if err := svc.Delete(context.Background(), record.RelativePath); err != nil {
		t.Fatalf("second Delete must be idempotent, got %v", err)
	}
	if _, err := os.Stat(record.AbsolutePath); !os.IsNotExist(err) {
		t.Fatal("file still exists after delete")
	}
	if len(mirror.deletes) != 2 || mirror.deletes[0] != record.RelativePath {
		t.Fatalf("expected mirror deletes for %s, got %v", record.RelativePath, mirror.deletes)
	}
}

func TestPhotoService_Delete_RejectsTraversalAndTempArea(t *testing.T) {
	svc := NewPhotoService(newTestStore(t), nil, quietLogger())

	for _, rel := range []string{"../outside.jpg", "temp/upload-123", ""} {
		if err := svc.Delete(context.Background(), rel); !errors.Is(err, storage.ErrOutsideRoot) {
			t.Errorf("Delete(%q): expected ErrOutsideRoot, got %v", rel, err)
		}
	}
}

func TestPhotoService_Discard(t *testing.T) {
	svc := NewPhotoService(newTestStore(t), nil, quietLogger())
	tempPath, _ := stage(t, svc, "junk")

	svc.Discard(tempPath)

	if _, err := os.Stat(tempPath); !os.IsNotExist(err) {
		t.Fatal("discarded temp file still exists")
	}
}

func TestPhotoService_NilSafe(t *testing.T) {
	var svc *PhotoService

	if _, err := svc.Ingest(context.Background(), storage.UploadCandidate{}); err == nil {
		t.Fatal("expected error from nil service")
	}
	if err := svc.Validate(storage.UploadCandidate{}); err == nil {
		t.Fatal("expected error from nil service")
	}
}

func TestPhotoService_Ingest_FilenameTimestampMatchesUploadDate(t *testing.T) {
	at := time.Date(2024, 3, 31, 23, 59, 59, 999_000_000, time.UTC)
	svc := NewPhotoService(newTestStore(t), nil, quietLogger())
	svc.now = func() time.Time { return at }
	tempPath, size := stage(t, svc, "edge")

	record, err := svc.Ingest(context.Background(), storage.UploadCandidate{
		OriginalName: "edge.png",
		Size:         size,
		TempPath:     tempPath,
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	want := fmt.Sprintf("2024/03/edge-%d-", record.UploadDate.UnixMilli())
	if !strings.HasPrefix(record.RelativePath, want) {
		t.Fatalf("expected prefix %s, got %s", want, record.RelativePath)
	}
}

func TestPhotoService_Delete_RejectsDirectories(t *testing.T) {
	store := newTestStore(t)
	svc := NewPhotoService(store, nil, quietLogger())
	partition := filepath.Join(store.Root(), "2024", "03")
	if err := os.MkdirAll(partition, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	for _, rel := range []string{"2024/03", "2024"} {
		if err := svc.Delete(context.Background(), rel); !errors.Is(err, storage.ErrNotRegularFile) {
			t.Errorf("Delete(%q): expected ErrNotRegularFile, got %v", rel, err)
		}
	}
	if _, err := os.Stat(partition); err != nil {
		t.Fatalf("partition directory must survive: %v", err)
	}
}

func TestPhotoService_Delete_MissingFileIsNotAnError(t *testing.T) {
	mirror := &mockMirror{}
	svc := NewPhotoService(newTestStore(t), mirror, quietLogger())

	if err := svc.Delete(context.Background(), "2024/03/gone.jpg"); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
	if len(mirror.deletes) != 1 {
		t.Fatalf("mirror delete should still be attempted, got %v", mirror.deletes)
	}
}

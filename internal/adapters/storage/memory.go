package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"recovery_backend/platform/apperr"
)

// MemoryService keeps objects in memory. The api falls back to it when MinIO
// is not configured so uploads still run inline in development; tests use it
// directly.
type MemoryService struct {
	mu          sync.RWMutex
	objects     map[string][]byte
	maxFileSize int64
}

// NewMemoryService creates an empty in-memory store.
func NewMemoryService(maxFileSize int64) *MemoryService {
	return &MemoryService{objects: make(map[string][]byte), maxFileSize: maxFileSize}
}

func memKey(bucket, fileKey string) string {
	return bucket + "/" + fileKey
}

func (s *MemoryService) GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error) {
	return &PresignedURL{
		URL:       fmt.Sprintf("memory://%s/%s", bucket, fileKey),
		FileKey:   fileKey,
		ExpiresAt: time.Now().Add(PresignedURLTTL),
	}, nil
}

func (s *MemoryService) DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[memKey(bucket, fileKey)]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryService) DeleteObject(ctx context.Context, bucket, fileKey string) error {
	s.mu.Lock()
	delete(s.objects, memKey(bucket, fileKey))
	s.mu.Unlock()
	return nil
}

func (s *MemoryService) UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	fileKey := objectKey(folder, fileName)
	s.mu.Lock()
	s.objects[memKey(bucket, fileKey)] = data
	s.mu.Unlock()
	return fileKey, nil
}

func (s *MemoryService) EnsureBucketExists(ctx context.Context, bucket string) error {
	return nil
}

func (s *MemoryService) Validate(class ContentClass, contentType string, sizeBytes int64) error {
	return validate(class, contentType, sizeBytes, s.maxFileSize)
}

// Len reports the number of stored objects.
func (s *MemoryService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

var _ StorageService = (*MemoryService)(nil)

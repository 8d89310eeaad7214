package storage

import (
	"fmt"
	"strings"

	"recovery_backend/platform/apperr"
)

var allowedContentTypes = map[ContentClass]map[string]bool{
	ContentSpreadsheet: {
		"text/csv":                 true,
		"text/plain":               true,
		"application/csv":          true,
		"application/vnd.ms-excel": true,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
		// Browsers send this for files they cannot classify.
		"application/octet-stream": true,
	},
	ContentImage: {
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
		"image/heic": true,
	},
}

func normalizeContentType(contentType string) string {
	normalized := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(normalized))
}

// validate is shared by every StorageService implementation.
func validate(class ContentClass, contentType string, sizeBytes, maxFileSize int64) error {
	if !allowedContentTypes[class][normalizeContentType(contentType)] {
		return apperr.Validation(fmt.Sprintf("content type %q is not allowed", contentType))
	}
	if sizeBytes <= 0 {
		return apperr.Validation("file is empty")
	}
	if maxFileSize > 0 && sizeBytes > maxFileSize {
		return apperr.Validation(fmt.Sprintf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, maxFileSize))
	}
	return nil
}

// IsImageContentType checks if the content type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(normalizeContentType(contentType), "image/")
}

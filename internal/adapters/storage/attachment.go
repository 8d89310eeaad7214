package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
)

// Attachment is a file received in a multipart request.
type Attachment struct {
	FileName    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// AttachmentFromHeader adapts a multipart file header.
func AttachmentFromHeader(fh *multipart.FileHeader) *Attachment {
	if fh == nil {
		return nil
	}
	return &Attachment{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Store validates att against class and uploads it under folder.
func Store(ctx context.Context, svc StorageService, bucket, folder string, class ContentClass, att *Attachment) (string, error) {
	if err := svc.Validate(class, att.ContentType, att.Size); err != nil {
		return "", err
	}
	rc, err := att.Open()
	if err != nil {
		return "", fmt.Errorf("open attachment: %w", err)
	}
	defer rc.Close()
	return svc.UploadFile(ctx, bucket, folder, att.FileName, att.ContentType, rc, att.Size)
}

package service

import (
	"context"
	"time"
)

type UploadTarget struct {
	ObjectName  string    `json:"objectName"`
	UploadURL   string    `json:"uploadUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AttachmentStorage issues presigned upload URLs for chat evidence.
type AttachmentStorage interface {
	GenerateSignedUploadURL(ctx context.Context, objectName, contentType string, expires time.Duration) (string, error)
}

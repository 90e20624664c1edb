package storage

import (
	"context"
	"time"
)

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified *time.Time
}

// Service mirrors the local avatar directory to remote object storage so a
// CDN or pages host can serve the images directly.
type Service interface {
	UploadDirectory(ctx context.Context, localPath, bucket, keyPrefix string) (string, error)
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
}

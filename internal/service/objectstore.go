package service

import (
	"context"
	"io"
)

// ObjectStore - объектное хранилище файлов резюме (S3 или MinIO)
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete идемпотентен: отсутствующий ключ ошибкой не считается
	Delete(ctx context.Context, key string) error
	ResolveURL(ctx context.Context, key string) (string, error)
}

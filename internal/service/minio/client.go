// Package minio - клиент объектного хранилища MinIO.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"portfoliocv/internal/domain"
)

const codeNoSuchKey = "NoSuchKey"

// Config содержит параметры для подключения к MinIO
type Config struct {
	Endpoint        string // Адрес MinIO (например, "localhost:9000")
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
	PublicBaseURL   string
	PresignTTL      time.Duration
	Timeout         time.Duration
}

// Client хранит файлы резюме в MinIO
type Client struct {
	client *minio.Client
	conf   Config
}

// NewClient создает клиент MinIO и при необходимости создает бакет
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init minio client: %w", err)
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}

	c := &Client{client: minioClient, conf: cfg}

	exists, err := minioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		logger.Info("bucket not found, creating", zap.String("bucket", cfg.BucketName))
		err = minioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.BucketName, err)
		}
	}

	return c, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.conf.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.conf.Timeout)
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if _, err := c.client.BucketExists(ctx, c.conf.BucketName); err != nil {
		return domain.Wrap(domain.ErrStorageFailure, "check bucket", err)
	}
	return nil
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.PutObject(ctx, c.conf.BucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return domain.Wrap(domain.ErrStorageFailure, "put object", err)
	}
	return nil
}

// Get возвращает тело объекта. GetObject ленивый, поэтому отсутствие
// объекта проверяется через Stat.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, cancel := c.withTimeout(ctx)

	obj, err := c.client.GetObject(ctx, c.conf.BucketName, key, minio.GetObjectOptions{})
	if err == nil {
		_, err = obj.Stat()
		if err != nil {
			_ = obj.Close()
		}
	}
	if err != nil {
		cancel()
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
		}
		return nil, domain.Wrap(domain.ErrStorageFailure, "get object", err)
	}

	return &object{ReadCloser: obj, cancel: cancel}, nil
}

// Delete идемпотентен: RemoveObject не возвращает ошибку для отсутствующего ключа
func (c *Client) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.client.RemoveObject(ctx, c.conf.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == codeNoSuchKey {
			return nil
		}
		return domain.Wrap(domain.ErrStorageFailure, "delete object", err)
	}
	return nil
}

func (c *Client) ResolveURL(ctx context.Context, key string) (string, error) {
	if c.conf.PublicBaseURL != "" {
		segments := strings.Split(key, "/")
		for i, s := range segments {
			segments[i] = url.PathEscape(s)
		}
		return strings.TrimRight(c.conf.PublicBaseURL, "/") + "/" + strings.Join(segments, "/"), nil
	}

	u, err := c.client.PresignedGetObject(ctx, c.conf.BucketName, key, c.conf.PresignTTL, url.Values{})
	if err != nil {
		return "", domain.Wrap(domain.ErrStorageFailure, "presign object url", err)
	}
	return u.String(), nil
}

type object struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (o *object) Close() error {
	err := o.ReadCloser.Close()
	o.cancel()
	return err
}

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"portfoliocv/internal/domain"
)

// Client предоставляет методы для работы с S3-совместимым хранилищем
type Client struct {
	client  *s3.Client
	presign *s3.PresignClient
	conf    Config
}

// NewClient создает новый экземпляр клиента S3
func NewClient(conf Config) (*Client, error) {
	if err := conf.validate(); err != nil {
		return nil, err
	}

	creds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
		conf.AccessKeyID,
		conf.SecretAccessKey,
		"",
	))

	client := s3.New(s3.Options{
		BaseEndpoint:     aws.String(conf.Endpoint),
		Region:           conf.Region,
		Credentials:      creds,
		RetryMode:        aws.RetryModeAdaptive,
		RetryMaxAttempts: 3,
		UsePathStyle:     conf.UsePathStyle,
	})

	return &Client{
		client:  client,
		presign: s3.NewPresignClient(client),
		conf:    conf,
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.conf.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.conf.Timeout)
}

// Ping проверяет доступ к бакету
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.conf.Bucket),
	})
	if err != nil {
		return domain.Wrap(domain.ErrStorageFailure, fmt.Sprintf("head bucket %s", c.conf.Bucket), err)
	}
	return nil
}

// Put загружает байты в S3
func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.conf.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return domain.Wrap(domain.ErrStorageFailure, "put object", err)
	}
	return nil
}

// Get получает объект из S3. Тело нужно закрыть.
func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, cancel := c.withTimeout(ctx)

	result, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.conf.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		cancel()
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s: %w", key, domain.ErrNotFound)
		}
		return nil, domain.Wrap(domain.ErrStorageFailure, "get object", err)
	}

	return &object{ReadCloser: result.Body, cancel: cancel}, nil
}

// Delete удаляет объект из S3. Удаление отсутствующего ключа ошибкой не является.
func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.conf.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil
		}
		return domain.Wrap(domain.ErrStorageFailure, "delete object", err)
	}
	return nil
}

// ResolveURL возвращает ссылку на объект: публичную, если задан PublicBaseURL,
// иначе подписанную
func (c *Client) ResolveURL(ctx context.Context, key string) (string, error) {
	if c.conf.PublicBaseURL != "" {
		return objectURL(c.conf.PublicBaseURL, key), nil
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.conf.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.conf.PresignTTL))
	if err != nil {
		return "", domain.Wrap(domain.ErrStorageFailure, "presign object url", err)
	}
	return req.URL, nil
}

package s3

import (
	"fmt"
	"time"
)

const defaultEndpoint = "https://storage.yandexcloud.net"

type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicBaseURL - адрес публичного доступа к бакету (CDN). Если пуст,
	// ссылки на объекты подписываются на PresignTTL.
	PublicBaseURL string
	PresignTTL    time.Duration
	Timeout       time.Duration
	UsePathStyle  bool
}

func (c *Config) validate() error {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" || c.Bucket == "" {
		return fmt.Errorf("missing required configuration: accessKeyID, secretAccessKey, and bucket are required")
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.Region == "" {
		c.Region = "ru-central1"
	}
	if c.PresignTTL <= 0 {
		c.PresignTTL = 15 * time.Minute
	}
	return nil
}

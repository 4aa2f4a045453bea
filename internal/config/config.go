package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Storage  StorageConfig  `mapstructure:"Storage"`
	Auth     AuthConfig     `mapstructure:"Auth"`
	CV       CVConfig       `mapstructure:"CV"`
}

type ServerConfig struct {
	Port               string   `mapstructure:"Port"`
	GRPCPort           string   `mapstructure:"GRPCPort"`
	Debug              bool     `mapstructure:"Debug"`
	AllowedOrigins     []string `mapstructure:"AllowedOrigins"`
	PublicDownloadMode string   `mapstructure:"PublicDownloadMode"` // redirect | proxy
}

type DatabaseConfig struct {
	Host      string        `mapstructure:"Host"`
	Port      string        `mapstructure:"Port"`
	User      string        `mapstructure:"User"`
	Password  string        `mapstructure:"Password"`
	Name      string        `mapstructure:"Name"`
	SSLMode   string        `mapstructure:"SSLMode"`
	Timeout   time.Duration `mapstructure:"Timeout"`
	TxTimeout time.Duration `mapstructure:"TxTimeout"` // вся транзакция версии, включая запись в хранилище
}

type StorageConfig struct {
	Driver          string        `mapstructure:"Driver"` // s3 | minio
	Endpoint        string        `mapstructure:"Endpoint"`
	Region          string        `mapstructure:"Region"`
	AccessKeyID     string        `mapstructure:"AccessKeyID"`
	SecretAccessKey string        `mapstructure:"SecretAccessKey"`
	Bucket          string        `mapstructure:"Bucket"`
	UseSSL          bool          `mapstructure:"UseSSL"`
	UsePathStyle    bool          `mapstructure:"UsePathStyle"`
	PublicBaseURL   string        `mapstructure:"PublicBaseURL"`
	PresignTTL      time.Duration `mapstructure:"PresignTTL"`
	Timeout         time.Duration `mapstructure:"Timeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"JWTSecret"`
}

type CVConfig struct {
	MaxUploadBytes    int64         `mapstructure:"MaxUploadBytes"`
	RecorderQueueSize int           `mapstructure:"RecorderQueueSize"`
	RecorderWorkers   int           `mapstructure:"RecorderWorkers"`
	RecordTimeout     time.Duration `mapstructure:"RecordTimeout"`
}

const (
	DownloadModeRedirect = "redirect"
	DownloadModeProxy    = "proxy"

	StorageDriverS3    = "s3"
	StorageDriverMinio = "minio"

	defaultTxTimeout     = time.Minute
	defaultRecordTimeout = 3 * time.Second
)

// Привязка переменных окружения к ключам конфигурации
var envBindings = map[string]string{
	"Server.Port":               "HTTP_PORT",
	"Server.GRPCPort":           "GRPC_PORT",
	"Server.Debug":              "DEBUG",
	"Server.PublicDownloadMode": "PUBLIC_DOWNLOAD_MODE",
	"Database.Host":             "DATABASE_HOST",
	"Database.Port":             "DATABASE_PORT",
	"Database.User":             "DATABASE_USER",
	"Database.Password":         "DATABASE_PASSWORD",
	"Database.Name":             "DATABASE_NAME",
	"Database.SSLMode":          "DATABASE_SSLMODE",
	"Database.Timeout":          "DATABASE_TIMEOUT",
	"Database.TxTimeout":        "DATABASE_TX_TIMEOUT",
	"Storage.Driver":            "STORAGE_DRIVER",
	"Storage.Endpoint":          "STORAGE_ENDPOINT",
	"Storage.Region":            "STORAGE_REGION",
	"Storage.AccessKeyID":       "STORAGE_ACCESS_KEY_ID",
	"Storage.SecretAccessKey":   "STORAGE_SECRET_ACCESS_KEY",
	"Storage.Bucket":            "STORAGE_BUCKET",
	"Storage.UseSSL":            "STORAGE_USE_SSL",
	"Storage.UsePathStyle":      "STORAGE_USE_PATH_STYLE",
	"Storage.PublicBaseURL":     "STORAGE_PUBLIC_BASE_URL",
	"Storage.PresignTTL":        "STORAGE_PRESIGN_TTL",
	"Storage.Timeout":           "STORAGE_TIMEOUT",
	"Auth.JWTSecret":            "JWT_SECRET",
	"CV.MaxUploadBytes":         "CV_MAX_UPLOAD_BYTES",
	"CV.RecorderQueueSize":      "CV_RECORDER_QUEUE_SIZE",
	"CV.RecorderWorkers":        "CV_RECORDER_WORKERS",
	"CV.RecordTimeout":          "CV_RECORD_TIMEOUT",
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	// Значения по умолчанию
	v.SetDefault("Server.Port", "2525")
	v.SetDefault("Server.GRPCPort", "50051")
	v.SetDefault("Server.AllowedOrigins", []string{"*"})
	v.SetDefault("Server.PublicDownloadMode", DownloadModeRedirect)
	v.SetDefault("Database.SSLMode", "disable")
	v.SetDefault("Database.Timeout", 5*time.Second)
	v.SetDefault("Database.TxTimeout", defaultTxTimeout)
	v.SetDefault("Storage.Driver", StorageDriverS3)
	v.SetDefault("Storage.Region", "ru-central1")
	v.SetDefault("Storage.PresignTTL", 15*time.Minute)
	v.SetDefault("Storage.Timeout", 30*time.Second)
	v.SetDefault("CV.MaxUploadBytes", 10*1024*1024)
	v.SetDefault("CV.RecorderQueueSize", 1024)
	v.SetDefault("CV.RecorderWorkers", 2)
	v.SetDefault("CV.RecordTimeout", defaultRecordTimeout)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		// Читаем конфигурацию из файла
		if err := v.ReadInConfig(); err != nil {
			fmt.Printf("Warning: using only environment variables: %v\n", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет, что все необходимые поля заполнены
func (c *Config) Validate() error {
	if c.Database.Host == "" ||
		c.Database.Port == "" ||
		c.Database.User == "" ||
		c.Database.Password == "" ||
		c.Database.Name == "" {
		return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
			c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Driver != StorageDriverS3 && c.Storage.Driver != StorageDriverMinio {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" || c.Storage.Bucket == "" {
		return fmt.Errorf("missing required storage configuration: accessKeyID, secretAccessKey, and bucket are required")
	}
	if c.Storage.Driver == StorageDriverMinio && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage endpoint is required for the minio driver")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("Auth.JWTSecret is required")
	}

	c.Server.PublicDownloadMode = strings.ToLower(c.Server.PublicDownloadMode)
	if c.Server.PublicDownloadMode != DownloadModeRedirect && c.Server.PublicDownloadMode != DownloadModeProxy {
		return fmt.Errorf("unknown public download mode %q", c.Server.PublicDownloadMode)
	}

	if c.CV.MaxUploadBytes <= 0 {
		return fmt.Errorf("CV.MaxUploadBytes must be positive")
	}
	if c.CV.RecorderWorkers <= 0 {
		c.CV.RecorderWorkers = 1
	}
	if c.CV.RecorderQueueSize <= 0 {
		c.CV.RecorderQueueSize = 1
	}
	if c.CV.RecordTimeout <= 0 {
		c.CV.RecordTimeout = defaultRecordTimeout
	}
	if c.Database.TxTimeout <= 0 {
		c.Database.TxTimeout = defaultTxTimeout
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// GetURL возвращает строку подключения в формате URL, нужном для миграций
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

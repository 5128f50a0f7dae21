package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Storage backends selectable through STORAGE_BACKEND.
const (
	StorageMinIO      = "minio"
	StorageS3         = "s3"
	StorageAzure      = "azure"
	StorageFilesystem = "filesystem"
)

// Record stores selectable through RECORD_STORE.
const (
	RecordStorePostgres = "postgres"
	RecordStoreMemory   = "memory"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Config holds settings for the AWS S3 backend. Endpoint is optional and
// only needed for S3-compatible services other than AWS itself.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// AzureConfig holds settings for the Azure Blob Storage backend.
type AzureConfig struct {
	ConnectionString string
	Container        string
}

// FilesystemConfig holds settings for the local filesystem backend.
type FilesystemConfig struct {
	Root string
}

// StorageConfig selects the content store strategy. Only the section
// matching Backend is used.
type StorageConfig struct {
	Backend    string
	MinIO      MinIOConfig
	S3         S3Config
	Azure      AzureConfig
	Filesystem FilesystemConfig
}

// AuthConfig configures bearer token verification. When OIDCIssuerURL is set
// tokens are verified against the issuer's keys, otherwise JWTSecret is used.
type AuthConfig struct {
	JWTSecret        string
	JWTAllowedIssuer string
	OIDCIssuerURL    string
	OIDCClientID     string
}

// NATSConfig configures document event publishing. An empty URL disables it.
type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

// PaginationConfig holds cursor pagination limits.
type PaginationConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	LogLevel       string
	Location       string
	RecordStore    string
	MaxUploadBytes int
	CORSOrigins    []string
	Database       DatabaseConfig
	Storage        StorageConfig
	Auth           AuthConfig
	NATS           NATSConfig
	Pagination     PaginationConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Location:       getEnv("TZ_LOCATION", "UTC"),
		RecordStore:    getEnv("RECORD_STORE", RecordStorePostgres),
		MaxUploadBytes: getEnvInt("MAX_UPLOAD_BYTES", 50<<20),
		CORSOrigins:    getEnvList("CORS_ORIGIN_WHITELIST"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageMinIO)),
			MinIO: MinIOConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", ""),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", ""),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			S3: S3Config{
				Bucket:       getEnv("S3_BUCKET", ""),
				Region:       getEnv("S3_REGION", "us-east-1"),
				Endpoint:     getEnv("S3_ENDPOINT", ""),
				AccessKey:    getEnv("S3_ACCESS_KEY", ""),
				SecretKey:    getEnv("S3_SECRET_KEY", ""),
				UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", false),
			},
			Azure: AzureConfig{
				ConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", ""),
				Container:        getEnv("AZURE_STORAGE_CONTAINER", "documents"),
			},
			Filesystem: FilesystemConfig{
				Root: getEnv("FILESYSTEM_ROOT", "./data"),
			},
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", ""),
			JWTAllowedIssuer: getEnv("JWT_ALLOWED_ISSUER", ""),
			OIDCIssuerURL:    getEnv("OIDC_ISSUER_URL", ""),
			OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			Stream:        getEnv("NATS_STREAM", "document-events"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "documents"),
		},
		Pagination: PaginationConfig{
			DefaultPageSize: getEnvInt("PAGE_SIZE_DEFAULT", 30),
			MaxPageSize:     getEnvInt("PAGE_SIZE_MAX", 100),
		},
	}
}

// Validate reports every setting that the selected strategies require but
// that is missing. It does not check connectivity.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.RecordStore {
	case RecordStorePostgres:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("DB_HOST, DB_USER and DB_NAME are required for the postgres record store"))
		}
	case RecordStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown RECORD_STORE %q", c.RecordStore))
	}

	switch c.Storage.Backend {
	case StorageMinIO:
		m := c.Storage.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_BUCKET are required"))
		}
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required"))
		}
	case StorageAzure:
		if c.Storage.Azure.ConnectionString == "" || c.Storage.Azure.Container == "" {
			errs = append(errs, errors.New("AZURE_STORAGE_CONNECTION_STRING and AZURE_STORAGE_CONTAINER are required"))
		}
	case StorageFilesystem:
		if c.Storage.Filesystem.Root == "" {
			errs = append(errs, errors.New("FILESYSTEM_ROOT is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	if c.Auth.OIDCIssuerURL == "" && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("either OIDC_ISSUER_URL or JWT_SECRET is required"))
	}

	if c.Pagination.DefaultPageSize < 1 || c.Pagination.MaxPageSize < c.Pagination.DefaultPageSize {
		errs = append(errs, errors.New("PAGE_SIZE_DEFAULT must be positive and not exceed PAGE_SIZE_MAX"))
	}

	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma separated variable, dropping blank entries.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

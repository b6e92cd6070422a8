package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"document-service/internal/blobstore"
	"document-service/pkg/database/postgres"
	"document-service/pkg/database/redis"
)

type HTTPConfig struct {
	Port string `env:"HTTP_PORT" env-default:"8080"`
	// PublicBaseURL is what the external editor uses to reach this service
	// for the save callback.
	PublicBaseURL   string `env:"PUBLIC_BASE_URL" env-default:"http://localhost:8080"`
	EditorJWTSecret string `env:"EDITOR_JWT_SECRET" env-default:""`
}

type StorageConfig struct {
	// Backend selects the blob store implementation: "minio" or "disk".
	Backend  string `env:"STORAGE_BACKEND" env-default:"minio"`
	DiskRoot string `env:"STORAGE_DISK_ROOT" env-default:"./uploads"`
}

type Config struct {
	HTTP        HTTPConfig
	Storage     StorageConfig
	Postgres    postgres.Config
	Redis       redis.Config
	MinIO       blobstore.MinioConfig
	SnapshotTTL time.Duration `env:"SNAPSHOT_TTL" env-default:"24h"`
}

// Load reads ./.env when present and falls back to process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(".env", &cfg); err != nil {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("cannot read config: %w", err)
		}
	}
	return &cfg, nil
}

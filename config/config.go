// Package config loads engine configuration from flags, environment
// variables, and an optional .env file, in the style of the teacher's
// gateway config package (flag.String + os.Getenv overrides + godotenv).
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is CEX's process-level configuration: where the engine root lives,
// which metadata and storage backends to use, and whether to expose a live
// run observer.
type Config struct {
	RootPath string
	Meta     MetaConfig
	Storage  StorageConfig
	Notify   NotifyConfig
}

// MetaConfig selects and configures the metadata backend.
type MetaConfig struct {
	Backend  string // "file" (default) or "postgres"
	PostgresDSN string
}

// StorageConfig selects and configures the optional artifact mirror.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// CanUseS3 reports whether enough S3 configuration is present to build an
// S3Store, mirroring the teacher's ArtifactConfig.CanUseS3.
func (c StorageConfig) CanUseS3() bool {
	if !c.Enabled {
		return false
	}
	return strings.TrimSpace(c.Endpoint) != "" &&
		strings.TrimSpace(c.AccessKey) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// NotifyConfig controls the optional websocket run observer.
type NotifyConfig struct {
	Enabled bool
	Addr    string
}

// Load reads configuration from flags, then lets environment variables
// (and an optional .env file loaded first) override flag defaults, the
// same precedence the teacher's gateway config uses.
func Load() (*Config, error) {
	_ = godotenv.Load()

	root := flag.String("root", ".", "engine root path")
	notifyAddr := flag.String("notify-addr", ":8090", "run observer websocket address")
	flag.Parse()

	if v := strings.TrimSpace(os.Getenv("CEX_ROOT")); v != "" {
		*root = v
	}
	if v := strings.TrimSpace(os.Getenv("CEX_NOTIFY_ADDR")); v != "" {
		*notifyAddr = v
	}

	return &Config{
		RootPath: *root,
		Meta:     loadMetaConfig(),
		Storage:  loadStorageConfig(),
		Notify: NotifyConfig{
			Enabled: parseBool(os.Getenv("CEX_NOTIFY_ENABLED"), false),
			Addr:    *notifyAddr,
		},
	}, nil
}

func loadMetaConfig() MetaConfig {
	backend := firstNonEmpty(strings.TrimSpace(os.Getenv("CEX_META_BACKEND")), "file")
	return MetaConfig{
		Backend:     backend,
		PostgresDSN: strings.TrimSpace(os.Getenv("CEX_META_POSTGRES_DSN")),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Enabled:   parseBool(os.Getenv("CEX_MIRROR_ENABLED"), false),
		Endpoint:  strings.TrimSpace(os.Getenv("CEX_MIRROR_S3_ENDPOINT")),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("CEX_MIRROR_S3_REGION")), "us-east-1"),
		AccessKey: strings.TrimSpace(os.Getenv("CEX_MIRROR_S3_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("CEX_MIRROR_S3_SECRET_KEY")),
		Bucket:    strings.TrimSpace(os.Getenv("CEX_MIRROR_S3_BUCKET")),
		UseSSL:    parseBool(os.Getenv("CEX_MIRROR_S3_USE_SSL"), false),
	}
}

func parseBool(raw string, fallback bool) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Package config reads server settings from the environment and an optional
// .env file. Command-line flags override these values in main.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Media backends.
const (
	MediaSQLite = "sqlite"
	MediaGCS    = "gcs"
)

// Config holds every setting the server needs.
type Config struct {
	DBPath    string
	Addr      string
	AdminUser string
	LogPath   string

	// UsageDeductsStock makes approved usage claims also leave central stock.
	UsageDeductsStock bool
	TokenTTL          time.Duration

	Media          string
	GCSBucket      string
	GCSPrefix      string
	GCSCredentials string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:    "fieldstock.sqlite3",
		Addr:      ":8080",
		AdminUser: "Admin",
		Media:     MediaSQLite,
		GCSPrefix: "photos",
	}
}

// Load reads envFile (skipped if it does not exist) into the process
// environment without overriding variables already set, then builds the
// config from the environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a config from FIELDSTOCK_* variables on top of Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("FIELDSTOCK_DB", &c.DBPath)
	str("FIELDSTOCK_ADDR", &c.Addr)
	str("FIELDSTOCK_ADMIN_USER", &c.AdminUser)
	str("FIELDSTOCK_LOG", &c.LogPath)
	str("FIELDSTOCK_MEDIA", &c.Media)
	str("FIELDSTOCK_GCS_BUCKET", &c.GCSBucket)
	str("FIELDSTOCK_GCS_PREFIX", &c.GCSPrefix)
	str("FIELDSTOCK_REDIS_ADDR", &c.RedisAddr)
	str("FIELDSTOCK_REDIS_PASSWORD", &c.RedisPassword)

	// Same variable the GCS client tooling uses for inline credentials.
	str("GCS_CREDENTIALS_JSON", &c.GCSCredentials)

	if v, ok := lookup("FIELDSTOCK_USAGE_DEDUCTS_STOCK"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("FIELDSTOCK_USAGE_DEDUCTS_STOCK: %w", err)
		}
		c.UsageDeductsStock = b
	}

	if v, ok := lookup("FIELDSTOCK_REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("FIELDSTOCK_REDIS_DB: %w", err)
		}
		c.RedisDB = n
	}

	if v, ok := lookup("FIELDSTOCK_TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("FIELDSTOCK_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}

	return c, nil
}

// Validate checks settings that depend on each other.
func (c Config) Validate() error {
	switch c.Media {
	case MediaSQLite:
	case MediaGCS:
		if c.GCSBucket == "" {
			return errors.New("gcs media backend needs FIELDSTOCK_GCS_BUCKET")
		}
	default:
		return fmt.Errorf("unknown media backend %q (want %s or %s)", c.Media, MediaSQLite, MediaGCS)
	}
	if c.TokenTTL < 0 {
		return errors.New("token ttl must not be negative")
	}
	return nil
}

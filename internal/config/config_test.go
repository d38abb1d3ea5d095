package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.False(t, c.UsageDeductsStock)
	assert.NoError(t, c.Validate())
}

func TestFromEnv(t *testing.T) {
	c, err := FromEnv(env(map[string]string{
		"FIELDSTOCK_DB":                  "/var/lib/fieldstock/db.sqlite3",
		"FIELDSTOCK_ADDR":                " :9000 ",
		"FIELDSTOCK_USAGE_DEDUCTS_STOCK": "true",
		"FIELDSTOCK_MEDIA":               "gcs",
		"FIELDSTOCK_GCS_BUCKET":          "evidence",
		"FIELDSTOCK_REDIS_ADDR":          "localhost:6379",
		"FIELDSTOCK_REDIS_DB":            "2",
		"FIELDSTOCK_TOKEN_TTL":           "12h",
	}))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/fieldstock/db.sqlite3", c.DBPath)
	assert.Equal(t, ":9000", c.Addr)
	assert.True(t, c.UsageDeductsStock)
	assert.Equal(t, MediaGCS, c.Media)
	assert.Equal(t, "evidence", c.GCSBucket)
	assert.Equal(t, 2, c.RedisDB)
	assert.Equal(t, 12*time.Hour, c.TokenTTL)
	assert.NoError(t, c.Validate())
}

func TestFromEnvInvalid(t *testing.T) {
	for key, value := range map[string]string{
		"FIELDSTOCK_USAGE_DEDUCTS_STOCK": "sometimes",
		"FIELDSTOCK_REDIS_DB":            "zero",
		"FIELDSTOCK_TOKEN_TTL":           "a week",
	} {
		_, err := FromEnv(env(map[string]string{key: value}))
		assert.Error(t, err, key)
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Media = MediaGCS
	assert.Error(t, c.Validate(), "gcs without bucket")

	c.Media = "s3"
	assert.Error(t, c.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FIELDSTOCK_ADMIN_USER=boss\nFIELDSTOCK_ADDR=:7000\n"), 0o600))

	// Variables already in the environment win over the file.
	t.Setenv("FIELDSTOCK_ADDR", ":7001")
	t.Setenv("FIELDSTOCK_ADMIN_USER", "")
	os.Unsetenv("FIELDSTOCK_ADMIN_USER")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "boss", c.AdminUser)
	assert.Equal(t, ":7001", c.Addr)
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

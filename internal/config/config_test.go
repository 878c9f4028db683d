package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "proofs", cfg.Storage.ProofFolder)
	assert.Equal(t, int64(5048*1024), cfg.Storage.MaxUpload)
	assert.Equal(t, []string{"jpeg", "png", "jpg", "pdf"}, cfg.Storage.AllowedExts)
	assert.Equal(t, "/storage", cfg.Storage.PublicURL)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
	assert.Equal(t, []string{"orders.events", "chat.messages"}, cfg.Messaging.Kafka.Topics())
}

func TestNewDisabledBackendsFallBackToNoop(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("MESSAGING_ENABLED", "false")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
}

func TestNewNormalizesStorage(t *testing.T) {
	t.Setenv("STORAGE_PROOF_FOLDER", "/uploads/proofs/")
	t.Setenv("STORAGE_PUBLIC_URL", "files/")
	t.Setenv("STORAGE_PROOF_EXTENSIONS", ".PDF, png ,")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "uploads/proofs", cfg.Storage.ProofFolder)
	assert.Equal(t, "/files", cfg.Storage.PublicURL)
	assert.Equal(t, []string{"pdf", "png"}, cfg.Storage.AllowedExts)
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"bad port":           {"HTTP_PORT": "0"},
		"bad timezone":       {"APP_TIMEZONE": "Mars/Olympus"},
		"half admin auth":    {"ADMIN_USERNAME": "admin"},
		"bad cache driver":   {"CACHE_DRIVER": "memcached"},
		"bad broadcast":      {"BROADCAST_DRIVER": "pusher"},
		"missing chat topic": {"KAFKA_CHAT_TOPIC": ""},
		"bad upload limit":   {"STORAGE_MAX_UPLOAD_KB": "-1"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := New()
			assert.Error(t, err)
		})
	}
}

func TestTimezoneIsResolved(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Asia/Jakarta")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", cfg.App.Location.String())
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"rfpmanager/internal/config"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	require.Equal(t, 30*24*time.Hour, cfg.JWTTTL)
	require.Equal(t, 5*time.Minute, cfg.Email.ProcessInterval)
	require.Equal(t, 50, cfg.Email.MaxPerCheck)
	require.Equal(t, 5*time.Second, cfg.Email.ReconnectDelay)
	require.True(t, cfg.Email.IMAPSecure)
	require.Equal(t, "gpt-3.5-turbo", cfg.AI.Model)
	require.Equal(t, 30*time.Second, cfg.AI.Timeout)
	require.False(t, cfg.Email.IMAPEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://rfp@localhost/rfp")
	t.Setenv("EMAIL_PROCESS_INTERVAL", "90s")
	t.Setenv("EMAIL_MAX_PER_CHECK", "10")
	t.Setenv("EMAIL_IMAP_SECURE", "false")
	t.Setenv("EMAIL_USER", "rfp@example.com")
	t.Setenv("EMAIL_PASSWORD", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:3001,https://rfp.example.com")

	cfg, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, "postgres://rfp@localhost/rfp", cfg.PostgresConn)
	require.Equal(t, 90*time.Second, cfg.Email.ProcessInterval)
	require.Equal(t, 10, cfg.Email.MaxPerCheck)
	require.False(t, cfg.Email.IMAPSecure)
	require.True(t, cfg.Email.IMAPEnabled())
	require.Equal(t, "imap.gmail.com:993", cfg.Email.IMAPAddr())
	require.Equal(t, []string{"http://localhost:3001", "https://rfp.example.com"}, cfg.CORSOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromAppEnvFile(t *testing.T) {
	dir := t.TempDir()
	content := "SERVER_ADDRESS=127.0.0.1:9000\nAPP_URL=https://rfp.example.com\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.env"), []byte(content), 0o600))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ServerAddress)
	require.Equal(t, "https://rfp.example.com", cfg.AppURL)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.PostgresConn = ""
	require.Error(t, cfg.Validate())

	cfg.PostgresConn = "postgres://localhost/rfp"
	require.NoError(t, cfg.Validate())

	cfg.AppEnv = "production"
	require.Error(t, cfg.Validate(), "default secret is rejected in production")

	cfg.JWTSecret = "a-real-secret"
	require.NoError(t, cfg.Validate())
}

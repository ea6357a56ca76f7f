package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	cwd, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmp))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
	return tmp
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 14, cfg.Loan.DefaultDays)
	assert.Equal(t, 72*time.Hour, cfg.Loan.ActionTokenTTL)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Empty(t, cfg.Vision.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LOAN_DEFAULT_DAYS", "21")
	t.Setenv("VISION_API_KEY", "vision-key")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RECOGNIZE_WINDOW", "15m")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 21, cfg.Loan.DefaultDays)
	assert.Equal(t, "vision-key", cfg.Vision.APIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.RecognizeWindow)
}

func TestLoad_FileThenEnv(t *testing.T) {
	tmp := chdirTemp(t)
	path := filepath.Join(tmp, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loan:\n  default_days: 10\nemail:\n  from: books@example.com\n"), 0o644))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOAN_DEFAULT_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Loan.DefaultDays)
	assert.Equal(t, "books@example.com", cfg.Email.From)
}

func TestLoad_RejectsNonPositiveLoanDays(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LOAN_DEFAULT_DAYS", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "LOAN_DEFAULT_DAYS")
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	tmp := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("DB_DSN=from_file\n"), 0o644))
	t.Setenv("DB_DSN", "from_env")

	LoadEnvFiles()

	assert.Equal(t, "from_env", os.Getenv("DB_DSN"))
}

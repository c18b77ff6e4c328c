package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sllt/squery/pkg/squery/logging"
)

func writeEnv(t *testing.T, dir, name, content string) {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestNewEnvFile_LoadsDefaultAndOverride(t *testing.T) {
	dir := t.TempDir()
	writeEnv(t, dir, ".env", "SQUERY_TEST_A=base\nSQUERY_TEST_B=base\n")
	writeEnv(t, dir, ".local.env", "SQUERY_TEST_B=local\n")

	t.Cleanup(func() {
		os.Unsetenv("SQUERY_TEST_A")
		os.Unsetenv("SQUERY_TEST_B")
	})

	cfg := NewEnvFile(dir, logging.NewFileLogger(""))

	assert.Equal(t, "base", cfg.Get("SQUERY_TEST_A"))
	assert.Equal(t, "local", cfg.Get("SQUERY_TEST_B"))
}

func TestNewEnvFile_AppEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeEnv(t, dir, ".env", "SQUERY_TEST_C=base\n")
	writeEnv(t, dir, ".stage.env", "SQUERY_TEST_C=stage\n")

	t.Setenv("APP_ENV", "stage")
	t.Cleanup(func() { os.Unsetenv("SQUERY_TEST_C") })

	cfg := NewEnvFile(dir, logging.NewFileLogger(""))

	assert.Equal(t, "stage", cfg.Get("SQUERY_TEST_C"))
}

func TestNewEnvFile_ProcessEnvWins(t *testing.T) {
	dir := t.TempDir()
	writeEnv(t, dir, ".local.env", "SQUERY_TEST_D=file\n")

	t.Setenv("SQUERY_TEST_D", "process")

	cfg := NewEnvFile(dir, logging.NewFileLogger(""))

	assert.Equal(t, "process", cfg.Get("SQUERY_TEST_D"))
}

func TestEnvLoader_GetOrDefault(t *testing.T) {
	cfg := &EnvLoader{}

	t.Setenv("SQUERY_TEST_E", "")

	assert.Equal(t, "fallback", cfg.GetOrDefault("SQUERY_TEST_E", "fallback"))
	assert.Equal(t, "fallback", cfg.GetOrDefault("SQUERY_TEST_MISSING", "fallback"))

	t.Setenv("SQUERY_TEST_E", "set")
	assert.Equal(t, "set", cfg.GetOrDefault("SQUERY_TEST_E", "fallback"))
}

func TestMockConfig(t *testing.T) {
	cfg := NewMockConfig(map[string]string{"A": "1", "B": ""})

	assert.Equal(t, "1", cfg.Get("A"))
	assert.Equal(t, "2", cfg.GetOrDefault("B", "2"))
	assert.Equal(t, "3", cfg.GetOrDefault("C", "3"))
}

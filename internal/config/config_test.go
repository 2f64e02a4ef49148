package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfhyp3/hyp3-go/internal/config"
)

// setEnv is a helper that sets environment variables for a test and restores them after.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
}

// validEnv returns the minimum set of valid environment variables.
func validEnv() map[string]string {
	return map[string]string{
		"EARTHDATA_TOKEN": "edl-test-token",
		// make sure ambient credentials never leak into a test
		"EARTHDATA_USERNAME":  "",
		"EARTHDATA_PASSWORD":  "",
		"HYP3_API_URL":        "",
		"HYP3_TIMEOUT":        "",
		"HYP3_WATCH_TIMEOUT":  "",
		"HYP3_WATCH_INTERVAL": "",
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	setEnv(t, validEnv())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://hyp3-api.asf.alaska.edu", cfg.API.URL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "edl-test-token", cfg.Auth.Token)
	assert.Equal(t, 3*time.Hour, cfg.Watch.Timeout)
	assert.Equal(t, time.Minute, cfg.Watch.Interval)
}

func TestLoad_CustomAPIURL(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("HYP3_API_URL", "https://hyp3-test-api.asf.alaska.edu")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://hyp3-test-api.asf.alaska.edu", cfg.API.URL)
}

func TestLoad_APIURLMustStartWithHTTP(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("HYP3_API_URL", "ftp://hyp3.example.com")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HYP3_API_URL")
}

func TestLoad_UsernamePassword(t *testing.T) {
	env := validEnv()
	env["EARTHDATA_TOKEN"] = ""
	env["EARTHDATA_USERNAME"] = "someone"
	env["EARTHDATA_PASSWORD"] = "hunter2"
	setEnv(t, env)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Auth.Token)
	assert.Equal(t, "someone", cfg.Auth.Username)
	assert.Equal(t, "hunter2", cfg.Auth.Password)
}

func TestLoad_MissingCredentials(t *testing.T) {
	env := validEnv()
	env["EARTHDATA_TOKEN"] = ""
	setEnv(t, env)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EARTHDATA_TOKEN")
}

func TestLoad_UsernameWithoutPassword(t *testing.T) {
	env := validEnv()
	env["EARTHDATA_TOKEN"] = ""
	env["EARTHDATA_USERNAME"] = "someone"
	setEnv(t, env)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EARTHDATA_PASSWORD")
}

func TestLoad_CustomTimeouts(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("HYP3_TIMEOUT", "90s")
	t.Setenv("HYP3_WATCH_TIMEOUT", "1h")
	t.Setenv("HYP3_WATCH_INTERVAL", "30s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Hour, cfg.Watch.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Watch.Interval)
}

func TestLoad_UnparseableDurationFallsBack(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("HYP3_TIMEOUT", "not-a-duration")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
}

func TestLoad_WatchTimeoutShorterThanInterval(t *testing.T) {
	setEnv(t, validEnv())
	t.Setenv("HYP3_WATCH_TIMEOUT", "10s")
	t.Setenv("HYP3_WATCH_INTERVAL", "1m")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HYP3_WATCH_TIMEOUT")
}

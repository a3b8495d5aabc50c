package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, ".", cfg.StaticDir)
	require.Equal(t, "https://openrouter.ai/api/v1", cfg.BaseURL)
	require.Equal(t, "mistralai/mistral-small-3.1-24b-instruct:free", cfg.Model)
	require.Equal(t, "https://erkin.me", cfg.SiteURL)
	require.Equal(t, "Erkin's Personal Website", cfg.SiteTitle)
	require.Equal(t, "Erkin Ovlyagulyyev", cfg.OwnerName)
	require.Equal(t, "Flutter Developer", cfg.OwnerTitle)
	require.Equal(t, 4000, cfg.MaxPromptLength)
	require.Equal(t, 20, cfg.MaxHistoryItems)
	require.Equal(t, 30*time.Second, cfg.Timeout)
	require.Empty(t, cfg.APIKey)
	require.Empty(t, cfg.AuditTable)
	require.False(t, cfg.RenderMarkdown)
	require.Equal(t, ":3000", cfg.Addr())
	require.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"PORT":               "8080",
		"OPENROUTER_API_KEY": "sk-test",
		"OPENROUTER_MODEL":   "openai/gpt-4o-mini",
		"UPSTREAM_TIMEOUT":   "5s",
		"MAX_HISTORY_ITEMS":  "0",
		"AUDIT_TABLE":        "site-assistant-audit",
		"LOG_LEVEL":          "DEBUG",
		"RENDER_MARKDOWN":    "true",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr())
	require.Equal(t, "sk-test", cfg.APIKey)
	require.Equal(t, "openai/gpt-4o-mini", cfg.Model)
	require.Equal(t, 5*time.Second, cfg.Timeout)
	require.Zero(t, cfg.MaxHistoryItems)
	require.Equal(t, "site-assistant-audit", cfg.AuditTable)
	require.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	require.True(t, cfg.RenderMarkdown)
}

func TestFromMap_Invalid(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"port not a number", map[string]string{"PORT": "abc"}, "parse environment"},
		{"port out of range", map[string]string{"PORT": "70000"}, "PORT out of range"},
		{"blank model", map[string]string{"OPENROUTER_MODEL": " "}, "OPENROUTER_MODEL"},
		{"non-positive prompt cap", map[string]string{"MAX_PROMPT_LENGTH": "0"}, "MAX_PROMPT_LENGTH"},
		{"bad timeout", map[string]string{"UPSTREAM_TIMEOUT": "soon"}, "parse environment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromMap(tc.vars)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestUsesParamStore(t *testing.T) {
	require.False(t, Config{}.UsesParamStore())
	require.True(t, Config{ParamPrefix: "/site-assistant"}.UsesParamStore())
	require.False(t, Config{APIKey: "sk", ParamPrefix: "/site-assistant"}.UsesParamStore())
}

func TestSlogLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, Config{LogLevel: "warning"}.SlogLevel())
	require.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
	require.Equal(t, slog.LevelInfo, Config{LogLevel: "verbose"}.SlogLevel())
}

func TestLoad_ReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SITE_ASSISTANT_TEST_ONLY=1\nOPENROUTER_MODEL=from-file\nOWNER_TITLE=Go Developer\n"), 0o600))

	t.Setenv("OPENROUTER_MODEL", "from-env")
	t.Setenv("OWNER_TITLE", "")
	require.NoError(t, os.Unsetenv("OWNER_TITLE"))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Model)
	require.Equal(t, "Go Developer", cfg.OwnerTitle)
	require.NoError(t, os.Unsetenv("SITE_ASSISTANT_TEST_ONLY"))
}

func TestLoad_MissingDotEnvIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

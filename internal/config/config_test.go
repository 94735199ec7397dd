package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/unai/internal/errs"
)

func TestFormatText(t *testing.T) {
	t.Run("old format text", func(t *testing.T) {
		var cfg Config
		require.NoError(t, yaml.Unmarshal([]byte("format-text: as markdown"), &cfg))
		require.Equal(t, FormatText(map[string]string{"markdown": "as markdown"}), cfg.FormatText)
	})

	t.Run("new format text", func(t *testing.T) {
		var cfg Config
		require.NoError(t, yaml.Unmarshal([]byte("format-text:\n  markdown: as markdown\n  json: as json"), &cfg))
		require.Equal(t, FormatText(map[string]string{"markdown": "as markdown", "json": "as json"}), cfg.FormatText)
	})
}

func TestLoad(t *testing.T) {
	t.Run("creates the settings file from the template", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unai", "unai.yml")
		cfg, err := Load(path)
		require.NoError(t, err)
		require.FileExists(t, path)

		require.Equal(t, "openai", cfg.API)
		require.Equal(t, "gpt-4o-mini", cfg.Model)
		require.True(t, cfg.Stream)
		require.Equal(t, 10, cfg.MaxIterations)
		require.Equal(t, 15*time.Second, cfg.MCPTimeout)
		require.InDelta(t, -1.0, cfg.Temperature, 0.0001)
		require.Equal(t, "warn", cfg.LogLevel)
		require.Equal(t, filepath.Join(filepath.Dir(path), "history"), cfg.CachePath)
		require.DirExists(t, filepath.Join(cfg.CachePath, "conversations"))

		require.NotEmpty(t, cfg.APIs)
		require.Equal(t, "openai", cfg.APIs[0].Name)
		require.Equal(t, "OPENAI_API_KEY", cfg.APIs[0].APIKeyEnv)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("UNAI_MODEL", "sonnet")
		t.Setenv("UNAI_MAX_ITERATIONS", "3")
		t.Setenv("UNAI_MCP_DISABLE", "a,b")
		t.Setenv("UNAI_REQUEST_TIMEOUT", "2s")

		cfg, err := Load(filepath.Join(t.TempDir(), "unai.yml"))
		require.NoError(t, err)
		require.Equal(t, "sonnet", cfg.Model)
		require.Equal(t, 3, cfg.MaxIterations)
		require.Equal(t, []string{"a", "b"}, cfg.MCPDisable)
		require.Equal(t, 2*time.Second, cfg.RequestTimeout)
	})

	t.Run("keeps existing settings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unai.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
default-api: local
default-model: tiny
tool-concurrency: 2
apis:
  local:
    base-url: http://localhost:8080/v1
    backend: openai
    headers:
      X-Team: infra
    models:
      tiny: {}
mcp-servers:
  fs:
    command: fs-server
    args: ["--root", "/tmp"]
`), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 2, cfg.ToolConcurrency)
		require.Equal(t, 10, cfg.MaxIterations)
		require.Len(t, cfg.APIs, 1)
		require.Equal(t, "openai", cfg.APIs[0].Backend)
		require.Equal(t, map[string]string{"X-Team": "infra"}, cfg.APIs[0].Headers)
		require.Equal(t, MCPServerConfig{Command: "fs-server", Args: []string{"--root", "/tmp"}}, cfg.MCPServers["fs"])
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "unai.yml")
		require.NoError(t, os.WriteFile(path, []byte("apis: [broken"), 0o600))
		_, err := Load(path)
		var uerr errs.Error
		require.ErrorAs(t, err, &uerr)
		require.Equal(t, "Could not parse settings file.", uerr.Reason)
	})
}

func TestResolveModel(t *testing.T) {
	apis := APIs{
		{Name: "openai", Models: map[string]Model{
			"gpt-4o": {Aliases: []string{"4o"}, MaxChars: 100},
		}},
		{Name: "anthropic", Models: map[string]Model{
			"claude-sonnet-4-5": {Aliases: []string{"sonnet"}, MaxTokens: 8192},
		}},
		{Name: "custom"},
	}

	tests := map[string]struct {
		api, model string
		wantAPI    string
		wantModel  string
		wantErr    string
	}{
		"model by name":                {model: "gpt-4o", wantAPI: "openai", wantModel: "gpt-4o"},
		"alias across apis":            {model: "sonnet", wantAPI: "anthropic", wantModel: "claude-sonnet-4-5"},
		"alias within api":             {api: "openai", model: "4o", wantAPI: "openai", wantModel: "gpt-4o"},
		"api without model list":       {api: "custom", model: "anything", wantAPI: "custom", wantModel: "anything"},
		"vendor missing from settings": {api: "groq", model: "llama", wantAPI: "groq", wantModel: "llama"},
		"unknown model in api":         {api: "openai", model: "nope", wantErr: "The API endpoint openai does not contain the model nope"},
		"unknown model anywhere":       {model: "nope", wantErr: "Model nope is not in the settings file."},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Config{Settings: Settings{API: tc.api, Model: tc.model, APIs: apis}}
			api, mod, err := cfg.ResolveModel()
			if tc.wantErr != "" {
				var uerr errs.Error
				require.ErrorAs(t, err, &uerr)
				require.Equal(t, tc.wantErr, uerr.Reason)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantAPI, api.Name)
			require.Equal(t, tc.wantModel, mod.Name)
			require.Equal(t, tc.wantAPI, mod.API)
		})
	}
}

func TestMergeRolesFromDir(t *testing.T) {
	t.Run("loads markdown and yaml role files", func(t *testing.T) {
		root := t.TempDir()
		rolesDir := filepath.Join(root, "roles")
		require.NoError(t, os.MkdirAll(rolesDir, 0o700))
		reviewer := filepath.Join(rolesDir, "reviewer.md")
		require.NoError(t, os.WriteFile(reviewer, []byte("be concise\nbe precise\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(rolesDir, "list.yml"), []byte("- one\n- two\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(rolesDir, "single.yaml"), []byte("just one\n"), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(rolesDir, "notes.txt"), []byte("skip"), 0o600))

		cfg := Config{Runtime: Runtime{SettingsPath: filepath.Join(root, "unai.yml")}}
		require.NoError(t, MergeRolesFromDir(&cfg))
		require.Equal(t, []string{"file://" + reviewer}, cfg.Roles["reviewer"])
		require.Equal(t, []string{"one", "two"}, cfg.Roles["list"])
		require.Equal(t, []string{"just one"}, cfg.Roles["single"])
		require.NotContains(t, cfg.Roles, "notes")
	})

	t.Run("config roles override directory roles", func(t *testing.T) {
		root := t.TempDir()
		rolesDir := filepath.Join(root, "roles")
		require.NoError(t, os.MkdirAll(rolesDir, 0o700))
		require.NoError(t, os.WriteFile(filepath.Join(rolesDir, "shell.md"), []byte("from dir\n"), 0o600))

		cfg := Config{
			Settings: Settings{Roles: map[string][]string{"shell": {"from config"}}},
			Runtime:  Runtime{SettingsPath: filepath.Join(root, "unai.yml")},
		}
		require.NoError(t, MergeRolesFromDir(&cfg))
		require.Equal(t, []string{"from config"}, cfg.Roles["shell"])
	})

	t.Run("nested roles use path-based names", func(t *testing.T) {
		root := t.TempDir()
		nested := filepath.Join(root, "roles", "philosophy", "greek")
		require.NoError(t, os.MkdirAll(nested, 0o700))
		stoic := filepath.Join(nested, "stoic.md")
		require.NoError(t, os.WriteFile(stoic, []byte("keep perspective\n"), 0o600))

		cfg := Config{Runtime: Runtime{SettingsPath: filepath.Join(root, "unai.yml")}}
		require.NoError(t, MergeRolesFromDir(&cfg))
		require.Equal(t, []string{"file://" + stoic}, cfg.Roles["philosophy/greek/stoic"])
	})

	t.Run("missing directory is fine", func(t *testing.T) {
		cfg := Config{Runtime: Runtime{SettingsPath: filepath.Join(t.TempDir(), "unai.yml")}}
		require.NoError(t, MergeRolesFromDir(&cfg))
		require.Nil(t, cfg.Roles)
	})
}

func TestEnvVars(t *testing.T) {
	vars, err := EnvVars()
	require.NoError(t, err)
	require.Equal(t, "UNAI_API", vars[0])
	require.Contains(t, vars, "UNAI_MAX_ITERATIONS")
	require.Contains(t, vars, "UNAI_MCP_TIMEOUT")
	require.NotContains(t, vars, "UNAI_APIS")
	for _, v := range vars {
		require.True(t, strings.HasPrefix(v, EnvPrefix), v)
	}
}

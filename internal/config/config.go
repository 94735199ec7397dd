package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	stdstrings "strings"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/unai/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

// EnvPrefix prefixes the environment variables that override settings.
const EnvPrefix = "UNAI_"

const (
	defaultMarkdownFormatText = "Format the response as markdown without enclosing backticks."
	defaultJSONFormatText     = "Format the response as json without enclosing backticks."
)

// Model represents the LLM model used in the API call.
type Model struct {
	Name           string
	API            string
	MaxChars       int64    `yaml:"max-input-chars"`
	MaxTokens      int64    `yaml:"max-tokens,omitempty"`
	Aliases        []string `yaml:"aliases"`
	Fallback       string   `yaml:"fallback"`
	ThinkingBudget int      `yaml:"thinking-budget,omitempty"`
}

// API represents an API endpoint and its models.
type API struct {
	Name      string
	APIKey    string            `yaml:"api-key"`
	APIKeyEnv string            `yaml:"api-key-env"`
	APIKeyCmd string            `yaml:"api-key-cmd"`
	BaseURL   string            `yaml:"base-url"`
	Backend   string            `yaml:"backend"`
	Headers   map[string]string `yaml:"headers"`
	Models    map[string]Model  `yaml:"models"`
	User      string            `yaml:"user"`
}

// APIs is a type alias to allow custom YAML decoding.
type APIs []API

// UnmarshalYAML implements sorted API YAML decoding.
func (apis *APIs) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i < len(node.Content); i += 2 {
		var api API
		if err := node.Content[i+1].Decode(&api); err != nil {
			return fmt.Errorf("error decoding YAML file: %s", err)
		}
		api.Name = node.Content[i].Value
		*apis = append(*apis, api)
	}
	return nil
}

// FormatText is a map[format]formatting_text.
type FormatText map[string]string

// UnmarshalYAML conforms with yaml.Unmarshaler.
func (ft *FormatText) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		var formats map[string]string
		if err := unmarshal(&formats); err != nil {
			return err
		}
		*ft = (FormatText)(formats)
		return nil
	}

	*ft = map[string]string{
		"markdown": text,
	}
	return nil
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	API             string              `yaml:"default-api" env:"API"`
	Model           string              `yaml:"default-model" env:"MODEL"`
	Format          bool                `yaml:"format" env:"FORMAT"`
	FormatText      FormatText          `yaml:"format-text"`
	FormatAs        string              `yaml:"format-as" env:"FORMAT_AS"`
	Raw             bool                `yaml:"raw" env:"RAW"`
	Quiet           bool                `yaml:"quiet" env:"QUIET"`
	Stream          bool                `yaml:"stream" env:"STREAM"`
	MaxTokens       int64               `yaml:"max-tokens" env:"MAX_TOKENS"`
	MaxInputChars   int64               `yaml:"max-input-chars" env:"MAX_INPUT_CHARS"`
	Temperature     float64             `yaml:"temp" env:"TEMP"`
	TopP            float64             `yaml:"topp" env:"TOPP"`
	TopK            int64               `yaml:"topk" env:"TOPK"`
	NoLimit         bool                `yaml:"no-limit" env:"NO_LIMIT"`
	MaxIterations   int                 `yaml:"max-iterations" env:"MAX_ITERATIONS"`
	ToolConcurrency int                 `yaml:"tool-concurrency" env:"TOOL_CONCURRENCY"`
	RequestTimeout  time.Duration       `yaml:"request-timeout" env:"REQUEST_TIMEOUT"`
	CachePath       string              `yaml:"cache-path" env:"CACHE_PATH"`
	NoCache         bool                `yaml:"no-cache" env:"NO_CACHE"`
	WordWrap        int                 `yaml:"word-wrap" env:"WORD_WRAP"`
	HTTPProxy       string              `yaml:"http-proxy" env:"HTTP_PROXY"`
	LogLevel        string              `yaml:"log-level" env:"LOG_LEVEL"`
	APIs            APIs                `yaml:"apis"`
	System          string              `yaml:"system" env:"SYSTEM"`
	Role            string              `yaml:"role" env:"ROLE"`
	Theme           string              `yaml:"theme" env:"THEME"`
	User            string              `yaml:"user" env:"USER_ID"`
	Roles           map[string][]string `yaml:"roles"`

	MCPServers      map[string]MCPServerConfig `yaml:"mcp-servers"`
	MCPDisable      []string                   `yaml:"mcp-disable" env:"MCP_DISABLE"`
	MCPTimeout      time.Duration              `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	MCPNoInheritEnv bool                       `yaml:"mcp-no-inherit-env" env:"MCP_NO_INHERIT_ENV"`
}

// Runtime holds CLI/runtime-only options that should not be loaded from the
// settings file.
type Runtime struct {
	ShowHelp          bool
	AskModel          bool
	IncludePrompt     int
	IncludePromptArgs bool
	Prefix            string
	Version           bool
	SettingsPath      string
	ContinueLast      bool
	Continue          string
	Title             string
	OpenEditor        bool
	Verbose           bool
	DisableTools      bool
}

// Config is the application configuration (settings + runtime-only options).
//
// Settings fields are promoted for ergonomic access, but runtime fields are
// explicitly excluded from YAML/env parsing.
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// MCPServerConfig holds configuration for an MCP server.
type MCPServerConfig struct {
	Type    string   `yaml:"type"`
	Command string   `yaml:"command"`
	Env     []string `yaml:"env"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
}

// Dir returns the directory holding the settings file.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errs.Error{Err: err, Reason: "Could not determine home directory."}
	}
	return filepath.Join(home, ".config", "unai"), nil
}

// Ensure loads settings from disk and environment and applies defaults.
//
// It also creates the default settings file if it does not exist.
func Ensure() (Config, error) {
	dir, err := Dir()
	if err != nil {
		return Config{}, err
	}
	return Load(filepath.Join(dir, "unai.yml"))
}

// Load reads the settings file at path, creating it from the template first
// when missing, and overlays UNAI_* environment variables.
func Load(path string) (Config, error) {
	c := Default()
	c.SettingsPath = path

	if dirErr := os.MkdirAll(filepath.Dir(path), 0o700); dirErr != nil {
		return c, errs.Error{Err: dirErr, Reason: "Could not create config directory."}
	}
	if err := WriteConfigFile(path); err != nil {
		return c, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file."}
	}

	if err := env.ParseWithOptions(&c, env.Options{Prefix: EnvPrefix}); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings file."}
	}

	if err := MergeRolesFromDir(&c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not load roles from roles directory."}
	}

	if c.CachePath == "" {
		c.CachePath = filepath.Join(filepath.Dir(path), "history")
	}
	if err := os.MkdirAll(c.ConversationsDir(), 0o700); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not create cache directory."}
	}

	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.WordWrap == 0 {
		c.WordWrap = d.WordWrap
	}
	if c.FormatText == nil {
		c.FormatText = d.FormatText
	}
	if c.FormatAs == "" {
		c.FormatAs = d.FormatAs
	}
	if c.MCPTimeout == 0 {
		c.MCPTimeout = d.MCPTimeout
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
}

// ResolveModel finds the configured API and model for c.API and c.Model,
// honoring model aliases. An empty c.API searches every API in order.
func (c *Config) ResolveModel() (API, Model, error) {
	for _, api := range c.APIs {
		if api.Name != c.API && c.API != "" {
			continue
		}
		name := c.Model
		for n, mod := range api.Models {
			if n == c.Model || slices.Contains(mod.Aliases, c.Model) {
				name = n
				break
			}
		}
		if mod, ok := api.Models[name]; ok {
			mod.Name = name
			mod.API = api.Name
			return api, mod, nil
		}
		if c.API != "" {
			available := make([]string, 0, len(api.Models))
			for n := range api.Models {
				available = append(available, n)
			}
			slices.Sort(available)
			if len(available) == 0 {
				// Unlisted models are passed through as-is.
				return api, Model{Name: c.Model, API: api.Name}, nil
			}
			return API{}, Model{}, errs.Error{
				Err:    errs.UserErrorf("Available models are: %s", stdstrings.Join(available, ", ")),
				Reason: fmt.Sprintf("The API endpoint %s does not contain the model %s", c.API, c.Model),
			}
		}
	}

	if c.API != "" {
		// An API missing from the settings still works for known vendors.
		return API{Name: c.API}, Model{Name: c.Model, API: c.API}, nil
	}
	return API{}, Model{}, errs.Error{
		Reason: fmt.Sprintf("Model %s is not in the settings file.", c.Model),
		Err:    errs.UserErrorf("Please specify an API endpoint with --api or configure the model in the settings: unai config edit"),
	}
}

// EnvVars returns the names of the environment variables that override
// settings, in declaration order.
func EnvVars() ([]string, error) {
	var (
		keys []string
		s    Settings
	)
	err := env.ParseWithOptions(&s, env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{},
		OnSet: func(key string, _ any, _ bool) {
			keys = append(keys, key)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list environment variables: %w", err)
	}
	return keys, nil
}

// RolesDir is the directory of role files next to the settings file.
func (c *Config) RolesDir() string {
	return filepath.Join(filepath.Dir(c.SettingsPath), "roles")
}

// ConversationsDir holds the run index and the saved transcripts.
func (c *Config) ConversationsDir() string {
	return filepath.Join(c.CachePath, "conversations")
}

// MergeRolesFromDir merges role definitions from the roles directory next to
// the settings file into cfg.
func MergeRolesFromDir(cfg *Config) error {
	roles, err := readRolesFromDir(cfg.RolesDir())
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	if cfg.Roles == nil {
		cfg.Roles = map[string][]string{}
	}
	for name, setup := range roles {
		if _, exists := cfg.Roles[name]; exists {
			continue
		}
		cfg.Roles[name] = setup
	}
	return nil
}

func readRolesFromDir(dir string) (map[string][]string, error) {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read roles directory %q: %w", dir, err)
	}

	roles := map[string][]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}

		ext := stdstrings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".yml" && ext != ".yaml" {
			return nil
		}

		relPath, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return fmt.Errorf("resolve role path %q: %w", path, relErr)
		}

		roleName := stdstrings.TrimSuffix(filepath.ToSlash(relPath), filepath.Ext(relPath))
		if roleName == "" {
			return nil
		}

		setup, setupErr := roleSetupFromFile(path)
		if setupErr != nil {
			return fmt.Errorf("role file %q: %w", relPath, setupErr)
		}
		roles[roleName] = setup
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read roles directory %q: %w", dir, err)
	}

	return roles, nil
}

func roleSetupFromFile(path string) ([]string, error) {
	ext := stdstrings.ToLower(filepath.Ext(path))
	if ext != ".yml" && ext != ".yaml" {
		return []string{"file://" + path}, nil
	}

	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role file %q: %w", path, err)
	}

	var setup []string
	if err := yaml.Unmarshal(bts, &setup); err == nil {
		return setup, nil
	}

	var single string
	if err := yaml.Unmarshal(bts, &single); err == nil {
		return []string{single}, nil
	}

	return nil, fmt.Errorf("must be a YAML string or string list")
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render template."}
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			FormatAs: "markdown",
			FormatText: FormatText{
				"markdown": defaultMarkdownFormatText,
				"json":     defaultJSONFormatText,
			},
			Temperature:   -1,
			TopP:          -1,
			TopK:          -1,
			Stream:        true,
			WordWrap:      80,
			MaxIterations: 10,
			LogLevel:      "warn",
			MCPTimeout:    15 * time.Second,
		},
	}
}

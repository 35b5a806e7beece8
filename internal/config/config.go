package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config models labtrack.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Database struct {
		// Path to the sqlite file. Empty means no database: every store
		// operation falls back to the JSON files under DataDir.
		Path string `yaml:"path"`
	} `yaml:"database"`
	DataDir string      `yaml:"data_dir"`
	Model   ModelConfig `yaml:"model"`
	Auth    struct {
		// JWTSecret enables bearer auth on the API when non-empty.
		JWTSecret string `yaml:"jwt_secret"`
		DevLogin  bool   `yaml:"dev_login"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// ModelConfig holds the hosted completion API parameters.
type ModelConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	// APIVersion opts into Azure-style addressing. Leave empty for plain
	// OpenAI-compatible endpoints.
	APIVersion       string  `yaml:"api_version"`
	Temperature      float32 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	TopP             float32 `yaml:"top_p"`
	FrequencyPenalty float32 `yaml:"frequency_penalty"`
	PresencePenalty  float32 `yaml:"presence_penalty"`
	TimeoutMs        int     `yaml:"timeout_ms"`
	InputRatePer1K   float64 `yaml:"input_rate_per_1k"`
	OutputRatePer1K  float64 `yaml:"output_rate_per_1k"`
}

// Default returns the config used when labtrack.yml is absent.
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = "127.0.0.1:8080"
	cfg.Server.BasePath = "/v1"
	cfg.DataDir = "data"
	cfg.Model = ModelConfig{
		Deployment:      "gpt-4",
		Temperature:     0.5,
		MaxTokens:       500,
		TopP:            0.2,
		TimeoutMs:       30000,
		InputRatePer1K:  0.01,
		OutputRatePer1K: 0.03,
	}
	cfg.Log.Level = "info"
	return &cfg
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "labtrack.yml")
}

// Load reads labtrack.yml from the workspace, falling back to defaults when
// the file does not exist, then applies LABTRACK_* environment overrides.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// FromYAML parses config from raw YAML bytes on top of the defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	return cfg, nil
}

// TasksFile and StoriesFile locate the JSON fallback files.
func (c *Config) TasksFile() string   { return filepath.Join(c.DataDir, "tasks.json") }
func (c *Config) StoriesFile() string { return filepath.Join(c.DataDir, "stories.json") }

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "LABTRACK_ADDR")
	setString(&cfg.Server.BasePath, "LABTRACK_BASE_PATH")
	setString(&cfg.Database.Path, "LABTRACK_DB_PATH")
	setString(&cfg.DataDir, "LABTRACK_DATA_DIR")
	setString(&cfg.Model.Endpoint, "LABTRACK_MODEL_ENDPOINT")
	setString(&cfg.Model.APIKey, "LABTRACK_MODEL_API_KEY")
	setString(&cfg.Model.Deployment, "LABTRACK_MODEL_DEPLOYMENT")
	setString(&cfg.Model.APIVersion, "LABTRACK_MODEL_API_VERSION")
	setInt(&cfg.Model.TimeoutMs, "LABTRACK_MODEL_TIMEOUT_MS")
	setFloat(&cfg.Model.InputRatePer1K, "LABTRACK_MODEL_INPUT_RATE")
	setFloat(&cfg.Model.OutputRatePer1K, "LABTRACK_MODEL_OUTPUT_RATE")
	setString(&cfg.Auth.JWTSecret, "LABTRACK_JWT_SECRET")
	setString(&cfg.Log.Level, "LABTRACK_LOG_LEVEL")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setFloat(dst *float64, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			*dst = f
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/ekaya-inc/grantgraph/pkg/graph"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
	"github.com/ekaya-inc/grantgraph/pkg/logging"
	"github.com/ekaya-inc/grantgraph/pkg/retry"
	"github.com/ekaya-inc/grantgraph/pkg/workerpool"
)

// DefaultConfigFile is read when present; environment variables alone are enough otherwise.
const DefaultConfigFile = "config.yaml"

// Config holds all configuration for grantgraph.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Graph store (Neo4j)
	Neo4j graph.Config `yaml:"neo4j"`

	LLM      LLMConfig      `yaml:"llm"`
	Search   SearchConfig   `yaml:"search"`
	Redis    RedisConfig    `yaml:"redis"`
	Schema   SchemaConfig   `yaml:"schema"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	MCP      MCPConfig      `yaml:"mcp"`

	// Backoff for graph store and schema introspection calls
	Retry retry.Config `yaml:"retry"`

	Logging logging.Config `yaml:"logging"`
}

// LLMConfig holds provider credentials and call limits.
type LLMConfig struct {
	// DefaultModel is applied when a request omits the model.
	DefaultModel string `yaml:"default_model" env:"LLM_DEFAULT_MODEL" env-default:"claude-4-5-sonnet"`
	MaxTokens    int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"4096"`

	AnthropicAPIKey  string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	AnthropicBaseURL string `yaml:"anthropic_base_url" env:"ANTHROPIC_BASE_URL"`
	OpenAIAPIKey     string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	OpenAIBaseURL    string `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	GeminiAPIKey     string `yaml:"-" env:"GOOGLE_API_KEY"` // Secret - not in YAML
	GeminiBaseURL    string `yaml:"gemini_base_url" env:"GEMINI_BASE_URL"`
	// DeepSeekAPIKey may be an OpenRouter key (sk-or-...), which routes DeepSeek models through OpenRouter.
	DeepSeekAPIKey  string `yaml:"-" env:"DEEPSEEK_API_KEY"` // Secret - not in YAML
	DeepSeekBaseURL string `yaml:"deepseek_base_url" env:"DEEPSEEK_BASE_URL"`

	CircuitBreaker llm.CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// RouterConfig converts the provider settings for llm.NewRouter.
func (c *LLMConfig) RouterConfig() llm.RouterConfig {
	return llm.RouterConfig{
		Anthropic:      llm.ProviderConfig{APIKey: c.AnthropicAPIKey, BaseURL: c.AnthropicBaseURL},
		OpenAI:         llm.ProviderConfig{APIKey: c.OpenAIAPIKey, BaseURL: c.OpenAIBaseURL},
		Gemini:         llm.ProviderConfig{APIKey: c.GeminiAPIKey, BaseURL: c.GeminiBaseURL},
		DeepSeek:       llm.ProviderConfig{APIKey: c.DeepSeekAPIKey, BaseURL: c.DeepSeekBaseURL},
		MaxTokens:      c.MaxTokens,
		CircuitBreaker: c.CircuitBreaker,
	}
}

// SearchConfig holds web search credentials. The first configured backend wins,
// in the order Google, SerpAPI, DuckDuckGo. With none configured, enrichment
// returns no references.
type SearchConfig struct {
	GoogleAPIKey     string        `yaml:"-" env:"GOOGLE_SEARCH_API_KEY"` // Secret - not in YAML
	GoogleCSEID      string        `yaml:"google_cse_id" env:"GOOGLE_CSE_ID"`
	SerpAPIKey       string        `yaml:"-" env:"SERPAPI_API_KEY"` // Secret - not in YAML
	EnableDuckDuckGo bool          `yaml:"enable_duckduckgo" env:"SEARCH_ENABLE_DUCKDUCKGO" env-default:"false"`
	Timeout          time.Duration `yaml:"timeout" env:"SEARCH_TIMEOUT" env-default:"8s"`
	CacheTTL         time.Duration `yaml:"cache_ttl" env:"SEARCH_CACHE_TTL" env-default:"1h"`
	CacheSize        int           `yaml:"cache_size" env:"SEARCH_CACHE_SIZE" env-default:"512"`

	Workers workerpool.Config `yaml:"workers"`
}

// RedisConfig enables the shared search cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// SchemaConfig controls where the schema descriptor comes from.
type SchemaConfig struct {
	// Source is "live" (introspect Neo4j) or "static" (pinned file or built-in grants schema).
	Source string `yaml:"source" env:"SCHEMA_SOURCE" env-default:"live"`
	// StaticFile is a YAML descriptor used when Source is "static". Empty uses the built-in schema.
	StaticFile string        `yaml:"static_file" env:"SCHEMA_STATIC_FILE"`
	TTL        time.Duration `yaml:"ttl" env:"SCHEMA_TTL" env-default:"10m"`
}

// PipelineConfig holds per-request limits.
type PipelineConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" env:"PIPELINE_REQUEST_TIMEOUT" env-default:"60s"`
	RowLimit       int           `yaml:"row_limit" env:"PIPELINE_ROW_LIMIT" env-default:"100"`
	// MaxSearchTerms bounds the number of web searches per question.
	MaxSearchTerms int `yaml:"max_search_terms" env:"PIPELINE_MAX_SEARCH_TERMS" env-default:"3"`
	MaxReferences  int `yaml:"max_references" env:"PIPELINE_MAX_REFERENCES" env-default:"5"`
	// SummaryRowSample is the number of rows shown to the model when summarizing.
	SummaryRowSample   int `yaml:"summary_row_sample" env:"PIPELINE_SUMMARY_ROW_SAMPLE" env-default:"25"`
	SummaryTokenBudget int `yaml:"summary_token_budget" env:"PIPELINE_SUMMARY_TOKEN_BUDGET" env-default:"6000"`
}

// MCPConfig controls the MCP tool server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// MaxRowLimit caps PipelineConfig.RowLimit regardless of configuration.
const MaxRowLimit = 1000

// Load reads configuration with environment variable overrides.
// A .env file in the working directory is loaded first; variables already set
// in the environment win. config.yaml is optional.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile(DefaultConfigFile, version)
}

// LoadFile is Load with an explicit YAML path.
func LoadFile(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Neo4j.URI = ResolveURIForDocker(cfg.Neo4j.URI)
	cfg.Redis.Addr = ResolveAddrForDocker(cfg.Redis.Addr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateTLS(); err != nil {
		return err
	}
	if _, ok := llm.ParseModelID(c.LLM.DefaultModel); !ok {
		return fmt.Errorf("llm.default_model %q is not a known model", c.LLM.DefaultModel)
	}
	if c.Schema.Source != "live" && c.Schema.Source != "static" {
		return fmt.Errorf("schema.source must be live or static, got %q", c.Schema.Source)
	}
	if c.Pipeline.RowLimit <= 0 || c.Pipeline.RowLimit > MaxRowLimit {
		return fmt.Errorf("pipeline.row_limit must be between 1 and %d, got %d", MaxRowLimit, c.Pipeline.RowLimit)
	}
	if c.Pipeline.RequestTimeout <= 0 {
		return fmt.Errorf("pipeline.request_timeout must be positive")
	}
	if c.Search.GoogleAPIKey != "" && c.Search.GoogleCSEID == "" {
		return fmt.Errorf("GOOGLE_CSE_ID is required when GOOGLE_SEARCH_API_KEY is set")
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// Actual readability is checked by tls.LoadX509KeyPair at startup
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return c.BindAddr + ":" + c.Port
}

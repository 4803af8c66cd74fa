package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// GroqBaseURL is the OpenAI-compatible endpoint used by default.
	GroqBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the model selected when LLM_MODEL is unset.
	DefaultModel = "qwen/qwen3-32b"
	// DefaultSystemPrompt seeds the sessions of the web chat.
	DefaultSystemPrompt = "You are a helpful assistant that answers questions using Wikipedia, ArXiv, or web search. " +
		"Always mention your source: say 'According to Wikipedia', 'Research paper from ArXiv', " +
		"or 'Based on recent news from the web' where appropriate. Be concise and accurate."
)

// DefaultModels is the model menu offered by the web chat.
var DefaultModels = []string{"llama3-groq-70b-8192", "llama3-groq-8b-8192", DefaultModel}

// Providers and stores accepted by the configuration.
var (
	Providers = []string{"openai", "langchain"}
	Stores    = []string{"memory", "file", "sqlite", "redis", "postgres"}
)

// ErrMissingKey is returned by Validate when a required API key is unset.
var ErrMissingKey = errors.New("missing api key")

// Host names the program a configuration is validated for.
type Host string

const (
	// HostWeb is the multi-tool chat server, which needs both an LLM key and
	// a Tavily key.
	HostWeb Host = "web"
	// HostCLI is the command line agent, which only needs an LLM key.
	HostCLI Host = "cli"
)

// Config holds the application configuration read from the environment.
type Config struct {
	GroqAPIKey   string
	OpenAIAPIKey string
	TavilyAPIKey string
	BraveAPIKey  string

	Provider     string
	BaseURL      string
	Model        string
	Models       []string
	Temperature  float64
	SystemPrompt string

	MaxIterations int
	ToolTimeout   time.Duration
	LLMTimeout    time.Duration
	Retries       int
	ParallelTools int

	Store      string
	StoreDSN   string
	SessionDir string
	RedisAddr  string

	Port      string
	ChatTitle string
	LogLevel  string
}

// Load reads the given .env files, skipping missing ones, and then the
// environment. Variables already set in the environment win over .env
// entries. Without arguments ".env" is read.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a configuration from the environment only.
func FromEnv() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		GroqAPIKey:   os.Getenv("GROQ_API_KEY"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
		BraveAPIKey:  os.Getenv("BRAVE_API_KEY"),

		Provider:     strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "openai")),
		BaseURL:      getEnvOrDefault("LLM_BASE_URL", GroqBaseURL),
		Model:        getEnvOrDefault("LLM_MODEL", DefaultModel),
		Models:       p.list("LLM_MODELS", DefaultModels),
		Temperature:  p.float("LLM_TEMPERATURE", 0.3),
		SystemPrompt: getEnvOrDefault("SYSTEM_PROMPT", DefaultSystemPrompt),

		MaxIterations: p.int("MAX_ITERATIONS", 10),
		ToolTimeout:   p.duration("TOOL_TIMEOUT", 30*time.Second),
		LLMTimeout:    p.duration("LLM_TIMEOUT", 60*time.Second),
		Retries:       p.int("LLM_RETRIES", 2),
		ParallelTools: p.int("PARALLEL_TOOLS", 1),

		Store:      strings.ToLower(getEnvOrDefault("STORE", "memory")),
		StoreDSN:   os.Getenv("STORE_DSN"),
		SessionDir: getEnvOrDefault("SESSION_DIR", "./sessions"),
		RedisAddr:  getEnvOrDefault("REDIS_ADDR", "localhost:6379"),

		Port:      getEnvOrDefault("PORT", "8080"),
		ChatTitle: getEnvOrDefault("CHAT_TITLE", "🧠 Multi-Tool AI Agent"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if !slices.Contains(cfg.Models, cfg.Model) {
		cfg.Models = append(cfg.Models, cfg.Model)
	}
	return cfg, nil
}

// APIKey returns the key for the configured LLM endpoint: the Groq key for
// Groq, the OpenAI key otherwise, each falling back to the other.
func (c *Config) APIKey() string {
	if strings.Contains(c.BaseURL, "groq.com") {
		return cmp.Or(c.GroqAPIKey, c.OpenAIAPIKey)
	}
	return cmp.Or(c.OpenAIAPIKey, c.GroqAPIKey)
}

// AllowedModel resolves a requested model against the menu. The empty name
// selects the default model.
func (c *Config) AllowedModel(name string) (string, bool) {
	if name == "" {
		return c.Model, true
	}
	return name, slices.Contains(c.Models, name)
}

// Validate checks that the configuration can run host.
func (c *Config) Validate(host Host) error {
	var errs []error
	if c.APIKey() == "" {
		errs = append(errs, fmt.Errorf("%w: set GROQ_API_KEY or OPENAI_API_KEY", ErrMissingKey))
	}
	if host == HostWeb && c.TavilyAPIKey == "" {
		errs = append(errs, fmt.Errorf("%w: set TAVILY_API_KEY", ErrMissingKey))
	}
	if !slices.Contains(Providers, c.Provider) {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be one of %v, got %q", Providers, c.Provider))
	}
	if !slices.Contains(Stores, c.Store) {
		errs = append(errs, fmt.Errorf("STORE must be one of %v, got %q", Stores, c.Store))
	}
	if (c.Store == "sqlite" || c.Store == "postgres") && c.StoreDSN == "" {
		errs = append(errs, fmt.Errorf("STORE_DSN is required for the %s store", c.Store))
	}
	if c.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("MAX_ITERATIONS must be positive, got %d", c.MaxIterations))
	}
	if c.ParallelTools <= 0 {
		errs = append(errs, fmt.Errorf("PARALLEL_TOOLS must be positive, got %d", c.ParallelTools))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("LLM_RETRIES must not be negative, got %d", c.Retries))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE must be within [0, 2], got %v", c.Temperature))
	}
	return errors.Join(errs...)
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s=%q: %w", key, value, err)
	}
}

func (p *parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

// duration accepts Go durations ("1m30s") and plain seconds ("90").
func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return slices.Clone(def)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

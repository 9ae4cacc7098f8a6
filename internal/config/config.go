package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Model        ModelConfig        `mapstructure:"model"`
	Generation   GenerationConfig   `mapstructure:"generation"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Session      SessionConfig      `mapstructure:"session"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Auth         AuthConfig         `mapstructure:"auth"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ModelConfig selects the LLM behind the in-process generator.
type ModelConfig struct {
	Provider     string        `mapstructure:"provider"` // doubao, qwen, openai, gemini
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

// GenerationConfig decides where conversations send their requests. An empty
// Endpoint means the in-process model generator is used directly.
type GenerationConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ConversationConfig struct {
	Greeting      string `mapstructure:"greeting"`
	DefaultCode   string `mapstructure:"default_code"`
	ReplacePolicy string `mapstructure:"replace_policy"` // found, app-guard
	Parser        string `mapstructure:"parser"`         // structured, legacy
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type StorageConfig struct {
	Type           string        `mapstructure:"type"` // memory, disk, sqlite, postgres
	DataDir        string        `mapstructure:"data_dir"`
	DSN            string        `mapstructure:"dsn"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
}

type AuthConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Secret        string        `mapstructure:"secret"`
	Issuer        string        `mapstructure:"issuer"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AnonymousUser string        `mapstructure:"anonymous_user"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const DefaultGreeting = "Hi! I'm the Web Optimizer Assistant. How can I help you today?"

const DefaultCode = `
    import React from 'react'
    function App() {
        return (
            <div>
                <h1>Start creating!</h1>
                <p>Generate a React App</p>
                <p>Disclaimer: external dependencies are not supported yet</p>
            </div> )
    }
    export default App;`

const DefaultSystemPrompt = `You are the Web Optimizer Assistant. Answer every request with a single React component named App.
Write the component first, starting with its import statements and ending with "export default App;".
If the component needs styling, follow it with one fenced css block.
Finish with a line starting with "Response:" that explains the code in plain language.
Do not use external dependencies other than React.`

var cfg *Config

// Load reads the YAML file at configPath (optional) and layers WOA_* environment
// variables on top. A .env file in the working directory is loaded first.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WOA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// the config file wins; well-known provider variables fill the gap
	if c.Model.APIKey == "" {
		c.Model.APIKey = providerKeyFromEnv(c.Model.Provider)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg = c
	return c, nil
}

func Get() *Config {
	return cfg
}

func (c *Config) Validate() error {
	switch c.Conversation.ReplacePolicy {
	case "found", "app-guard":
	default:
		return fmt.Errorf("conversation.replace_policy: unsupported value %q", c.Conversation.ReplacePolicy)
	}
	switch c.Conversation.Parser {
	case "structured", "legacy":
	default:
		return fmt.Errorf("conversation.parser: unsupported value %q", c.Conversation.Parser)
	}
	if c.Auth.Enabled && c.Auth.Secret == "" {
		return errors.New("auth.secret is required when auth is enabled")
	}
	return nil
}

func providerKeyFromEnv(provider string) string {
	var names []string
	switch provider {
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	case "doubao":
		names = []string{"DOUBAO_API_KEY", "ARK_API_KEY"}
	case "qwen":
		names = []string{"DASHSCOPE_API_KEY"}
	case "gemini":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	for _, name := range names {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.model", "gpt-4o-mini")
	v.SetDefault("model.max_tokens", 4096)
	v.SetDefault("model.temperature", 0.2)
	v.SetDefault("model.top_p", 1.0)
	v.SetDefault("model.timeout", 2*time.Minute)
	v.SetDefault("model.system_prompt", DefaultSystemPrompt)
	v.SetDefault("model.debug_request", false)

	v.SetDefault("generation.endpoint", "")
	v.SetDefault("generation.timeout", time.Duration(0))

	v.SetDefault("conversation.greeting", DefaultGreeting)
	v.SetDefault("conversation.default_code", DefaultCode)
	v.SetDefault("conversation.replace_policy", "found")
	v.SetDefault("conversation.parser", "structured")

	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.backup_interval", time.Duration(0))

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.anonymous_user", "anonymous")

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Length"})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

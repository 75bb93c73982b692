package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment" validate:"required"`
		Version     string `yaml:"version"`
		Debug       bool   `yaml:"debug"`
	} `yaml:"app"`

	Server struct {
		Addr        string `yaml:"addr" validate:"required"`
		BodyLimitMB int    `yaml:"body_limit_mb" validate:"min=1,max=1024"`
	} `yaml:"server"`

	Database struct {
		Driver     string `yaml:"driver" validate:"oneof=postgres sqlite"`
		URL        string `yaml:"url" validate:"required_if=Driver postgres"`
		SQLitePath string `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
	} `yaml:"database"`

	Embedding struct {
		Provider   string `yaml:"provider" validate:"oneof=hash ollama"`
		Model      string `yaml:"model"`
		BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
		Dimensions int    `yaml:"dimensions" validate:"min=1,max=16000"`
		MaxTokens  int    `yaml:"max_tokens" validate:"min=0"`
		Lanes      int    `yaml:"lanes" validate:"min=1,max=64"`
	} `yaml:"embedding"`

	Search struct {
		DefaultK int `yaml:"default_k" validate:"min=1"`
		MaxK     int `yaml:"max_k" validate:"min=1"`
	} `yaml:"search"`

	Queue struct {
		Driver            string        `yaml:"driver" validate:"oneof=postgres memory"`
		MaxAttempts       int           `yaml:"max_attempts" validate:"min=1,max=100"`
		VisibilityTimeout time.Duration `yaml:"visibility_timeout" validate:"min=1s"`
		RetryBackoff      time.Duration `yaml:"retry_backoff" validate:"min=0"`
	} `yaml:"queue"`

	Worker struct {
		Embedded       bool          `yaml:"embedded"`
		Concurrency    int           `yaml:"concurrency" validate:"min=1,max=256"`
		PollInterval   time.Duration `yaml:"poll_interval" validate:"min=1ms"`
		RateLimit      float64       `yaml:"rate_limit" validate:"min=0"`
		EnqueuePending bool          `yaml:"enqueue_pending"`
	} `yaml:"worker"`

	Log struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=text json"`
	} `yaml:"log"`
}

// LoadConfig reads the YAML file at path (or the first default location
// that exists), loads .env, applies environment overrides and defaults.
// It does not validate; call Validate on the result.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %v", err)
	}

	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/neuralsearch/config.yaml"),
			"/etc/neuralsearch/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}

	if err := mergeWithEnv(config); err != nil {
		return nil, err
	}
	applyDefaults(config)

	return config, nil
}

func applyDefaults(config *Config) {
	if config.App.Name == "" {
		config.App.Name = "neuralsearch"
	}
	if config.App.Environment == "" {
		config.App.Environment = "development"
	}
	if config.App.Version == "" {
		config.App.Version = "dev"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}
	if config.Server.BodyLimitMB == 0 {
		config.Server.BodyLimitMB = 10
	}

	if config.Database.Driver == "" {
		if config.Database.URL != "" {
			config.Database.Driver = "postgres"
		} else {
			config.Database.Driver = "sqlite"
		}
	}
	if config.Database.Driver == "sqlite" && config.Database.SQLitePath == "" {
		config.Database.SQLitePath = "neuralsearch.db"
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "hash"
	}
	if config.Embedding.Dimensions == 0 {
		config.Embedding.Dimensions = 384
	}
	if config.Embedding.Lanes == 0 {
		config.Embedding.Lanes = 2
	}
	if config.Embedding.Provider == "ollama" {
		if config.Embedding.Model == "" {
			config.Embedding.Model = "all-minilm"
		}
		if config.Embedding.BaseURL == "" {
			config.Embedding.BaseURL = "http://localhost:11434"
		}
		if config.Embedding.MaxTokens == 0 {
			config.Embedding.MaxTokens = 256
		}
	}

	if config.Search.DefaultK == 0 {
		config.Search.DefaultK = 5
	}
	if config.Search.MaxK == 0 {
		config.Search.MaxK = 100
	}

	if config.Queue.Driver == "" {
		if config.Database.Driver == "postgres" {
			config.Queue.Driver = "postgres"
		} else {
			config.Queue.Driver = "memory"
		}
	}
	if config.Queue.MaxAttempts == 0 {
		config.Queue.MaxAttempts = 3
	}
	if config.Queue.VisibilityTimeout == 0 {
		config.Queue.VisibilityTimeout = 5 * time.Minute
	}
	if config.Queue.RetryBackoff == 0 {
		config.Queue.RetryBackoff = 5 * time.Second
	}

	// An in-process queue is only reachable by an in-process worker.
	if config.Queue.Driver == "memory" {
		config.Worker.Embedded = true
	}
	if config.Worker.Concurrency == 0 {
		config.Worker.Concurrency = 2
	}
	if config.Worker.PollInterval == 0 {
		config.Worker.PollInterval = time.Second
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
		if config.App.Debug {
			config.Log.Level = "debug"
		}
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func mergeWithEnv(config *Config) error {
	if env := os.Getenv("APP_ENVIRONMENT"); env != "" {
		config.App.Environment = env
	}
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	} else if host := os.Getenv("PG_HOST"); host != "" {
		dbURL, err := postgresURL(host)
		if err != nil {
			return err
		}
		config.Database.URL = dbURL
	}
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		config.Database.SQLitePath = path
	}

	if provider := os.Getenv("EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
	}

	if driver := os.Getenv("QUEUE_DRIVER"); driver != "" {
		config.Queue.Driver = driver
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
	return nil
}

// postgresURL composes a connection URL from the PG_* variables.
func postgresURL(host string) (string, error) {
	port := 5432
	if p := os.Getenv("PG_PORT"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("invalid PG_PORT %q: %v", p, err)
		}
		port = n
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(os.Getenv("PG_USER"), os.Getenv("PG_PASS")),
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + os.Getenv("PG_DB_NAME"),
		RawQuery: "sslmode=disable",
	}
	return u.String(), nil
}

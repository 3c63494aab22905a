// Package config loads service configuration from the environment, with an
// optional YAML override file for deployment-specific settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig
	Chain     ChainConfig
	Firestore FirestoreConfig
	WorldID   WorldIDConfig
	Log       LogConfig
	CORS      CORSConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `env:"HTTP_HOST,default=0.0.0.0" yaml:"host"`
	Port            int           `env:"HTTP_PORT,default=8080" yaml:"port"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s" yaml:"shutdown_timeout"`
}

// ChainConfig holds the RPC endpoint and escrow contract address.
type ChainConfig struct {
	RPCURL          string        `env:"CHAIN_RPC_URL,default=https://sepolia.base.org" yaml:"rpc_url"`
	ContractAddress string        `env:"POLL_ESCROW_CONTRACT_ADDRESS,required" yaml:"contract_address"`
	Timeout         time.Duration `env:"CHAIN_RPC_TIMEOUT,default=30s" yaml:"timeout"`
}

// FirestoreConfig holds document store settings.
type FirestoreConfig struct {
	ProjectID       string `env:"FIRESTORE_PROJECT_ID,required" yaml:"project_id"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS,default=" yaml:"credentials_file"`
}

// WorldIDConfig holds Worldcoin API settings. An empty key disables the
// verification endpoint.
type WorldIDConfig struct {
	APIKey string `env:"WLD_API_KEY,default=" yaml:"api_key"`
	APIURL string `env:"WLD_API_URL,default=" yaml:"api_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format string `env:"LOG_FORMAT,default=text" yaml:"format"`
}

// CORSConfig holds allowed origins; "*" allows all.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS,default=*" yaml:"allowed_origins"`
}

// Load reads .env (when present), decodes the environment, and applies the
// optional override file named by POLLSYNC_CONFIG_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("POLLSYNC_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid HTTP port %d", cfg.Server.Port)
	}
	return &cfg, nil
}

// fileConfig is the YAML override shape. Only set sections replace the
// environment values.
type fileConfig struct {
	Server *ServerConfig `yaml:"server"`
	Chain  *ChainConfig  `yaml:"chain"`
	CORS   *CORSConfig   `yaml:"cors"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Server != nil {
		c.Server = *fc.Server
	}
	if fc.Chain != nil {
		c.Chain = *fc.Chain
	}
	if fc.CORS != nil {
		c.CORS = *fc.CORS
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"concert-tickets/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Config is the process configuration. Values are layered: defaults,
// then the YAML file, then .env and the process environment.
// Command-line flags are applied on top by main.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	StoreDriver   string `yaml:"store"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	BadgerPath    string `yaml:"badger_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`

	// AdminIdentity may manage every concert. Empty disables admin access.
	AdminIdentity model.Identity `yaml:"admin_identity"`
	// MintAuthority is the only identity the token ledger accepts mints from.
	MintAuthority model.Identity `yaml:"mint_authority"`

	JWTSecret string        `yaml:"-"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	NonceTTL  time.Duration `yaml:"nonce_ttl"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() Config {
	return Config{
		ListenAddr:    ":80",
		StoreDriver:   StoreMemory,
		MongoDatabase: "concert-tickets",
		BadgerPath:    "./data/badger",
		TokenTTL:      8 * time.Hour,
		NonceTTL:      5 * time.Minute,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds a Config. path names an optional YAML file; an empty path
// skips it. A missing .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envString("LISTEN_ADDR", &cfg.ListenAddr)
	envString("STORE_DRIVER", &cfg.StoreDriver)
	envString("MONGODB_CONNSTRING", &cfg.MongoURI)
	envString("MONGODB_DATABASE", &cfg.MongoDatabase)
	envString("BADGER_PATH", &cfg.BadgerPath)
	envString("POSTGRES_DSN", &cfg.PostgresDSN)
	envString("LOG_LEVEL", &cfg.LogLevel)
	envString("LOG_FORMAT", &cfg.LogFormat)
	envDuration("TOKEN_TTL", &cfg.TokenTTL)
	envDuration("NONCE_TTL", &cfg.NonceTTL)

	if val, err := GetSecret("ADMIN_IDENTITY"); err == nil {
		cfg.AdminIdentity = model.Identity(strings.TrimSpace(val))
	}
	if val, err := GetSecret("MINT_AUTHORITY"); err == nil {
		cfg.MintAuthority = model.Identity(strings.TrimSpace(val))
	}
	if val, err := GetSecret("SIGN"); err == nil {
		cfg.JWTSecret = val
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreBadger:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("mongo store requires MONGODB_CONNSTRING")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("postgres store requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.AdminIdentity != "" && !c.AdminIdentity.Valid() {
		return fmt.Errorf("admin identity %q is not a valid identity", c.AdminIdentity)
	}
	if !c.MintAuthority.Valid() {
		return fmt.Errorf("mint authority %q is not a valid identity", c.MintAuthority)
	}
	if c.JWTSecret == "" {
		return errors.New("no JWT signing secret, set SIGN")
	}
	if c.TokenTTL <= 0 || c.NonceTTL <= 0 {
		return errors.New("token and nonce TTLs must be positive")
	}
	return nil
}

func GetSecret(key string) (string, error) {
	val, exist := os.LookupEnv(key)
	if exist {
		return val, nil
	}
	return "", fmt.Errorf("no env variable with key %v", key)
}

func envString(key string, target *string) {
	if val, err := GetSecret(key); err == nil && strings.TrimSpace(val) != "" {
		*target = strings.TrimSpace(val)
	}
}

func envDuration(key string, target *time.Duration) {
	val, err := GetSecret(key)
	if err != nil {
		return
	}
	if d, err := time.ParseDuration(strings.TrimSpace(val)); err == nil {
		*target = d
	}
}

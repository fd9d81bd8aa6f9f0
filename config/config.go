package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath es la ruta que usa el CLI si no se pasa -config.
const DefaultPath = "config/config.yaml"

// Config es la configuración completa del ledger.
type Config struct {
	Market  MarketConfig  `yaml:"market"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// MarketConfig son las reglas del mercado.
type MarketConfig struct {
	MinWager         int64   `yaml:"min_wager"`
	MaxWager         int64   `yaml:"max_wager"`
	PayoutMultiplier int64   `yaml:"payout_multiplier"`
	LeaderboardSize  int     `yaml:"leaderboard_size"`
	MaxNameLength    int     `yaml:"max_name_length"`
	SubmitRatePerSec float64 `yaml:"submit_rate_per_sec"` // 0 = sin límite
	SubmitBurst      int     `yaml:"submit_burst"`
	Currency         string  `yaml:"currency"`
}

// StorageConfig controla dónde se persiste el estado.
type StorageConfig struct {
	Driver         string `yaml:"driver"` // json | sqlite | redis | memory
	DSN            string `yaml:"dsn"`    // ruta del archivo JSON o SQLite
	RecoverCorrupt bool   `yaml:"recover_corrupt"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

// RedisConfig solo se usa con driver redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	TLS       bool   `yaml:"tls"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AuthConfig contiene el secreto con el que se firman los tokens de admin.
type AuthConfig struct {
	AdminSecret string `yaml:"admin_secret"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// MetricsConfig: si Addr está vacío no se expone /metrics.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
// Si path es DefaultPath y no existe, se usan los defaults.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		// sin archivo: solo env + defaults
	default:
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LockTTL devuelve el TTL del lock distribuido como time.Duration.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Storage.LockTTLSeconds) * time.Second
}

// Validate rechaza valores que setDefaults no puede corregir.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "json", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("config: storage driver redis needs redis.addr")
	}
	if c.Market.MaxWager < c.Market.MinWager {
		return fmt.Errorf("config: market.max_wager %d below market.min_wager %d", c.Market.MaxWager, c.Market.MinWager)
	}
	if c.Market.SubmitRatePerSec < 0 {
		return fmt.Errorf("config: market.submit_rate_per_sec must be >= 0")
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LEDGER_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("LEDGER_STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("LEDGER_ADMIN_SECRET"); v != "" {
		cfg.Auth.AdminSecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Market.MinWager <= 0 {
		cfg.Market.MinWager = 10
	}
	if cfg.Market.MaxWager <= 0 {
		cfg.Market.MaxWager = 500
	}
	if cfg.Market.PayoutMultiplier <= 0 {
		cfg.Market.PayoutMultiplier = 5
	}
	if cfg.Market.LeaderboardSize == 0 {
		cfg.Market.LeaderboardSize = 5
	}
	if cfg.Market.MaxNameLength <= 0 {
		cfg.Market.MaxNameLength = 64
	}
	if cfg.Market.SubmitRatePerSec > 0 && cfg.Market.SubmitBurst <= 0 {
		cfg.Market.SubmitBurst = 1
	}
	if cfg.Market.Currency == "" {
		cfg.Market.Currency = "KC"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "json"
	}
	if cfg.Storage.DSN == "" {
		switch cfg.Storage.Driver {
		case "sqlite":
			cfg.Storage.DSN = "betledger.db"
		default:
			cfg.Storage.DSN = "bets_data.json"
		}
	}
	if cfg.Storage.LockTTLSeconds <= 0 {
		cfg.Storage.LockTTLSeconds = 5
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "betledger"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

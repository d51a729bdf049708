package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	Backend     BackendConfig
	Auth        AuthConfig
	GuestStore  GuestStoreConfig
	Redis       RedisConfig
	DB          DBConfig
	Cart        CartConfig
	Checkout    CheckoutConfig
	Maintenance MaintenanceConfig
	HTTP        HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MigrateConfig is the subset cmd/migrate needs; it does not require the
// storefront's backend or port settings.
type MigrateConfig struct {
	LogLevel     string `envconfig:"MIAUHOME_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MIAUHOME_LOG_WARN_STACK" default:"false"`
	DB           DBConfig
}

// LoadMigrate reads the migration tool's configuration. A DSN is mandatory.
func LoadMigrate() (*MigrateConfig, error) {
	var cfg MigrateConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing migrate config: %w", err)
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return nil, fmt.Errorf("%s is required", EnvDBDSN)
	}
	if err := cfg.DB.normalizeDriver(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MIAUHOME_APP_ENV" required:"true"`
	Port         string `envconfig:"MIAUHOME_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MIAUHOME_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MIAUHOME_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig points at the REST store backend that owns carts, catalog and checkout.
type BackendConfig struct {
	BaseURL            string        `envconfig:"MIAUHOME_BACKEND_BASE_URL" required:"true"`
	Timeout            time.Duration `envconfig:"MIAUHOME_BACKEND_TIMEOUT" default:"10s"`
	BreakerMaxFailures uint32        `envconfig:"MIAUHOME_BACKEND_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout time.Duration `envconfig:"MIAUHOME_BACKEND_BREAKER_OPEN_TIMEOUT" default:"30s"`
}

// AuthConfig controls how bearer tokens issued by the backend are read. Without a
// secret the claims are decoded but not verified; the backend stays the authority.
type AuthConfig struct {
	JWTSecret string `envconfig:"MIAUHOME_JWT_SECRET"`
	JWTIssuer string `envconfig:"MIAUHOME_JWT_ISSUER"`
}

type GuestStoreConfig struct {
	Driver  string        `envconfig:"MIAUHOME_GUEST_STORE" default:"redis"`
	FileDir string        `envconfig:"MIAUHOME_GUEST_FILE_DIR" default:".miauhome/guest_carts"`
	TTL     time.Duration `envconfig:"MIAUHOME_GUEST_TTL" default:"720h"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MIAUHOME_REDIS_URL"`
	Address      string        `envconfig:"MIAUHOME_REDIS_ADDR"`
	Password     string        `envconfig:"MIAUHOME_REDIS_PASSWORD"`
	DB           int           `envconfig:"MIAUHOME_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MIAUHOME_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIAUHOME_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MIAUHOME_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MIAUHOME_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MIAUHOME_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type DBConfig struct {
	DSN    string `envconfig:"MIAUHOME_DB_DSN"`
	Driver string `envconfig:"MIAUHOME_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"MIAUHOME_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MIAUHOME_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MIAUHOME_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MIAUHOME_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"MIAUHOME_AUTO_MIGRATE" default:"false"`
}

func (d *DBConfig) normalizeDriver() error {
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
	if d.Driver != DBDriverPostgres && d.Driver != DBDriverSQLite {
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, d.Driver)
	}
	return nil
}

type CartConfig struct {
	LoginPolicy     string        `envconfig:"MIAUHOME_CART_LOGIN_POLICY" default:"replace"`
	GuestCookieName string        `envconfig:"MIAUHOME_GUEST_COOKIE_NAME" default:"mh_guest"`
	SessionIdleTTL  time.Duration `envconfig:"MIAUHOME_SESSION_IDLE_TTL" default:"2h"`
}

type CheckoutConfig struct {
	AttemptTTL time.Duration `envconfig:"MIAUHOME_CHECKOUT_ATTEMPT_TTL" default:"24h"`
}

// MaintenanceConfig drives the in-process jobs that purge expired guest carts
// and evict idle sessions.
type MaintenanceConfig struct {
	Enabled  bool          `envconfig:"MIAUHOME_MAINTENANCE_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"MIAUHOME_MAINTENANCE_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"MIAUHOME_MAINTENANCE_LOCK_TTL" default:"10m"`
}

type HTTPConfig struct {
	CORSOrigins []string `envconfig:"MIAUHOME_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (cfg *Config) validate() error {
	cfg.GuestStore.Driver = strings.ToLower(strings.TrimSpace(cfg.GuestStore.Driver))
	switch cfg.GuestStore.Driver {
	case GuestStoreRedis:
		if !cfg.Redis.Configured() {
			return fmt.Errorf("%s or %s is required when %s=%s", EnvRedisURL, EnvRedisAddr, EnvGuestStore, GuestStoreRedis)
		}
	case GuestStoreSQL:
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvGuestStore, GuestStoreSQL)
		}
		if err := cfg.DB.normalizeDriver(); err != nil {
			return err
		}
	case GuestStoreFile:
		if strings.TrimSpace(cfg.GuestStore.FileDir) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGuestFileDir, EnvGuestStore, GuestStoreFile)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvGuestStore, cfg.GuestStore.Driver)
	}

	cfg.Cart.LoginPolicy = strings.ToLower(strings.TrimSpace(cfg.Cart.LoginPolicy))
	if cfg.Cart.LoginPolicy != LoginPolicyReplace && cfg.Cart.LoginPolicy != LoginPolicyMerge {
		return fmt.Errorf("unsupported %s %q", EnvCartLoginPolicy, cfg.Cart.LoginPolicy)
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvBackendTimeout)
	}
	return nil
}

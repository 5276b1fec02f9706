package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DirectoryConfig configura un directorio externo accedido por HTTP.
type DirectoryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	// Usuario/clave básicos para el API del directorio (opcional).
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		// Proxies de confianza para X-Forwarded-For (IPs o CIDRs).
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		Driver   string `yaml:"driver"` // memory | postgres
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int           `yaml:"max_open_conns"`
			MaxIdleConns    int           `yaml:"max_idle_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
			AutoMigrate     bool          `yaml:"auto_migrate"`
		} `yaml:"postgres"`
		// Registro de clientes para el driver memory.
		ClientsFile string `yaml:"clients_file"`
	} `yaml:"storage"`

	// Redis es opcional; si Addr está presente el ledger de reintentos, la
	// tabla de tokens, el rate limiter y el cache de clientes lo usan.
	Redis struct {
		Addr           string        `yaml:"addr"`
		Password       string        `yaml:"password"`
		DB             int           `yaml:"db"`
		Prefix         string        `yaml:"prefix"`
		TokenRetention time.Duration `yaml:"token_retention"`
	} `yaml:"redis"`

	Cache struct {
		ClientTTL time.Duration `yaml:"client_ttl"`
	} `yaml:"cache"`

	JWT struct {
		Issuer     string        `yaml:"issuer"`
		KID        string        `yaml:"kid"`
		AccessTTL  time.Duration `yaml:"access_ttl"`
		RefreshTTL time.Duration `yaml:"refresh_ttl"`
		// Seed Ed25519 en base64 (32 bytes). Vacío = clave efímera (solo dev).
		PrivateKeySeed string `yaml:"private_key_seed"`
	} `yaml:"jwt"`

	Auth struct {
		AccountLockoutCount   int                      `yaml:"account_lockout_count"`
		TokenExpiry           map[string]time.Duration `yaml:"token_expiry"` // clave = TokenType
		InitialPasswordExpiry time.Duration            `yaml:"initial_password_expiry"`
		PasswordAge           time.Duration            `yaml:"password_age"`
		PasswordPolicy        struct {
			MinLength     int  `yaml:"min_length"`
			MaxLength     int  `yaml:"max_length"`
			RequireUpper  bool `yaml:"require_upper"`
			RequireLower  bool `yaml:"require_lower"`
			RequireDigit  bool `yaml:"require_digit"`
			RequireSymbol bool `yaml:"require_symbol"`
		} `yaml:"password_policy"`
		PasswordBlacklistPath string `yaml:"password_blacklist_path"`
	} `yaml:"auth"`

	Directories struct {
		Nomis  DirectoryConfig `yaml:"nomis"`
		Delius struct {
			DirectoryConfig `yaml:",inline"`
			// codigo de rol del directorio -> authority local
			RoleMappings map[string][]string `yaml:"role_mappings"`
		} `yaml:"delius"`
		Azure struct {
			Enabled bool `yaml:"enabled"`
		} `yaml:"azure"`
	} `yaml:"directories"`

	MFA struct {
		ApprovedNetworks   []string      `yaml:"approved_networks"`
		RememberMeExpiry   time.Duration `yaml:"remember_me_expiry"`
		LegacyDiaryClient  string        `yaml:"legacy_diary_client"`
		LegacyMigratedRole string        `yaml:"legacy_migrated_role"`
	} `yaml:"mfa"`

	TokenVerification struct {
		Enabled  bool          `yaml:"enabled"`
		BaseURL  string        `yaml:"base_url"`
		ClientID string        `yaml:"client_id"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"token_verification"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		Login   struct {
			Limit  int           `yaml:"limit"`
			Window time.Duration `yaml:"window"`
		} `yaml:"login"`
	} `yaml:"rate"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Notify struct {
		// Directorio con plantillas <id>.subject.tmpl / <id>.txt.tmpl; vacío = plantillas embebidas.
		TemplatesDir string `yaml:"templates_dir"`
		BaseURL      string `yaml:"base_url"`
	} `yaml:"notify"`
}

// Load lee el YAML, aplica defaults y overrides por entorno.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "sa:"
	}
	if c.Redis.TokenRetention == 0 {
		c.Redis.TokenRetention = 24 * time.Hour
	}
	if c.Cache.ClientTTL == 0 {
		c.Cache.ClientTTL = 2 * time.Minute
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "http://localhost:8080"
	}
	if c.JWT.KID == "" {
		c.JWT.KID = "staffauth-1"
	}
	if c.JWT.AccessTTL == 0 {
		c.JWT.AccessTTL = 20 * time.Minute
	}
	if c.JWT.RefreshTTL == 0 {
		c.JWT.RefreshTTL = 12 * time.Hour
	}
	// Auth defaults
	if c.Auth.AccountLockoutCount == 0 {
		c.Auth.AccountLockoutCount = 3
	}
	if c.Auth.InitialPasswordExpiry == 0 {
		c.Auth.InitialPasswordExpiry = 7 * 24 * time.Hour
	}
	if c.Auth.PasswordAge == 0 {
		c.Auth.PasswordAge = 28 * 24 * time.Hour
	}
	if c.Auth.PasswordPolicy.MinLength == 0 {
		c.Auth.PasswordPolicy.MinLength = 9
		c.Auth.PasswordPolicy.MaxLength = 100
		c.Auth.PasswordPolicy.RequireLower = true
		c.Auth.PasswordPolicy.RequireDigit = true
	}
	if c.Directories.Nomis.ConnectTimeout == 0 {
		c.Directories.Nomis.ConnectTimeout = 2 * time.Second
	}
	if c.Directories.Nomis.ReadTimeout == 0 {
		c.Directories.Nomis.ReadTimeout = 10 * time.Second
	}
	if c.Directories.Delius.ConnectTimeout == 0 {
		c.Directories.Delius.ConnectTimeout = 2 * time.Second
	}
	if c.Directories.Delius.ReadTimeout == 0 {
		c.Directories.Delius.ReadTimeout = 10 * time.Second
	}
	if c.MFA.RememberMeExpiry == 0 {
		c.MFA.RememberMeExpiry = 7 * 24 * time.Hour
	}
	if c.MFA.LegacyDiaryClient == "" {
		c.MFA.LegacyDiaryClient = "my-diary"
	}
	if c.MFA.LegacyMigratedRole == "" {
		c.MFA.LegacyMigratedRole = "ROLE_CMD_MIGRATED_MFA"
	}
	if c.TokenVerification.ClientID == "" {
		c.TokenVerification.ClientID = "token-verification-api-client"
	}
	if c.TokenVerification.Timeout == 0 {
		c.TokenVerification.Timeout = 5 * time.Second
	}
	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	if c.Rate.Login.Window == 0 {
		c.Rate.Login.Window = time.Minute
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.Postgres.AutoMigrate = v
	}
	if v, ok := getEnvStr("STORAGE_CLIENTS_FILE"); ok {
		c.Storage.ClientsFile = v
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_PRIVATE_KEY_SEED"); ok {
		c.JWT.PrivateKeySeed = v
	}
	if v, ok := getEnvDur("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}

	// AUTH
	if v, ok := getEnvInt("AUTH_ACCOUNT_LOCKOUT_COUNT"); ok {
		c.Auth.AccountLockoutCount = v
	}
	if v, ok := getEnvStr("AUTH_PASSWORD_BLACKLIST_PATH"); ok {
		c.Auth.PasswordBlacklistPath = v
	}

	// DIRECTORIES
	if v, ok := getEnvStr("NOMIS_BASE_URL"); ok {
		c.Directories.Nomis.BaseURL = v
	}
	if v, ok := getEnvBool("NOMIS_ENABLED"); ok {
		c.Directories.Nomis.Enabled = v
	}
	if v, ok := getEnvStr("DELIUS_BASE_URL"); ok {
		c.Directories.Delius.BaseURL = v
	}
	if v, ok := getEnvBool("DELIUS_ENABLED"); ok {
		c.Directories.Delius.Enabled = v
	}
	if v, ok := getEnvBool("AZURE_ENABLED"); ok {
		c.Directories.Azure.Enabled = v
	}

	// MFA
	if v, ok := getEnvCSV("MFA_APPROVED_NETWORKS"); ok {
		c.MFA.ApprovedNetworks = v
	}

	// TOKEN VERIFICATION
	if v, ok := getEnvBool("TOKEN_VERIFICATION_ENABLED"); ok {
		c.TokenVerification.Enabled = v
	}
	if v, ok := getEnvStr("TOKEN_VERIFICATION_BASE_URL"); ok {
		c.TokenVerification.BaseURL = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
}

// Validate rechaza combinaciones inválidas de configuración.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Auth.AccountLockoutCount < 1 {
		return fmt.Errorf("config: auth.account_lockout_count must be >= 1")
	}
	if c.Directories.Nomis.Enabled && c.Directories.Nomis.BaseURL == "" {
		return fmt.Errorf("config: directories.nomis.base_url is required when enabled")
	}
	if c.Directories.Delius.Enabled && c.Directories.Delius.BaseURL == "" {
		return fmt.Errorf("config: directories.delius.base_url is required when enabled")
	}
	if c.TokenVerification.Enabled && c.TokenVerification.BaseURL == "" {
		return fmt.Errorf("config: token_verification.base_url is required when enabled")
	}
	if c.App.Env == "prod" && c.JWT.PrivateKeySeed == "" {
		return fmt.Errorf("config: jwt.private_key_seed is required in prod")
	}
	return nil
}

// IsProd indica si corre en producción.
func (c *Config) IsProd() bool { return c.App.Env == "prod" }

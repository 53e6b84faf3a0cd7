package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

const (
	DriverSQLServer = "sqlserver"
	DriverMSSQL     = "mssql"

	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	AI            AIConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  string
}

// AllowedOrigins splits the comma-separated CORS origin list.
func (c HTTPConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// DatabaseConfig describes how the inspector reaches SQL Server. Exactly one
// authentication mode is active: integrated (Windows) identity when
// UseWindowsAuth is set, explicit User and Password otherwise.
type DatabaseConfig struct {
	Host                   string
	Port                   int
	Instance               string
	UseWindowsAuth         bool
	User                   string
	Password               string
	Driver                 string
	Encrypt                string
	TrustServerCertificate bool
	ConnectTimeout         time.Duration
	Kerberos               KerberosConfig
}

// KerberosConfig enables integrated authentication through Kerberos on hosts
// without SSPI. It is used only when ConfigFile is set.
type KerberosConfig struct {
	ConfigFile    string
	Realm         string
	KeytabFile    string
	CredCacheFile string
}

func (c DatabaseConfig) AuthMethod() string {
	if c.UseWindowsAuth {
		return "Windows Authentication"
	}
	return fmt.Sprintf("SQL Authentication (user %q)", c.User)
}

type AIConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Timeout     time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

func LoadFromEnv(serviceName string) (Config, error) {
	lookup, err := LayeredLookup(os.Getenv(ConfigFileEnv))
	if err != nil {
		return Config{}, err
	}
	return Load(serviceName, lookup)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("TSQLGEN_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid TSQLGEN_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "TSQLGEN_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TSQLGEN_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TSQLGEN_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TSQLGEN_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_HTTP_CORS_ORIGINS", &cfg.HTTP.CORSOrigins); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_HOST", &cfg.Database.Host); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TSQLGEN_DB_PORT", &cfg.Database.Port); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_INSTANCE", &cfg.Database.Instance); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TSQLGEN_DB_USE_WINDOWS_AUTH", &cfg.Database.UseWindowsAuth); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_USER", &cfg.Database.User); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_PASSWORD", &cfg.Database.Password); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_ENCRYPT", &cfg.Database.Encrypt); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TSQLGEN_DB_TRUST_SERVER_CERTIFICATE", &cfg.Database.TrustServerCertificate); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_KRB5_CONFIG", &cfg.Database.Kerberos.ConfigFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_KRB5_REALM", &cfg.Database.Kerberos.Realm); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_KRB5_KEYTAB", &cfg.Database.Kerberos.KeytabFile); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_DB_KRB5_CCACHE", &cfg.Database.Kerberos.CredCacheFile); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TSQLGEN_DB_CONNECT_TIMEOUT", &cfg.Database.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_AI_PROVIDER", &cfg.AI.Provider); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_AI_BASE_URL", &cfg.AI.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_AI_API_KEY", &cfg.AI.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "TSQLGEN_AI_MODEL", &cfg.AI.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "TSQLGEN_AI_TEMPERATURE", &cfg.AI.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "TSQLGEN_AI_MAX_TOKENS", &cfg.AI.MaxTokens); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "TSQLGEN_AI_TOP_P", &cfg.AI.TopP); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "TSQLGEN_AI_TIMEOUT", &cfg.AI.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "TSQLGEN_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "TSQLGEN_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	cfg.AI.Provider = strings.ToLower(cfg.AI.Provider)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	if cfg.Database.Host == "" {
		return fmt.Errorf("TSQLGEN_DB_HOST is required")
	}
	if cfg.Database.Port < 0 || cfg.Database.Port > 65535 {
		return fmt.Errorf("invalid TSQLGEN_DB_PORT: %d", cfg.Database.Port)
	}
	if !cfg.Database.UseWindowsAuth {
		if cfg.Database.User == "" {
			return fmt.Errorf("TSQLGEN_DB_USER must be set if TSQLGEN_DB_USE_WINDOWS_AUTH is false")
		}
		if cfg.Database.Password == "" {
			return fmt.Errorf("TSQLGEN_DB_PASSWORD must be set if TSQLGEN_DB_USE_WINDOWS_AUTH is false")
		}
	}
	switch cfg.Database.Driver {
	case DriverSQLServer, DriverMSSQL:
	default:
		return fmt.Errorf("invalid TSQLGEN_DB_DRIVER: %q", cfg.Database.Driver)
	}
	if cfg.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("TSQLGEN_DB_CONNECT_TIMEOUT must be positive")
	}
	switch cfg.AI.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("invalid TSQLGEN_AI_PROVIDER: %q", cfg.AI.Provider)
	}
	if cfg.AI.Temperature < 0 || cfg.AI.Temperature > 2 {
		return fmt.Errorf("invalid TSQLGEN_AI_TEMPERATURE: %v", cfg.AI.Temperature)
	}
	if cfg.AI.TopP <= 0 || cfg.AI.TopP > 1 {
		return fmt.Errorf("invalid TSQLGEN_AI_TOP_P: %v", cfg.AI.TopP)
	}
	if cfg.AI.MaxTokens <= 0 {
		return fmt.Errorf("invalid TSQLGEN_AI_MAX_TOKENS: %d", cfg.AI.MaxTokens)
	}
	return nil
}

// Warnings reports settings that load fine but are probably a mistake.
func (cfg Config) Warnings() []string {
	var warnings []string
	if cfg.Database.UseWindowsAuth && cfg.Database.Password != "" {
		warnings = append(warnings, "TSQLGEN_DB_PASSWORD is set but TSQLGEN_DB_USE_WINDOWS_AUTH is true; password will be ignored")
	}
	if !cfg.Database.UseWindowsAuth && cfg.Database.Kerberos.ConfigFile != "" {
		warnings = append(warnings, "TSQLGEN_DB_KRB5_CONFIG is set but TSQLGEN_DB_USE_WINDOWS_AUTH is false; kerberos settings will be ignored")
	}
	if cfg.AI.APIKey == "" {
		warnings = append(warnings, "TSQLGEN_AI_API_KEY is empty; SQL generation requests will fail")
	}
	return warnings
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "tsqlgen-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORSOrigins:  "*",
		},
		Database: DatabaseConfig{
			Driver:                 DriverSQLServer,
			Encrypt:                "true",
			TrustServerCertificate: true,
			ConnectTimeout:         30 * time.Second,
		},
		AI: AIConfig{
			Provider:    ProviderOpenAI,
			Model:       "",
			Temperature: 0.1,
			MaxTokens:   700,
			TopP:        1.0,
			Timeout:     60 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Database.TrustServerCertificate = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}

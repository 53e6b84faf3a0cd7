package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("tsqlgen-api", mapLookup(baseEnv(nil)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.CORSOrigins != "*" {
		t.Fatalf("HTTP.CORSOrigins = %q", cfg.HTTP.CORSOrigins)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.Driver != DriverSQLServer {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.ConnectTimeout != 30*time.Second {
		t.Fatalf("Database.ConnectTimeout = %s", cfg.Database.ConnectTimeout)
	}
	if !cfg.Database.TrustServerCertificate {
		t.Fatal("Database.TrustServerCertificate should default to true in dev")
	}
	if cfg.AI.Provider != ProviderOpenAI {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.Temperature != 0.1 || cfg.AI.MaxTokens != 700 || cfg.AI.TopP != 1.0 {
		t.Fatalf("AI sampling = %v/%d/%v", cfg.AI.Temperature, cfg.AI.MaxTokens, cfg.AI.TopP)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("tsqlgen-api", mapLookup(baseEnv(map[string]string{"TSQLGEN_PROFILE": "prod"})))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.TrustServerCertificate {
		t.Fatal("Database.TrustServerCertificate should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("tsqlgen-api", mapLookup(map[string]string{
		"TSQLGEN_PROFILE":                     "test",
		"TSQLGEN_SERVICE_NAME":                "tsqlgen-custom",
		"TSQLGEN_HTTP_ADDR":                   ":9999",
		"TSQLGEN_HTTP_READ_TIMEOUT":           "2s",
		"TSQLGEN_HTTP_WRITE_TIMEOUT":          "3s",
		"TSQLGEN_HTTP_CORS_ORIGINS":           "https://a.example, https://b.example",
		"TSQLGEN_LOG_LEVEL":                   "error",
		"TSQLGEN_DB_HOST":                     "sql01.corp",
		"TSQLGEN_DB_PORT":                     "1434",
		"TSQLGEN_DB_INSTANCE":                 "REPORTING",
		"TSQLGEN_DB_USE_WINDOWS_AUTH":         "true",
		"TSQLGEN_DB_DRIVER":                   "MSSQL",
		"TSQLGEN_DB_ENCRYPT":                  "strict",
		"TSQLGEN_DB_TRUST_SERVER_CERTIFICATE": "false",
		"TSQLGEN_DB_CONNECT_TIMEOUT":          "7s",
		"TSQLGEN_AI_PROVIDER":                 "Anthropic",
		"TSQLGEN_AI_BASE_URL":                 "https://llm.example.com",
		"TSQLGEN_AI_API_KEY":                  "secret-key",
		"TSQLGEN_AI_MODEL":                    "claude-sonnet-4-5",
		"TSQLGEN_AI_TEMPERATURE":              "0.3",
		"TSQLGEN_AI_MAX_TOKENS":               "1200",
		"TSQLGEN_AI_TOP_P":                    "0.9",
		"TSQLGEN_AI_TIMEOUT":                  "21s",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "tsqlgen-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if origins := cfg.HTTP.AllowedOrigins(); len(origins) != 2 || origins[0] != "https://a.example" || origins[1] != "https://b.example" {
		t.Fatalf("HTTP.AllowedOrigins() = %#v", origins)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Database.Host != "sql01.corp" || cfg.Database.Port != 1434 || cfg.Database.Instance != "REPORTING" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
	if !cfg.Database.UseWindowsAuth {
		t.Fatal("Database.UseWindowsAuth = false, want true")
	}
	if cfg.Database.Driver != DriverMSSQL {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.Encrypt != "strict" {
		t.Fatalf("Database.Encrypt = %q", cfg.Database.Encrypt)
	}
	if cfg.Database.TrustServerCertificate {
		t.Fatal("Database.TrustServerCertificate = true, want false")
	}
	if cfg.Database.ConnectTimeout != 7*time.Second {
		t.Fatalf("Database.ConnectTimeout = %s", cfg.Database.ConnectTimeout)
	}
	if cfg.AI.Provider != ProviderAnthropic {
		t.Fatalf("AI.Provider = %q", cfg.AI.Provider)
	}
	if cfg.AI.BaseURL != "https://llm.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "claude-sonnet-4-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 1200 {
		t.Fatalf("AI.MaxTokens = %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.TopP != 0.9 {
		t.Fatalf("AI.TopP = %f", cfg.AI.TopP)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"TSQLGEN_PROFILE": "oops"},
		{"TSQLGEN_HTTP_READ_TIMEOUT": "NaN"},
		{"TSQLGEN_DB_PORT": "oops"},
		{"TSQLGEN_DB_PORT": "70000"},
		{"TSQLGEN_DB_USE_WINDOWS_AUTH": "not-bool"},
		{"TSQLGEN_DB_DRIVER": "postgres"},
		{"TSQLGEN_DB_CONNECT_TIMEOUT": "0s"},
		{"TSQLGEN_AI_PROVIDER": "ollama"},
		{"TSQLGEN_AI_TEMPERATURE": "bad"},
		{"TSQLGEN_AI_TEMPERATURE": "3"},
		{"TSQLGEN_AI_TOP_P": "0"},
		{"TSQLGEN_AI_MAX_TOKENS": "-1"},
		{"TSQLGEN_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("tsqlgen-api", mapLookup(baseEnv(env)))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestLoadRequiresDatabaseHost(t *testing.T) {
	_, err := Load("tsqlgen-api", mapLookup(map[string]string{
		"TSQLGEN_DB_USE_WINDOWS_AUTH": "true",
	}))
	if err == nil || !strings.Contains(err.Error(), "TSQLGEN_DB_HOST") {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadRequiresCredentialsForSQLAuthentication(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "missing user",
			env:  map[string]string{"TSQLGEN_DB_HOST": "sql01", "TSQLGEN_DB_PASSWORD": "pw"},
			want: "TSQLGEN_DB_USER",
		},
		{
			name: "missing password",
			env:  map[string]string{"TSQLGEN_DB_HOST": "sql01", "TSQLGEN_DB_USER": "reporter"},
			want: "TSQLGEN_DB_PASSWORD",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load("tsqlgen-api", mapLookup(tc.env))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() error = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg, err := Load("tsqlgen-api", mapLookup(map[string]string{
		"TSQLGEN_DB_HOST":             "sql01",
		"TSQLGEN_DB_USE_WINDOWS_AUTH": "true",
		"TSQLGEN_DB_PASSWORD":         "ignored",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	warnings := cfg.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("Warnings() = %#v", warnings)
	}
	if got := cfg.Database.AuthMethod(); got != "Windows Authentication" {
		t.Fatalf("AuthMethod() = %q", got)
	}
}

func TestLoadKerberosSettings(t *testing.T) {
	cfg, err := Load("tsqlgen-api", mapLookup(map[string]string{
		"TSQLGEN_DB_HOST":             "sql01",
		"TSQLGEN_DB_USE_WINDOWS_AUTH": "true",
		"TSQLGEN_DB_KRB5_CONFIG":      "/etc/krb5.conf",
		"TSQLGEN_DB_KRB5_REALM":       "CORP.EXAMPLE",
		"TSQLGEN_DB_KRB5_CCACHE":      "/tmp/krb5cc_1000",
		"TSQLGEN_AI_API_KEY":          "sk-test",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := KerberosConfig{ConfigFile: "/etc/krb5.conf", Realm: "CORP.EXAMPLE", CredCacheFile: "/tmp/krb5cc_1000"}
	if cfg.Database.Kerberos != want {
		t.Fatalf("Kerberos = %+v, want %+v", cfg.Database.Kerberos, want)
	}
	if warnings := cfg.Warnings(); len(warnings) != 0 {
		t.Fatalf("Warnings() = %#v", warnings)
	}

	cfg, err = Load("tsqlgen-api", mapLookup(baseEnv(map[string]string{
		"TSQLGEN_DB_KRB5_CONFIG": "/etc/krb5.conf",
		"TSQLGEN_AI_API_KEY":     "sk-test",
	})))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if warnings := cfg.Warnings(); len(warnings) != 1 || !strings.Contains(warnings[0], "TSQLGEN_DB_KRB5_CONFIG") {
		t.Fatalf("Warnings() = %#v", warnings)
	}
}

func TestLayeredLookupPrefersEnvOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tsqlgen.yaml")
	content := "db_host: file-host\ndb_user: file-user\ndb_password: file-pass\nai_temperature: 0.2\nlog_json: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("TSQLGEN_DB_HOST", "env-host")

	lookup, err := LayeredLookup(path)
	if err != nil {
		t.Fatalf("LayeredLookup() error = %v", err)
	}
	cfg, err := Load("tsqlgen-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Host != "env-host" {
		t.Fatalf("Database.Host = %q", cfg.Database.Host)
	}
	if cfg.Database.User != "file-user" {
		t.Fatalf("Database.User = %q", cfg.Database.User)
	}
	if cfg.AI.Temperature != 0.2 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON = true, want false from file")
	}
}

func TestLayeredLookupMissingFile(t *testing.T) {
	if _, err := LayeredLookup(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func baseEnv(extra map[string]string) map[string]string {
	env := map[string]string{
		"TSQLGEN_DB_HOST":     "localhost",
		"TSQLGEN_DB_USER":     "sa",
		"TSQLGEN_DB_PASSWORD": "secret",
	}
	for key, value := range extra {
		env[key] = value
	}
	return env
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

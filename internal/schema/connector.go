package schema

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

// Connector opens a dedicated, already verified connection handle. An empty
// database name connects without binding to a database.
type Connector interface {
	Open(ctx context.Context, database string) (*sql.DB, error)
}

type SQLServerConfig struct {
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
	AppName                string
	Kerberos               KerberosConfig
}

// KerberosConfig selects the driver's krb5 authenticator for integrated
// authentication. Without ConfigFile the driver default is used: SSPI on
// Windows, NTLM elsewhere.
type KerberosConfig struct {
	ConfigFile    string
	Realm         string
	KeytabFile    string
	CredCacheFile string
}

type SQLServerConnector struct {
	cfg SQLServerConfig
}

func NewSQLServerConnector(cfg SQLServerConfig) (*SQLServerConnector, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("sql server host is required")
	}
	if !cfg.UseWindowsAuth && (cfg.User == "" || cfg.Password == "") {
		return nil, fmt.Errorf("user and password are required without windows authentication")
	}
	if cfg.Driver == "" {
		cfg.Driver = "sqlserver"
	}
	if cfg.Encrypt == "" {
		cfg.Encrypt = "true"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	return &SQLServerConnector{cfg: cfg}, nil
}

// DSN builds a go-mssqldb URL. Without SQL credentials the driver falls back
// to integrated authentication for the process identity. With a keytab, User
// names the Kerberos principal.
func (c *SQLServerConnector) DSN(database string) string {
	query := url.Values{}
	if database != "" {
		query.Set("database", database)
	}
	query.Set("encrypt", c.cfg.Encrypt)
	query.Set("TrustServerCertificate", strconv.FormatBool(c.cfg.TrustServerCertificate))
	query.Set("connection timeout", strconv.Itoa(int(c.cfg.ConnectTimeout/time.Second)))
	if c.cfg.AppName != "" {
		query.Set("app name", c.cfg.AppName)
	}
	krb := c.cfg.Kerberos
	useKerberos := c.cfg.UseWindowsAuth && krb.ConfigFile != ""
	if useKerberos {
		query.Set("authenticator", "krb5")
		query.Set("krb5-configfile", krb.ConfigFile)
		setIfNotEmpty(query, "krb5-realm", krb.Realm)
		setIfNotEmpty(query, "krb5-keytabfile", krb.KeytabFile)
		setIfNotEmpty(query, "krb5-credcachefile", krb.CredCacheFile)
	}

	host := c.cfg.Host
	if c.cfg.Port > 0 {
		host = net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     host,
		RawQuery: query.Encode(),
	}
	if c.cfg.Instance != "" {
		u.Path = c.cfg.Instance
	}
	switch {
	case !c.cfg.UseWindowsAuth:
		u.User = url.UserPassword(c.cfg.User, c.cfg.Password)
	case useKerberos && krb.KeytabFile != "" && c.cfg.User != "":
		u.User = url.User(c.cfg.User)
	}
	return u.String()
}

func setIfNotEmpty(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

func (c *SQLServerConnector) Open(ctx context.Context, database string) (*sql.DB, error) {
	db, err := sql.Open(c.cfg.Driver, c.DSN(database))
	if err != nil {
		return nil, fmt.Errorf("open sql server handle: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to sql server: %w", err)
	}
	return db, nil
}

package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// Config holds database connection settings shared across bots.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// ConnMaxLifetime recycles pooled connections; 0 keeps them forever.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"DB_CONN_MAX_LIFETIME"`
	// MigrationsDir overrides the default ./migrations lookup.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
	// WaitTimeout, when set, keeps retrying until Postgres accepts connections.
	WaitTimeout time.Duration `yaml:"wait_timeout" envconfig:"DB_WAIT_TIMEOUT"`
}

// DSN returns the lib/pq keyword/value connection string with values quoted.
func (c Config) DSN() string {
	pairs := []struct{ k, v string }{
		{"user", c.User},
		{"password", c.Password},
		{"host", c.Host},
		{"port", c.Port},
		{"dbname", c.Name},
		{"sslmode", c.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.k+"="+quoteDSN(p.v))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// URL returns the postgres:// form expected by golang-migrate.
func (c Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Normalize checks required settings and fills defaults for the rest.
func (c *Config) Normalize() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.WaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("database.wait_timeout must be >= 0, got %s", c.WaitTimeout))
	}
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	return errors.Join(errs...)
}

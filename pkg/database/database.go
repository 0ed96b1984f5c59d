package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jmoiron/sqlx"
	"github.com/jordanlanch/crmleads/pkg/logger"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Client holds the database handle
type Client struct {
	DB      *sqlx.DB
	dialect string
	logger  logger.Logger
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxOpenConns    int           // Maximum number of open connections
	MaxIdleConns    int           // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum amount of time a connection may be reused
	ConnMaxIdleTime time.Duration // Maximum amount of time a connection may be idle
}

// SSLConfig holds SSL/TLS configuration for database connections
type SSLConfig struct {
	Mode         string // disable, require, verify-ca, verify-full
	CertPath     string // Path to client certificate
	KeyPath      string // Path to client key
	RootCertPath string // Path to root CA certificate
}

// DefaultPoolConfig returns sensible defaults for connection pooling
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// BuildConnectionString builds a PostgreSQL connection string with SSL parameters
func BuildConnectionString(baseURL string, sslCfg *SSLConfig) (string, error) {
	if sslCfg == nil {
		return baseURL, nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse database URL: %w", err)
	}

	query := parsedURL.Query()

	// Overrides any sslmode already in the URL
	if sslCfg.Mode != "" {
		query.Set("sslmode", sslCfg.Mode)
	}
	if sslCfg.CertPath != "" {
		query.Set("sslcert", sslCfg.CertPath)
	}
	if sslCfg.KeyPath != "" {
		query.Set("sslkey", sslCfg.KeyPath)
	}
	if sslCfg.RootCertPath != "" {
		query.Set("sslrootcert", sslCfg.RootCertPath)
	}

	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

// NewClient opens a database with the default pool and applies the schema.
func NewClient(ctx context.Context, driver, databaseURL string, log logger.Logger) (*Client, error) {
	return NewClientWithPoolAndSSL(ctx, driver, databaseURL, DefaultPoolConfig(), nil, log)
}

// NewClientWithPoolAndSSL opens a database with custom pool and SSL configuration
// and applies the schema. driver is "postgres" or "sqlite3".
func NewClientWithPoolAndSSL(ctx context.Context, driver, databaseURL string, poolCfg PoolConfig, sslCfg *SSLConfig, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Discard()
	}

	var d string
	switch driver {
	case "postgres":
		d = dialect.Postgres
	case "sqlite3":
		d = dialect.SQLite
		// One writer at a time; also keeps a shared in-memory database alive.
		poolCfg.MaxOpenConns = 1
		poolCfg.MaxIdleConns = 1
		poolCfg.ConnMaxLifetime = 0
		poolCfg.ConnMaxIdleTime = 0
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	connStr := databaseURL
	if d == dialect.Postgres {
		var err error
		if connStr, err = BuildConnectionString(databaseURL, sslCfg); err != nil {
			return nil, fmt.Errorf("failed building connection string: %w", err)
		}
		if sslCfg != nil && sslCfg.Mode != "" && sslCfg.Mode != "disable" {
			log.Info("database SSL enabled", "mode", sslCfg.Mode, "root_cert", sslCfg.RootCertPath)
		}
	}

	db, err := sqlx.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to %s: %w", driver, err)
	}

	db.SetMaxOpenConns(poolCfg.MaxOpenConns)
	db.SetMaxIdleConns(poolCfg.MaxIdleConns)
	db.SetConnMaxLifetime(poolCfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(poolCfg.ConnMaxIdleTime)

	log.Info("database connection pool configured",
		"driver", driver,
		"max_open", poolCfg.MaxOpenConns,
		"max_idle", poolCfg.MaxIdleConns,
		"max_lifetime", poolCfg.ConnMaxLifetime.String(),
		"max_idle_time", poolCfg.ConnMaxIdleTime.String())

	c := &Client{DB: db, dialect: d, logger: log}
	if err := c.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed creating schema resources: %w", err)
	}

	log.Info("database connected and migrations applied")
	return c, nil
}

// Dialect returns the ent dialect name used to build queries.
func (c *Client) Dialect() string {
	return c.dialect
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (c *Client) Stats() sql.DBStats {
	return c.DB.Stats()
}

// ABOUTME: Pooled SQL connector for plugins and the deep health check
// ABOUTME: Supports SQLite (modernc, no cgo) and MySQL drivers

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// ErrNotConnected indicates Connect has not been called or failed.
var ErrNotConnected = errors.New("database not connected - call Connect() first")

// ErrUnsupportedDriver indicates database.driver names an unknown driver.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// Settings holds database.* configuration.
type Settings struct {
	Driver   string // sqlite or mysql; empty disables the connector
	Path     string // sqlite file, or ":memory:"
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	PoolSize int
}

// Lookup is the slice of config.Tree that SettingsFrom needs.
type Lookup interface {
	GetString(path, def string) string
	GetInt(path string, def int) int
}

// SettingsFrom reads database.* keys.
func SettingsFrom(cfg Lookup) Settings {
	return Settings{
		Driver:   cfg.GetString("database.driver", ""),
		Path:     cfg.GetString("database.path", ""),
		Host:     cfg.GetString("database.host", "localhost"),
		Port:     cfg.GetInt("database.port", 3306),
		Name:     cfg.GetString("database.name", ""),
		User:     cfg.GetString("database.user", ""),
		Password: cfg.GetString("database.password", ""),
		PoolSize: cfg.GetInt("database.pool_size", 10),
	}
}

// Enabled reports whether a driver is configured.
func (s Settings) Enabled() bool { return s.Driver != "" }

// DSN builds the driver name and data source name.
func (s Settings) DSN() (driver, dsn string, err error) {
	switch s.Driver {
	case "sqlite", "sqlite3":
		if s.Path == "" {
			return "", "", fmt.Errorf("database.path is required for sqlite")
		}
		return "sqlite", s.Path, nil
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = s.User
		cfg.Passwd = s.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
		cfg.DBName = s.Name
		cfg.ParseTime = true
		return "mysql", cfg.FormatDSN(), nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, s.Driver)
}

// Connector owns a connection pool.
type Connector struct {
	settings Settings
	logger   *slog.Logger

	mu sync.RWMutex
	db *sql.DB
}

// New creates an unconnected Connector.
func New(s Settings, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	if s.PoolSize <= 0 {
		s.PoolSize = 10
	}
	return &Connector{settings: s, logger: logger.With("component", "db")}
}

// Connect opens the pool and verifies it with a ping.
func (c *Connector) Connect(ctx context.Context) error {
	driver, dsn, err := c.settings.DSN()
	if err != nil {
		return err
	}

	if driver == "sqlite" && c.settings.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(c.settings.Path), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	pool.SetMaxOpenConns(c.settings.PoolSize)
	pool.SetMaxIdleConns(min(2, c.settings.PoolSize))
	if driver == "sqlite" && c.settings.Path == ":memory:" {
		// each connection would otherwise get its own empty database
		pool.SetMaxOpenConns(1)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		c.logger.Error("failed to create database pool", "driver", driver, "error", err)
		return fmt.Errorf("connecting to database: %w", err)
	}

	c.mu.Lock()
	old := c.db
	c.db = pool
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}

	c.logger.Info("database pool created", "driver", driver, "database", c.target())
	return nil
}

// Close releases the pool. Safe to call when not connected.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	c.logger.Info("database pool closed")
	return err
}

func (c *Connector) pool() (*sql.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrNotConnected
	}
	return c.db, nil
}

// Query runs a parameterized query and returns rows as column->value maps.
// []byte values are converted to strings.
func (c *Connector) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	pool, err := c.pool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.QueryContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("query failed", "query", query, "error", err)
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = vals[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

// Exec runs a statement and returns the number of affected rows.
func (c *Connector) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	pool, err := c.pool()
	if err != nil {
		return 0, err
	}
	res, err := pool.ExecContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("exec failed", "query", query, "error", err)
		return 0, fmt.Errorf("executing: %w", err)
	}
	return res.RowsAffected()
}

// HealthCheck runs SELECT 1 against the pool.
func (c *Connector) HealthCheck(ctx context.Context) error {
	rows, err := c.Query(ctx, "SELECT 1 AS ok")
	if err != nil {
		return err
	}
	if len(rows) != 1 {
		return fmt.Errorf("health check returned %d rows", len(rows))
	}
	return nil
}

func (c *Connector) target() string {
	if c.settings.Driver == "mysql" {
		return c.settings.Name + "@" + c.settings.Host
	}
	return c.settings.Path
}

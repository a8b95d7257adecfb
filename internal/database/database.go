// Package database opens the MySQL connection the ORM runs on.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/netbrain/simphple-orm/internal/config"
)

// Client manages the connection to MySQL
type Client struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to the configured server and verifies the connection. The
// pool is capped at one connection, so statements run in issue order.
func Open(ctx context.Context, cfg config.MySQLConfig, logger *zap.Logger) (*Client, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewClient(db, logger), nil
}

// NewClient wraps an open handle
func NewClient(db *sql.DB, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{db: db, logger: logger}
}

// DB returns the underlying database handle
func (c *Client) DB() *sql.DB {
	return c.db
}

// ServerVersion returns the version string reported by the server
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	c.logger.Debug("connected", zap.String("server_version", version))
	return version, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

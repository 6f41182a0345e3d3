package pg

import (
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

type Config struct {
	User               string
	Host               string
	Password           string
	Port               int
	DbName             string
	SslMode            string
	MaxOpenConnections int
	MaxIdleConnections int
}

// DSN renders the connection string for the config.
func (c *Config) DSN() string {
	sslMode := c.SslMode
	if len(sslMode) == 0 {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DbName, sslMode,
	)
}

// Open returns a connection pool using username/password credentials over the
// New Relic instrumented pgx driver.
func Open(c *Config) (*sql.DB, error) {
	db, err := sql.Open("nrpgx", c.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection pool")
	}

	if c.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(c.MaxOpenConnections)
	}
	if c.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(c.MaxIdleConnections)
	}

	// Check if the connection was successful
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return db, nil
}

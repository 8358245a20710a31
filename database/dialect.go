package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported dialects.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Dialect normalizes the dialect half of Driver.
func (c *Config) Dialect() (string, error) {
	dialect, _ := c.DriverParts()
	switch dialect {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("postgres.driver: unsupported dialect %q", c.Driver)
	}
}

// Dialector returns the GORM dialector for the configured dialect. The
// driver half ("asyncpg", "psycopg") only names a client library and is
// ignored.
func (c *Config) Dialector() (gorm.Dialector, error) {
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	switch dialect {
	case DialectSQLite:
		return sqlite.Open(c.Name), nil
	default:
		return postgres.Open(c.DSN()), nil
	}
}

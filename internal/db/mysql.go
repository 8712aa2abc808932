// Package db opens the MySQL connection shared by the server and the seed
// command.
package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// NewMySQL returns a connected GORM handle. Statement caching is enabled:
// every auth endpoint funnels through the same handful of small user queries.
func NewMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect mysql %s: %w", redactDSN(dsn), err)
	}
	return db, nil
}

// redactDSN strips credentials from a DSN before it can reach a log line.
func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		return "***" + dsn[at:]
	}
	return dsn
}

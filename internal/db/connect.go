// Package db opens the database used by the sqlite and mysql message
// store backends.
package db

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zulandar/relay/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN from the store settings.
func DSN(c config.MySQLConfig) string {
	dc := gomysql.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dc.DBName = c.Database
	dc.ParseTime = true
	return dc.FormatDSN()
}

// ConnectMySQL opens a GORM connection to a MySQL-compatible server.
func ConnectMySQL(c config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(DSN(c)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", c.Host, c.Port, c.Database, err)
	}
	return db, nil
}

// ConnectSQLite opens (creating if needed) a SQLite database file.
// Pass ":memory:" for a private in-memory database.
func ConnectSQLite(path string) (*gorm.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("db: create dir for %s: %w", path, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}

// Connect opens the database for the configured backend and migrates it.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var (
		gormDB *gorm.DB
		err    error
	)
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		gormDB, err = ConnectSQLite(cfg.Layout().SQLiteFile())
	case config.BackendMySQL:
		gormDB, err = ConnectMySQL(cfg.Store.MySQL)
	default:
		return nil, fmt.Errorf("db: backend %q has no database", cfg.Store.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return gormDB, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open(DriverMySQL, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, ping(db)
}

// OpenSQLite opens a SQLite database file.  ":memory:" gives a private
// database that lives as long as the single pooled connection.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	db, err := sql.Open(DriverSQLite, dsn+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway; one connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	return db, ping(db)
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

// Migrate creates the accounts table when it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case DriverMySQL:
		stmts = mysqlSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var mysqlSchema = []string{`
CREATE TABLE IF NOT EXISTS accounts (
  id                      BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
  email                   VARCHAR(255) NOT NULL,
  full_name               VARCHAR(255) NOT NULL,
  phone_number            VARCHAR(50)  NOT NULL,
  city                    VARCHAR(100) NOT NULL DEFAULT 'Abuja',
  role                    ENUM('customer','vendor','rider') NOT NULL,
  password_hash           VARCHAR(255) NULL,
  is_active               TINYINT(1)   NOT NULL DEFAULT 0,
  activation_token        VARCHAR(255) NULL,
  activation_token_expiry DATETIME(6)  NULL,
  refresh_token_hash      CHAR(64)     NULL,
  last_login              DATETIME(6)  NULL,
  deactivated_at          DATETIME(6)  NULL,
  created_at              DATETIME(6)  NOT NULL,
  updated_at              DATETIME(6)  NOT NULL,
  UNIQUE KEY uq_accounts_email (email),
  UNIQUE KEY uq_accounts_phone_number (phone_number),
  KEY idx_accounts_role (role),
  KEY idx_accounts_refresh_token_hash (refresh_token_hash)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS accounts (
  id                      INTEGER PRIMARY KEY AUTOINCREMENT,
  email                   TEXT NOT NULL UNIQUE,
  full_name               TEXT NOT NULL,
  phone_number            TEXT NOT NULL UNIQUE,
  city                    TEXT NOT NULL DEFAULT 'Abuja',
  role                    TEXT NOT NULL CHECK (role IN ('customer','vendor','rider')),
  password_hash           TEXT NULL,
  is_active               INTEGER NOT NULL DEFAULT 0,
  activation_token        TEXT NULL,
  activation_token_expiry DATETIME NULL,
  refresh_token_hash      TEXT NULL,
  last_login              DATETIME NULL,
  deactivated_at          DATETIME NULL,
  created_at              DATETIME NOT NULL,
  updated_at              DATETIME NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_role ON accounts (role)`,
	`CREATE INDEX IF NOT EXISTS idx_accounts_refresh_token_hash ON accounts (refresh_token_hash)`,
}

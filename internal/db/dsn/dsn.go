// Package dsn provides Data Source Name construction utilities for database connections.
package dsn

import (
	"fmt"
	"net/url"

	"github.com/cardforge/cardforge/internal/config"
)

// Create builds the gorm DSN for the configured engine.
func Create(cfg *config.Config) string {
	switch cfg.DB.GormEngine {
	case config.EnginePostgres:
		return postgresKeyValue(cfg.DB)
	case config.EngineSQLite:
		return SQLitePath(cfg.DB)
	default:
		return MySQL(cfg.DB)
	}
}

// MySQL builds a go-sql-driver DSN, also accepted by the mysql session storage.
func MySQL(db config.DB) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		db.User,
		db.Password,
		db.Host,
		db.Port,
		db.Name,
		db.Extras,
	)
}

func postgresKeyValue(db config.DB) string {
	out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		db.Host, db.Port, db.User, db.Password, db.Name)

	if db.Extras != "" {
		out += " " + db.Extras
	}

	return out
}

// PostgresURI builds a postgres:// URI for the session storage, which does not take key/value DSNs.
// Extras are expected as query string, e.g. "sslmode=disable".
func PostgresURI(db config.DB) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     "/" + db.Name,
		RawQuery: db.Extras,
	}

	return u.String()
}

// SQLitePath returns the database file, an in-memory database when Path is empty.
func SQLitePath(db config.DB) string {
	if db.Path == "" {
		return "file::memory:?cache=shared"
	}

	return db.Path
}

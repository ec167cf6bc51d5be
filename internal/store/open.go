package store

import "fmt"

// Open builds a repository from config. driver is "sqlite" or "postgres";
// dsn is a file path for sqlite and a connection string for postgres.
func Open(driver, dsn string) (Repository, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

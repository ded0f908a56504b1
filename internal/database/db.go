package database

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// Database implements the engine's persistence port on Postgres.
type Database struct {
	db *sql.DB
}

func NewDatabase(connStr string) (*Database, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping reports connection health for /healthz.
func (d *Database) Ping() error {
	return d.db.Ping()
}

// GetDB returns the underlying database connection.
func (d *Database) GetDB() *sql.DB {
	return d.db
}

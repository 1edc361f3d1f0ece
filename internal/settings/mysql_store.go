package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

const (
	createOptionsTable = `CREATE TABLE IF NOT EXISTS loginzap_options (
	option_name  VARCHAR(191) NOT NULL PRIMARY KEY,
	option_value LONGTEXT NOT NULL
)`
	selectOption = `SELECT option_value FROM loginzap_options WHERE option_name = ?`
	upsertOption = `INSERT INTO loginzap_options (option_name, option_value) VALUES (?, ?)
ON DUPLICATE KEY UPDATE option_value = VALUES(option_value)`
)

// MySQLStore keeps options in a MySQL/MariaDB table.
type MySQLStore struct {
	db *sql.DB
}

// OpenMySQL connects using a go-sql-driver DSN and ensures the options table exists.
func OpenMySQL(ctx context.Context, dsn string) (*MySQLStore, error) {
	if dsn == "" {
		return nil, errors.New("mysql settings backend requires a dsn")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if _, err := db.ExecContext(ctx, createOptionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create options table: %w", err)
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, selectOption, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query option %q: %w", key, err)
	}
	return value, nil
}

func (s *MySQLStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, upsertOption, key, value); err != nil {
		return fmt.Errorf("store option %q: %w", key, err)
	}
	return nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

package database

import (
	"database/sql"
	"fmt"
	"time"

	"repair-marketplace/internal/config"
	"repair-marketplace/internal/logger"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
)

// DB представляет подключение к PostgreSQL
type DB struct {
	*sql.DB
	log *logger.Logger
}

// Connect создает подключение к базе данных и проверяет его с повторными попытками
func Connect(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s connect_timeout=5",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	retries := cfg.ConnectRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries))

	err = backoff.RetryNotify(sqlDB.Ping, policy, func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait.String()).Warn("Database is not reachable yet")
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"host":   cfg.Host,
		"dbname": cfg.DBName,
	}).Info("Successfully connected to database")

	return &DB{DB: sqlDB, log: log}, nil
}

// Close закрывает подключение к базе данных
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

// Health проверяет доступность базы данных
func (db *DB) Health() error {
	if db == nil || db.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	return db.Ping()
}

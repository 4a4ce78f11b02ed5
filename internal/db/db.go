package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// InitDB opens the MySQL pool. parseTime is forced on so DATETIME columns scan into time.Time.
func InitDB(dbURL string, opts PoolOptions) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dbURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_URL: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		phone VARCHAR(20) NOT NULL,
		name VARCHAR(100),
		role VARCHAR(20) NOT NULL DEFAULT 'user',
		wallet_balance DECIMAL(14,2) NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_phone (phone),
		CONSTRAINT chk_wallet_balance CHECK (wallet_balance >= 0)
	);`,
	`CREATE TABLE IF NOT EXISTS otp_codes (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		phone VARCHAR(20) NOT NULL,
		code_hash VARCHAR(255) NOT NULL,
		expires_at DATETIME NOT NULL,
		attempts INT NOT NULL DEFAULT 0,
		consumed_at DATETIME NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_otp_phone (phone, created_at)
	);`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT NOT NULL,
		type VARCHAR(20) NOT NULL,
		amount DECIMAL(14,2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		description VARCHAR(255) NULL,
		reference_id VARCHAR(64) NULL,
		refund_of BIGINT NULL,
		created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_transactions_refund_of (refund_of),
		INDEX idx_transactions_user (user_id, created_at),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);`,
	`CREATE TABLE IF NOT EXISTS recharges (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		transaction_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		operator_code VARCHAR(50) NOT NULL,
		recharge_number VARCHAR(30) NOT NULL,
		amount DECIMAL(14,2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		reference_id VARCHAR(64) NOT NULL,
		provider_txn_id VARCHAR(100) NULL,
		api_response TEXT NULL,
		needs_review BOOLEAN NOT NULL DEFAULT FALSE,
		review_reason VARCHAR(255) NULL,
		created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_recharges_transaction (transaction_id),
		UNIQUE KEY uq_recharges_reference (reference_id),
		INDEX idx_recharges_status (status, needs_review, created_at),
		FOREIGN KEY (transaction_id) REFERENCES transactions(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);`,
	`CREATE TABLE IF NOT EXISTS operators (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		operator_code VARCHAR(50) NOT NULL,
		operator_name VARCHAR(100) NOT NULL,
		service_type VARCHAR(50) NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_operators_code (operator_code)
	);`,
	`CREATE TABLE IF NOT EXISTS banks (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		bank_code VARCHAR(50) NOT NULL,
		bank_name VARCHAR(150) NOT NULL,
		ifsc VARCHAR(20) NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_banks_code (bank_code)
	);`,
}

func RunMigrations(db *sql.DB) error {
	for i, q := range migrations {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

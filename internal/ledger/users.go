package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recharge-wallet/internal/models"
)

// EnsureUser returns the account for phone, creating an empty wallet on first login.
func (s *Store) EnsureUser(ctx context.Context, phone string) (*models.User, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (phone, role) VALUES (?, ?) ON DUPLICATE KEY UPDATE id = id",
		phone, string(models.RoleUser),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.getUser(ctx, "phone = ?", phone)
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.getUser(ctx, "id = ?", userID)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var (
		user models.User
		name sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, phone, name, role, wallet_balance, created_at, updated_at FROM users WHERE "+where,
		arg,
	).Scan(&user.ID, &user.Phone, &name, &user.Role, &user.WalletBalance, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	user.Name = name.String
	return &user, nil
}

func (s *Store) CreateOTP(ctx context.Context, phone, codeHash string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO otp_codes (phone, code_hash, expires_at) VALUES (?, ?, ?)",
		phone, codeHash, expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

// LatestOTP returns the most recent unconsumed code issued to phone.
func (s *Store) LatestOTP(ctx context.Context, phone string) (*models.OTPCode, error) {
	var (
		otp        models.OTPCode
		consumedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, phone, code_hash, expires_at, attempts, consumed_at
		 FROM otp_codes
		 WHERE phone = ? AND consumed_at IS NULL
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		phone,
	).Scan(&otp.ID, &otp.Phone, &otp.CodeHash, &otp.ExpiresAt, &otp.Attempts, &consumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if consumedAt.Valid {
		otp.ConsumedAt = &consumedAt.Time
	}
	return &otp, nil
}

func (s *Store) IncrementOTPAttempts(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE otp_codes SET attempts = attempts + 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to record otp attempt: %w", err)
	}
	return nil
}

// ConsumeOTP marks the code used. It reports false when another request consumed it first.
func (s *Store) ConsumeOTP(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE otp_codes SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL",
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume otp: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read otp update result: %w", err)
	}
	return n == 1, nil
}

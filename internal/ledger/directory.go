package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"recharge-wallet/internal/models"
)

const operatorColumns = "id, operator_code, operator_name, service_type, is_active, updated_at"

// GetOperator resolves ref as an operator code first and, when ref is numeric,
// falls back to the internal id.
func (s *Store) GetOperator(ctx context.Context, ref string) (*models.Operator, error) {
	op, err := s.scanOperator(s.db.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE operator_code = ?", ref,
	))
	if err == nil || !errors.Is(err, ErrOperatorNotFound) {
		return op, err
	}

	id, convErr := strconv.ParseInt(ref, 10, 64)
	if convErr != nil {
		return nil, ErrOperatorNotFound
	}
	return s.scanOperator(s.db.QueryRowContext(ctx,
		"SELECT "+operatorColumns+" FROM operators WHERE id = ?", id,
	))
}

func (s *Store) scanOperator(row *sql.Row) (*models.Operator, error) {
	var op models.Operator
	err := row.Scan(&op.ID, &op.OperatorCode, &op.OperatorName, &op.ServiceType, &op.IsActive, &op.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &op, nil
}

func (s *Store) ListOperators(ctx context.Context, activeOnly bool) ([]*models.Operator, error) {
	query := "SELECT " + operatorColumns + " FROM operators"
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY service_type, operator_name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching operators")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var operators []*models.Operator
	for rows.Next() {
		var op models.Operator
		if err := rows.Scan(&op.ID, &op.OperatorCode, &op.OperatorName, &op.ServiceType, &op.IsActive, &op.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning operator: %w", err)
		}
		operators = append(operators, &op)
	}
	return operators, rows.Err()
}

func (s *Store) SetOperatorActive(ctx context.Context, code string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE operators SET is_active = ? WHERE operator_code = ?",
		active, code,
	)
	if err != nil {
		return fmt.Errorf("failed to update operator: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read operator update result: %w", err)
	}
	if n == 0 {
		return ErrOperatorNotFound
	}
	return nil
}

// UpsertOperators writes the whole batch in one unit keyed by operator_code. Rows
// missing from the batch are never deleted, and is_active on existing rows is left to
// local administration.
func (s *Store) UpsertOperators(ctx context.Context, operators []models.Operator) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO operators (operator_code, operator_name, service_type, is_active)
		 VALUES (?, ?, ?, TRUE)
		 ON DUPLICATE KEY UPDATE operator_name = VALUES(operator_name), service_type = VALUES(service_type)`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare operator upsert: %w", err)
	}
	defer stmt.Close()

	for _, op := range operators {
		if _, err := stmt.ExecContext(ctx, op.OperatorCode, op.OperatorName, op.ServiceType); err != nil {
			return 0, fmt.Errorf("failed to upsert operator %s: %w", op.OperatorCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit operator batch: %w", err)
	}
	return len(operators), nil
}

func (s *Store) UpsertBanks(ctx context.Context, banks []models.Bank) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO banks (bank_code, bank_name, ifsc, is_active)
		 VALUES (?, ?, ?, TRUE)
		 ON DUPLICATE KEY UPDATE bank_name = VALUES(bank_name), ifsc = COALESCE(VALUES(ifsc), ifsc)`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bank upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range banks {
		var ifsc sql.NullString
		if b.IFSC != nil {
			ifsc = nullString(*b.IFSC)
		}
		if _, err := stmt.ExecContext(ctx, b.BankCode, b.BankName, ifsc); err != nil {
			return 0, fmt.Errorf("failed to upsert bank %s: %w", b.BankCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bank batch: %w", err)
	}
	return len(banks), nil
}

func (s *Store) ListBanks(ctx context.Context) ([]*models.Bank, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, bank_code, bank_name, ifsc, is_active, updated_at FROM banks WHERE is_active = TRUE ORDER BY bank_name",
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching banks")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var banks []*models.Bank
	for rows.Next() {
		var (
			b    models.Bank
			ifsc sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.BankCode, &b.BankName, &ifsc, &b.IsActive, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning bank: %w", err)
		}
		b.IFSC = stringPtr(ifsc)
		banks = append(banks, &b)
	}
	return banks, rows.Err()
}

package ledger

import (
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRechargeNotFound    = errors.New("recharge not found")
	ErrOperatorNotFound    = errors.New("operator not found")
	ErrNotTerminal         = errors.New("status update must be Success or Failed")
	ErrDuplicateReference  = errors.New("reference id already used")
)

const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDuplicateEntry  = 1062
)

// IsRetryable reports whether err is a transient storage fault: lock wait timeout,
// deadlock victim, or a dropped connection. The whole atomic unit has already been
// rolled back when one of these surfaces.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlLockWaitTimeout || mysqlErr.Number == mysqlDeadlock
	}
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn)
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

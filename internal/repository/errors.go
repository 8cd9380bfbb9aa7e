// Package repository implements persistence on MySQL. The sentinel errors
// below are shared by every repository, including the in-memory ones, so
// that higher layers can tell failure scenarios apart with errors.Is.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update found the row in a
// different state than the caller expected.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert would break a uniqueness rule,
// such as a second active reservation for the same slot.
var ErrDuplicate = errors.New("duplicate")

// ErrEmailExists is returned by UserRepo.Create for a taken email.
var ErrEmailExists = errors.New("email already exists")

const (
	mysqlRowReferenced   = 1451
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isDuplicateKey reports a unique index violation.
func isDuplicateKey(err error) bool {
	return mysqlErrNumber(err) == mysqlDuplicateEntry
}

// isRowReferenced reports a delete refused by a foreign key that still
// points at the row.
func isRowReferenced(err error) bool {
	return mysqlErrNumber(err) == mysqlRowReferenced
}

// isRetryableTx reports errors after which InnoDB rolled the transaction
// back and running it again is safe.
func isRetryableTx(err error) bool {
	switch mysqlErrNumber(err) {
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return true
	}
	return false
}

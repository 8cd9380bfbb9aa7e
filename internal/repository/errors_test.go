package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestMySQLErrorClassification(t *testing.T) {
	dup := fmt.Errorf("insert reservation: %w", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	deadlock := fmt.Errorf("lock reservation slot: %w", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	lockWait := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	other := &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"}

	assert.True(t, isDuplicateKey(dup))
	assert.False(t, isDuplicateKey(deadlock))
	assert.False(t, isDuplicateKey(errors.New("Error 1062: looks similar but is not typed")))

	fk := fmt.Errorf("delete store: %w", &mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"})
	assert.True(t, isRowReferenced(fk))
	assert.False(t, isRowReferenced(dup))

	assert.True(t, isRetryableTx(deadlock))
	assert.True(t, isRetryableTx(lockWait))
	assert.False(t, isRetryableTx(other))
	assert.False(t, isRetryableTx(nil))
}

func TestHaversineKm(t *testing.T) {
	// Seoul City Hall to Busan City Hall is roughly 325 km.
	d := HaversineKm(37.5663, 126.9779, 35.1798, 129.0750)
	assert.InDelta(t, 325, d, 5)
	assert.InDelta(t, 0, HaversineKm(37.5, 127.0, 37.5, 127.0), 1e-9)
	assert.InDelta(t, HaversineKm(1, 2, 3, 4), HaversineKm(3, 4, 1, 2), 1e-9)
}

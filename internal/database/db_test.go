package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squash collapses the column alignment of the DDL to single spaces.
func squash(stmt string) string {
	return strings.Join(strings.Fields(stmt), " ")
}

func TestStatements_CreatesEveryTable(t *testing.T) {
	stmts := Statements()
	require.Len(t, stmts, 5)
	for i, table := range []string{"users", "refresh_tokens", "stores", "reservations", "reviews"} {
		assert.True(t, strings.HasPrefix(stmts[i], "CREATE TABLE IF NOT EXISTS "+table+" "), stmts[i])
	}
}

func TestSchema_ActiveReservationUniqueness(t *testing.T) {
	reservations := squash(Statements()[3])
	assert.Contains(t, reservations, "active_flag TINYINT AS (IF(status <> 'CANCELED', 1, NULL)) STORED")
	assert.Contains(t, reservations, "UNIQUE KEY uq_reservation_active (user_id, store_id, reservation_time, active_flag)")
}

func TestSchema_ReviewsSurviveReservationCleanup(t *testing.T) {
	reviews := squash(Statements()[4])
	assert.Contains(t, reviews, "UNIQUE KEY uq_review_reservation (reservation_id)")
	assert.Contains(t, reviews, "FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE SET NULL")
	assert.Contains(t, reviews, "FOREIGN KEY (store_id) REFERENCES stores(id) ON DELETE CASCADE")
}

func TestOptions_DSN(t *testing.T) {
	dsn := Options{User: "app", Pass: "pw", Host: "db", Port: "3306", Name: "reservations"}.DSN()
	assert.True(t, strings.HasPrefix(dsn, "app:pw@tcp(db:3306)/reservations?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

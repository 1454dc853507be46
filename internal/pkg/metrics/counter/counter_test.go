package counter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildIncrementUpdate(t *testing.T) {
	pairs := []pair{
		{id: 3, inc: 2},
		{id: 9, inc: 1},
	}

	query, args := buildIncrementUpdate("organizations", "lifetime_payments", pairs)

	assert.Equal(t,
		"UPDATE organizations SET lifetime_payments = lifetime_payments + CASE id WHEN ? THEN ? WHEN ? THEN ? END WHERE id IN (?,?)",
		query)
	assert.Equal(t, []interface{}{uint64(3), int64(2), uint64(9), int64(1), uint64(3), uint64(9)}, args)
}

func TestBuildIncrementUpdateSingleRow(t *testing.T) {
	query, args := buildIncrementUpdate("organizations", "lifetime_payments", []pair{{id: 7, inc: 5}})

	assert.Equal(t,
		"UPDATE organizations SET lifetime_payments = lifetime_payments + CASE id WHEN ? THEN ? END WHERE id IN (?)",
		query)
	assert.Len(t, args, 3)
	assert.Equal(t, uint64(7), args[0])
	assert.Equal(t, int64(5), args[1])
	assert.Equal(t, uint64(7), args[2])
}

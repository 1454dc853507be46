package counter

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tillpoint/tillpoint/internal/pkg/cache"
	"github.com/tillpoint/tillpoint/internal/pkg/database"
)

const confirmedPaymentsKey = "payments:counters:confirmed"

// AddConfirmedPayment increments the pending confirmation counter for an
// organization in Redis. Increments are flushed to the database in batches.
func AddConfirmedPayment(orgID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(orgID), 10)
	return cache.GetClient().HIncrBy(ctx, confirmedPaymentsKey, field, 1).Err()
}

// FlushAll flushes pending confirmation counters to the organizations table.
func FlushAll() error {
	return flushHashToTable(confirmedPaymentsKey, "organizations", "lifetime_payments")
}

// StartPeriodicFlush runs FlushAll on a fixed interval in a background
// goroutine for the lifetime of the process.
func StartPeriodicFlush(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := FlushAll(); err != nil {
				log.Printf("Failed to flush confirmation counters: %v", err)
			}
		}
	}()
}

type pair struct {
	id  uint64
	inc int64
}

// flushHashToTable drains a Redis hash atomically and applies batched increments.
// Uses RENAME to a temporary key for atomic drain without losing in-flight increments.
func flushHashToTable(redisKey, table, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := redisKey + ":tmp:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	query, args := buildIncrementUpdate(table, column, pairs)

	db := database.GetDB()
	if err := db.Exec(query, args...).Error; err != nil {
		return err
	}
	return nil
}

// buildIncrementUpdate renders the batched increment statement:
// UPDATE <table> SET <column> = <column> + CASE id WHEN ? THEN ? ... END WHERE id IN (?,...)
func buildIncrementUpdate(table, column string, pairs []pair) (string, []interface{}) {
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*3)
	builder.WriteString("UPDATE ")
	builder.WriteString(table)
	builder.WriteString(" SET ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + CASE id")
	for _, p := range pairs {
		builder.WriteString(" WHEN ? THEN ?")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" END WHERE id IN (")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("?")
		args = append(args, p.id)
	}
	builder.WriteString(")")
	return builder.String(), args
}

package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/Yukky887/ReminderBot/internal/clock"
)

// HandleNotFound processes a database query result, converting sql.ErrNoRows
// to a nil result without error. This is a common pattern for Find* operations
// where a missing row is not an error condition.
//
// Usage:
//
//	var item model.Item
//	err := r.db.GetContext(ctx, &item, query, args...)
//	return HandleNotFound(&item, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Every instant is normalized to UTC on the way in and out of the store.

func utc(t time.Time) time.Time {
	return clock.UTC(t)
}

func utcPtr(t *time.Time) *time.Time {
	return clock.UTCPtr(t)
}

// rowsMatched reports whether a conditional update touched a row.
func rowsMatched(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

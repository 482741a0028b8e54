package datastore

import (
	"context"
	"sync"
	"time"

	glogger "gorm.io/gorm/logger"
)

// QueryLog records every statement gorm executes before handing it to the wrapped logger.
// It is the query counter used when asserting how many round trips an operation costs.
type QueryLog struct {
	next glogger.Interface

	mu         sync.Mutex
	statements []string
}

// NewQueryLog wraps next, which may be nil to discard output.
func NewQueryLog(next glogger.Interface) *QueryLog {
	if next == nil {
		next = glogger.Discard
	}
	return &QueryLog{next: next}
}

func (q *QueryLog) LogMode(level glogger.LogLevel) glogger.Interface {
	q.next = q.next.LogMode(level)
	return q
}

func (q *QueryLog) Info(ctx context.Context, msg string, data ...any) {
	q.next.Info(ctx, msg, data...)
}

func (q *QueryLog) Warn(ctx context.Context, msg string, data ...any) {
	q.next.Warn(ctx, msg, data...)
}

func (q *QueryLog) Error(ctx context.Context, msg string, data ...any) {
	q.next.Error(ctx, msg, data...)
}

func (q *QueryLog) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()

	q.mu.Lock()
	q.statements = append(q.statements, sql)
	q.mu.Unlock()

	q.next.Trace(ctx, begin, fc, err)
}

// Statements returns a copy of the recorded statements.
func (q *QueryLog) Statements() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.statements...)
}

// Count returns how many statements ran since the last Reset.
func (q *QueryLog) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.statements)
}

func (q *QueryLog) Reset() {
	q.mu.Lock()
	q.statements = nil
	q.mu.Unlock()
}

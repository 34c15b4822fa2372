package store

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/qivr/analytics-etl/internal/domain"
)

// Session is a run-scoped handle on the pool. The query providers share it.
type Session struct {
	*TenantQueries
	*UsageQueries
	*OutcomeQueries

	pool      *pgxpool.Pool
	closeOnce sync.Once
}

func NewSession(pool *pgxpool.Pool, timeout time.Duration) *Session {
	return &Session{
		TenantQueries:  NewTenantQueries(pool, timeout),
		UsageQueries:   NewUsageQueries(pool, timeout),
		OutcomeQueries: NewOutcomeQueries(pool, timeout),
		pool:           pool,
	}
}

func (s *Session) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Session) Close() {
	s.closeOnce.Do(s.pool.Close)
}

// querier is the subset of the pool the query providers use.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

var (
	_ domain.Session = (*Session)(nil)
)

package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const slowQueryThreshold = 250 * time.Millisecond

type queryStartKey struct{}

type queryStart struct {
	sql string
	at  time.Time
}

// slowQueryTracer logs failed queries and those slower than threshold.
type slowQueryTracer struct {
	log       zerolog.Logger
	threshold time.Duration
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, at: time.Now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	start, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	elapsed := time.Since(start.at)

	switch {
	case data.Err != nil && ctx.Err() == nil:
		t.log.Warn().Err(data.Err).Str("sql", firstLine(start.sql)).Dur("elapsed", elapsed).Msg("Query failed")
	case elapsed >= t.threshold:
		t.log.Warn().Str("sql", firstLine(start.sql)).Dur("elapsed", elapsed).Int64("rows", data.CommandTag.RowsAffected()).Msg("Slow query")
	}
}

func firstLine(sql string) string {
	for i := 0; i < len(sql); i++ {
		if sql[i] == '\n' {
			return sql[:i]
		}
	}
	return sql
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/MRamiBalles/coinrush/server/internal/infra/storage")

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "sqlite"))
	return tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// SQLitePlayerRepository implements PlayerRepository for SQLite.
type SQLitePlayerRepository struct {
	db *sql.DB
}

func NewSQLitePlayerRepository(db *sql.DB) *SQLitePlayerRepository {
	return &SQLitePlayerRepository{db: db}
}

func (r *SQLitePlayerRepository) Touch(ctx context.Context, wallet string, at time.Time) (err error) {
	ctx, span := startSpan(ctx, "players.touch", attribute.String("player.wallet", wallet))
	defer func() { endSpan(span, err) }()

	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return fmt.Errorf("wallet address is required")
	}

	query := `
		INSERT INTO players (wallet_address, score, weekly_score, last_online)
		VALUES (?, 0, 0, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			last_online=excluded.last_online
	`
	if _, err = r.db.ExecContext(ctx, query, wallet, toMillis(at)); err != nil {
		return fmt.Errorf("failed to touch player %s: %w", wallet, err)
	}
	return nil
}

func (r *SQLitePlayerRepository) AddScore(ctx context.Context, wallet string, score int, at time.Time) (err error) {
	ctx, span := startSpan(ctx, "players.add_score",
		attribute.String("player.wallet", wallet), attribute.Int("player.score", score))
	defer func() { endSpan(span, err) }()

	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return fmt.Errorf("wallet address is required")
	}
	if score < 0 {
		return fmt.Errorf("score must not be negative, got %d", score)
	}

	query := `
		INSERT INTO players (wallet_address, score, weekly_score, last_online)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
			score=players.score + excluded.score,
			weekly_score=players.weekly_score + excluded.weekly_score,
			last_online=excluded.last_online
	`
	if _, err = r.db.ExecContext(ctx, query, wallet, score, score, toMillis(at)); err != nil {
		return fmt.Errorf("failed to add score for %s: %w", wallet, err)
	}
	return nil
}

func (r *SQLitePlayerRepository) Get(ctx context.Context, wallet string) (rec *PlayerRecord, err error) {
	ctx, span := startSpan(ctx, "players.get", attribute.String("player.wallet", wallet))
	defer func() { endSpan(span, err) }()

	query := `SELECT wallet_address, score, weekly_score, last_online FROM players WHERE wallet_address = ?`
	var p PlayerRecord
	var lastOnline int64
	err = r.db.QueryRowContext(ctx, query, wallet).Scan(&p.WalletAddress, &p.Score, &p.WeeklyScore, &lastOnline)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load player %s: %w", wallet, err)
	}
	p.LastOnline = fromMillis(lastOnline)
	return &p, nil
}

// TopWeekly breaks ties by insertion order.
func (r *SQLitePlayerRepository) TopWeekly(ctx context.Context, limit int) (recs []PlayerRecord, err error) {
	ctx, span := startSpan(ctx, "players.top_weekly", attribute.Int("query.limit", limit))
	defer func() { endSpan(span, err) }()

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `SELECT wallet_address, score, weekly_score, last_online FROM players ORDER BY weekly_score DESC, rowid ASC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	recs = make([]PlayerRecord, 0, limit)
	for rows.Next() {
		var p PlayerRecord
		var lastOnline int64
		if err = rows.Scan(&p.WalletAddress, &p.Score, &p.WeeklyScore, &lastOnline); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		p.LastOnline = fromMillis(lastOnline)
		recs = append(recs, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	return recs, nil
}

func (r *SQLitePlayerRepository) ResetWeekly(ctx context.Context) (n int64, err error) {
	ctx, span := startSpan(ctx, "players.reset_weekly")
	defer func() { endSpan(span, err) }()

	res, err := r.db.ExecContext(ctx, `UPDATE players SET weekly_score = 0 WHERE weekly_score <> 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset weekly scores: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reset rows: %w", err)
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", n))
	return n, nil
}

// ---------------------------------------------------------
// SQLiteSessionRepository
// ---------------------------------------------------------

type SQLiteSessionRepository struct {
	db *sql.DB
}

func NewSQLiteSessionRepository(db *sql.DB) *SQLiteSessionRepository {
	return &SQLiteSessionRepository{db: db}
}

func (r *SQLiteSessionRepository) Append(ctx context.Context, rec SessionRecord) (err error) {
	ctx, span := startSpan(ctx, "sessions.append", attribute.String("session.id", rec.ID))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("session id is required")
	}

	query := `
		INSERT INTO sessions (id, started_at, ended_at, player_count, top_wallet, top_score, elimination_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, toMillis(rec.StartedAt), toMillis(rec.EndedAt), rec.PlayerCount,
		rec.TopWallet, rec.TopScore, rec.EliminationMode,
	)
	if err != nil {
		return fmt.Errorf("failed to append session %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteSessionRepository) Recent(ctx context.Context, limit int) (recs []SessionRecord, err error) {
	ctx, span := startSpan(ctx, "sessions.recent", attribute.Int("query.limit", limit))
	defer func() { endSpan(span, err) }()

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `SELECT id, started_at, ended_at, player_count, top_wallet, top_score, elimination_mode FROM sessions ORDER BY ended_at DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	recs = make([]SessionRecord, 0, limit)
	for rows.Next() {
		var s SessionRecord
		var started, ended int64
		if err = rows.Scan(&s.ID, &started, &ended, &s.PlayerCount, &s.TopWallet, &s.TopScore, &s.EliminationMode); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s.StartedAt = fromMillis(started)
		s.EndedAt = fromMillis(ended)
		recs = append(recs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return recs, nil
}

// Package storage provides the persistence layer for player records and
// finished sessions. The engine never imports it; cmd wires it in behind
// the engine's Store interface.
package storage

import (
	"context"
	"time"
)

// PlayerRecord is the durable per-wallet record.
type PlayerRecord struct {
	WalletAddress string    `json:"walletAddress"`
	Score         int64     `json:"score"`
	WeeklyScore   int64     `json:"weeklyScore"`
	LastOnline    time.Time `json:"lastOnline"`
}

// PlayerRepository defines player record persistence.
type PlayerRepository interface {
	// Touch creates the record if needed and refreshes last_online.
	Touch(ctx context.Context, wallet string, at time.Time) error

	// AddScore adds a finished session's score to both the cumulative and weekly totals.
	AddScore(ctx context.Context, wallet string, score int, at time.Time) error

	// Get returns nil, nil when the wallet has never logged in.
	Get(ctx context.Context, wallet string) (*PlayerRecord, error)

	// TopWeekly returns up to limit records by weekly score, highest first.
	TopWeekly(ctx context.Context, limit int) ([]PlayerRecord, error)

	// ResetWeekly zeroes every weekly score and returns the rows touched.
	ResetWeekly(ctx context.Context) (int64, error)
}

// SessionRecord is one settled session.
type SessionRecord struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"startedAt"`
	EndedAt         time.Time `json:"endedAt"`
	PlayerCount     int       `json:"playerCount"`
	TopWallet       string    `json:"topWallet"`
	TopScore        int       `json:"topScore"`
	EliminationMode bool      `json:"eliminationMode"`
}

// SessionRepository defines session history persistence.
type SessionRepository interface {
	Append(ctx context.Context, rec SessionRecord) error

	// Recent returns up to limit sessions, newest first.
	Recent(ctx context.Context, limit int) ([]SessionRecord, error)
}

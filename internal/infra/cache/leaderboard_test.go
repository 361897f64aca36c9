package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/infra/storage"
)

type countingSource struct {
	calls  int
	err    error
	recs   []storage.PlayerRecord
	during func()
}

func (s *countingSource) TopWeekly(_ context.Context, limit int) ([]storage.PlayerRecord, error) {
	s.calls++
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return nil, s.err
	}
	if limit < len(s.recs) {
		return s.recs[:limit], nil
	}
	return s.recs, nil
}

func TestLeaderboardCacheHitsAndInvalidate(t *testing.T) {
	src := &countingSource{recs: []storage.PlayerRecord{
		{WalletAddress: "0xa", WeeklyScore: 9},
		{WalletAddress: "0xb", WeeklyScore: 4},
	}}
	c := NewLeaderboardCache(src, time.Minute)
	ctx := context.Background()

	first, err := c.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	first[0].WalletAddress = "mutated"

	second, _ := c.Top(ctx, 10)
	if src.calls != 1 {
		t.Errorf("expected 1 source call, got %d", src.calls)
	}
	if second[0].WalletAddress != "0xa" {
		t.Error("callers must not be able to mutate cached pages")
	}

	if _, err := c.Top(ctx, 1); err != nil {
		t.Fatalf("top 1: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected a separate entry per limit, got %d calls", src.calls)
	}

	c.Invalidate()
	if _, err := c.Top(ctx, 10); err != nil {
		t.Fatalf("top after invalidate: %v", err)
	}
	if src.calls != 3 {
		t.Errorf("expected reload after invalidate, got %d calls", src.calls)
	}
}

func TestLeaderboardCacheDoesNotCacheErrors(t *testing.T) {
	src := &countingSource{err: errors.New("db locked")}
	c := NewLeaderboardCache(src, time.Minute)

	if _, err := c.Top(context.Background(), 10); err == nil {
		t.Fatal("expected error")
	}
	src.err = nil
	if _, err := c.Top(context.Background(), 10); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 source calls, got %d", src.calls)
	}
}

func TestLeaderboardCacheExpires(t *testing.T) {
	src := &countingSource{}
	c := NewLeaderboardCache(src, 20*time.Millisecond)

	_, _ = c.Top(context.Background(), 10)
	time.Sleep(60 * time.Millisecond)
	_, _ = c.Top(context.Background(), 10)

	if src.calls != 2 {
		t.Errorf("expected reload after ttl, got %d calls", src.calls)
	}
}

func TestLeaderboardCacheSkipsFillAfterConcurrentInvalidate(t *testing.T) {
	src := &countingSource{recs: []storage.PlayerRecord{{WalletAddress: "0xa", WeeklyScore: 1}}}
	c := NewLeaderboardCache(src, time.Minute)
	ctx := context.Background()

	// A score write lands while the page is being read.
	src.during = c.Invalidate
	recs, err := c.Top(ctx, 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("top: %v %v", recs, err)
	}

	src.during = nil
	src.recs[0].WeeklyScore = 5
	recs, _ = c.Top(ctx, 10)
	if src.calls != 2 {
		t.Errorf("expected the stale page to be skipped, got %d source calls", src.calls)
	}
	if recs[0].WeeklyScore != 5 {
		t.Errorf("expected fresh weekly score 5, got %d", recs[0].WeeklyScore)
	}

	_, _ = c.Top(ctx, 10)
	if src.calls != 2 {
		t.Errorf("expected the fresh page to be cached, got %d source calls", src.calls)
	}
}

package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
)

type fakeResetter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeResetter) ResetWeekly(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func (f *fakeResetter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNextMonday(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "wednesday",
			in:   time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday after midnight",
			in:   time.Date(2026, 3, 2, 0, 0, 1, 0, time.UTC),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly monday midnight",
			in:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday late",
			in:   time.Date(2026, 3, 8, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday evening west of utc",
			in:   time.Date(2026, 3, 8, 18, 0, 0, 0, time.FixedZone("UTC-5", -5*3600)),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "local sunday already monday in utc",
			in:   time.Date(2026, 3, 8, 20, 0, 0, 0, time.FixedZone("UTC-5", -5*3600)),
			want: time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "local monday still sunday in utc",
			in:   time.Date(2026, 3, 9, 0, 30, 0, 0, time.FixedZone("UTC+2", 2*3600)),
			want: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		if got := NextMonday(tc.in); !got.Equal(tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestRunOnceInvokesCallback(t *testing.T) {
	repo := &fakeResetter{}
	invalidated := 0
	w := NewWeeklyReset(repo, func() { invalidated++ }, logger.Discard())

	if err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if repo.count() != 1 || invalidated != 1 {
		t.Errorf("expected 1 reset and 1 callback, got %d and %d", repo.count(), invalidated)
	}

	repo.err = errors.New("disk full")
	if err := w.RunOnce(context.Background()); err == nil {
		t.Error("expected error to propagate")
	}
	if invalidated != 1 {
		t.Error("callback must not run after a failed reset")
	}
}

func TestRunFiresOnTimerAndStops(t *testing.T) {
	repo := &fakeResetter{}
	w := NewWeeklyReset(repo, nil, logger.Discard())
	fire := make(chan time.Time)
	var delays []time.Duration
	var mu sync.Mutex
	w.now = func() time.Time { return time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC) }
	w.newTimer = func(d time.Duration) (<-chan time.Time, func() bool) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return fire, func() bool { return true }
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	fire <- time.Now()
	fire <- time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	if repo.count() != 2 {
		t.Errorf("expected 2 resets, got %d", repo.count())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(delays) == 0 || delays[0] != time.Hour {
		t.Errorf("expected first wait of 1h, got %v", delays)
	}
}

package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/MRamiBalles/coinrush/server/internal/domain/rules"
	"github.com/MRamiBalles/coinrush/server/internal/events"
	"github.com/MRamiBalles/coinrush/server/internal/platform/logger"
	"github.com/MRamiBalles/coinrush/server/internal/platform/metrics"
)

// ErrStopped is returned when submitting to an engine whose loop has exited.
var ErrStopped = errors.New("engine stopped")

// Broadcaster delivers encoded frames to live connections.
type Broadcaster interface {
	Broadcast(msg []byte)
	BroadcastExcept(excludeID string, msg []byte)
}

// Store is the external player record store. Calls are made off the engine
// goroutine and their failures never affect session state.
type Store interface {
	TouchPlayer(ctx context.Context, identity string, at time.Time) error
	AddSessionScore(ctx context.Context, identity string, score int, at time.Time) error
	RecordSession(ctx context.Context, summary SessionSummary) error
}

// SessionSummary is persisted once per finished session.
type SessionSummary struct {
	ID              string
	StartedAt       time.Time
	EndedAt         time.Time
	PlayerCount     int
	TopWallet       string
	TopScore        int
	EliminationMode bool
}

// Settings tunes the engine. Zero values are not valid; start from DefaultSettings.
type Settings struct {
	TickInterval      time.Duration
	SessionDuration   time.Duration
	RestartDelay      time.Duration
	SabotagePeriod    time.Duration
	SabotageDuration  time.Duration
	PersistTimeout    time.Duration
	EliminationMode   bool
	ImposterChance    float64
	InboxSize         int
	SettleConcurrency int
}

// DefaultSettings returns the production timings.
func DefaultSettings() Settings {
	return Settings{
		TickInterval:      100 * time.Millisecond,
		SessionDuration:   2 * time.Minute,
		RestartDelay:      10 * time.Second,
		SabotagePeriod:    30 * time.Second,
		SabotageDuration:  5 * time.Second,
		PersistTimeout:    5 * time.Second,
		ImposterChance:    0.2,
		InboxSize:         1024,
		SettleConcurrency: 8,
	}
}

// Engine is the single writer of the live Session.
type Engine struct {
	settings Settings
	logger   *logger.Logger
	out      Broadcaster
	store    Store

	rng   *rand.Rand
	now   func() time.Time
	after func(d time.Duration, f func())

	inbox chan Command
	done  chan struct{}
	once  sync.Once

	// Background store calls, drained on shutdown.
	persist sync.WaitGroup

	// Sub-systems
	economy     *EconomySystem
	sabotage    *SabotageSystem
	elimination *EliminationSystem

	// State
	session *Session
}

// NewEngine builds an engine with a fresh Session. The store may be nil.
func NewEngine(settings Settings, out Broadcaster, store Store, log *logger.Logger) *Engine {
	if settings.InboxSize <= 0 {
		settings.InboxSize = 1
	}
	if settings.SettleConcurrency <= 0 {
		settings.SettleConcurrency = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	e := &Engine{
		settings: settings,
		logger:   log,
		out:      out,
		store:    store,
		rng:      rng,
		now:      time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
		inbox: make(chan Command, settings.InboxSize),
		done:  make(chan struct{}),
	}
	e.economy = NewEconomySystem(e.emit, log)
	e.sabotage = NewSabotageSystem(settings.SabotageDuration)
	e.elimination = NewEliminationSystem(settings.EliminationMode, settings.ImposterChance)
	e.session = newSession(1, rules.RandomPoint(rng), e.now(), settings.SessionDuration, settings.EliminationMode)
	metrics.Get().RecordSessionStart()
	return e
}

// Run drives the loop until ctx is cancelled, then waits for pending store calls.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stop()

	tick := time.NewTicker(e.settings.TickInterval)
	defer tick.Stop()
	sab := time.NewTicker(e.settings.SabotagePeriod)
	defer sab.Stop()

	e.logger.Infof("Engine started: session %s, %s rounds, elimination=%v",
		e.session.ID, e.settings.SessionDuration, e.settings.EliminationMode)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped. Draining store writes...")
			e.persist.Wait()
			return nil
		case cmd := <-e.inbox:
			cmd.apply(e)
		case <-tick.C:
			e.tick()
		case <-sab.C:
			e.beginSabotage()
		}
	}
}

func (e *Engine) stop() {
	e.once.Do(func() { close(e.done) })
}

// Submit queues a command for the engine goroutine.
func (e *Engine) Submit(ctx context.Context, cmd Command) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.inbox <- cmd:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is used by timers; it never blocks past shutdown.
func (e *Engine) post(cmd Command) {
	select {
	case e.inbox <- cmd:
	case <-e.done:
	}
}

// Status asks the loop for a summary of the live session.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	q := statusQuery{reply: make(chan Status, 1)}
	if err := e.Submit(ctx, q); err != nil {
		return Status{}, err
	}
	select {
	case st := <-q.reply:
		return st, nil
	case <-e.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// emit encodes on the engine goroutine and hands the frame to the broadcaster.
func (e *Engine) emit(t events.EventType, payload interface{}) {
	msg, err := events.Encode(t, payload)
	if err != nil {
		e.logger.Errorf("Dropping %s broadcast: %v", t, err)
		return
	}
	e.out.Broadcast(msg)
}

func (e *Engine) emitExcept(excludeID string, t events.EventType, payload interface{}) {
	msg, err := events.Encode(t, payload)
	if err != nil {
		e.logger.Errorf("Dropping %s broadcast: %v", t, err)
		return
	}
	e.out.BroadcastExcept(excludeID, msg)
}

// persistAsync runs a store call off the loop with a bounded context.
func (e *Engine) persistAsync(op string, fn func(ctx context.Context, store Store) error) {
	if e.store == nil {
		return
	}
	e.persist.Add(1)
	go func() {
		defer e.persist.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.settings.PersistTimeout)
		defer cancel()
		if err := fn(ctx, e.store); err != nil {
			e.logger.Errorf("%s failed: %v", op, err)
		}
	}()
}

// timedWrite wraps a single store call with metrics.
func timedWrite(fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.Get().RecordStoreWrite(time.Since(start), err)
	return err
}

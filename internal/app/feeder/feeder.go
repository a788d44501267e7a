// Package feeder promotes staged ledger entries into the engine's queue.
//
// The feeder is strictly pull-based and single-item-at-a-time: it only
// pushes when the engine's queue is empty, so the engine never holds more
// than one fed item regardless of how slowly it drains.
package feeder

import (
	"context"
	"sync/atomic"
	"time"

	zlog "github.com/rs/zerolog/log"

	"aircast/internal/domain/queue"
)

// Engine is the subset of the control-protocol client the feeder needs.
type Engine interface {
	QueueContents(ctx context.Context) ([]queue.RID, error)
	PushRequest(ctx context.Context, path string) (queue.RID, error)
}

// Ledger is the subset of the queue ledger the feeder needs.
type Ledger interface {
	NextStaged(ctx context.Context) (*queue.Entry, error)
	MarkPushed(ctx context.Context, id int64, rid queue.RID) error
}

// Config holds feeder configuration.
type Config struct {
	// Interval between timer-driven feed attempts. Zero means 2s.
	Interval time.Duration
}

// Feeder runs the reconciliation loop between the ledger and the engine
// queue. Overlapping triggers collapse into one in-flight attempt.
type Feeder struct {
	engine   Engine
	ledger   Ledger
	interval time.Duration
	busy     atomic.Bool
}

// New creates a feeder.
func New(engine Engine, ledger Ledger, cfg Config) *Feeder {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Feeder{engine: engine, ledger: ledger, interval: interval}
}

// Feed runs one feed attempt. A call arriving while another attempt is in
// flight is a silent no-op. Protocol errors abandon the attempt; the busy
// flag is released on every exit path so a later tick can retry.
func (f *Feeder) Feed(ctx context.Context) {
	if !f.busy.CompareAndSwap(false, true) {
		return
	}
	defer f.busy.Store(false)

	rids, err := f.engine.QueueContents(ctx)
	if err != nil {
		zlog.Error().Msgf("feeder: queue query failed: %v", err)
		return
	}
	if len(rids) > 0 {
		// The engine still holds an item; never double-queue.
		return
	}

	next, err := f.ledger.NextStaged(ctx)
	if err != nil {
		zlog.Error().Msgf("feeder: ledger read failed: %v", err)
		return
	}
	if next == nil {
		return
	}

	zlog.Info().Msgf("feeder: pushing %s", next.Name)
	rid, err := f.engine.PushRequest(ctx, next.Path)
	if err != nil {
		zlog.Error().Msgf("feeder: push of %s failed: %v", next.Name, err)
		return
	}

	if err := f.ledger.MarkPushed(ctx, next.ID, rid); err != nil {
		zlog.Error().Msgf("feeder: marking %s pushed failed: %v", next.Name, err)
		return
	}
	zlog.Info().Msgf("feeder: pushed %s rid=%s", next.Name, rid)
}

// Kick triggers an asynchronous feed attempt, used when an operator stages
// a new entry so it is picked up before the next tick. The attempt is
// detached from the caller's cancellation: a request context ending right
// after the stage must not abort the push.
func (f *Feeder) Kick(ctx context.Context) {
	go f.Feed(context.WithoutCancel(ctx))
}

// Run drives timer-based feeding until the context is cancelled.
func (f *Feeder) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Feed(ctx)
		}
	}
}

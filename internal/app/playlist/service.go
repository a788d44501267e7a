// Package playlist implements the operator-facing queue operations and the
// status reconciler that keeps the ledger consistent with the engine.
package playlist

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"aircast/internal/domain/queue"
	"aircast/internal/infra/config"
	"aircast/internal/infra/ledger"
	"aircast/internal/infra/liquidsoap"
)

// Engine is the control-protocol surface the service drives.
type Engine interface {
	PushRequest(ctx context.Context, path string) (queue.RID, error)
	QueueContents(ctx context.Context) ([]queue.RID, error)
	OnAir(ctx context.Context) (queue.RID, error)
	Skip(ctx context.Context) error
	FlushAndSkip(ctx context.Context) error
	SetPlaybackGate(ctx context.Context, open bool) error
	PlaybackGate(ctx context.Context) (bool, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	RecordingStatus(ctx context.Context) (bool, string, error)
	RequestMetadata(ctx context.Context, rid queue.RID) (*liquidsoap.Metadata, error)
}

// Kicker triggers an immediate feed attempt.
type Kicker interface {
	Kick(ctx context.Context)
}

// Config holds service configuration.
type Config struct {
	Libraries config.LibrariesConfig
	// GraceWindow is how long a pushed entry missing from the engine's
	// view is still reported committed before it is garbage-collected.
	// Zero means 30s.
	GraceWindow time.Duration
	// SkipDelay is the settle delay between a play-now push and the skip
	// that makes room for it. Zero means 500ms.
	SkipDelay time.Duration
}

// Service coordinates the queue ledger against the engine.
type Service struct {
	store  *ledger.Store
	engine Engine
	kicker Kicker

	libraries config.LibrariesConfig
	grace     time.Duration
	skipDelay time.Duration
	clock     func() time.Time
}

// New creates a playlist service. kicker may be nil when no feeder runs
// (tests, one-shot tools).
func New(store *ledger.Store, engine Engine, kicker Kicker, cfg Config) *Service {
	grace := cfg.GraceWindow
	if grace <= 0 {
		grace = 30 * time.Second
	}
	skipDelay := cfg.SkipDelay
	if skipDelay <= 0 {
		skipDelay = 500 * time.Millisecond
	}
	return &Service{
		store:     store,
		engine:    engine,
		kicker:    kicker,
		libraries: cfg.Libraries,
		grace:     grace,
		skipDelay: skipDelay,
		clock:     time.Now,
	}
}

// resolve maps a folder/name pair to the folder actually stored and the
// absolute path the engine must be told to play.
func (s *Service) resolve(name, folder string) (string, string) {
	if folder == "" {
		folder = s.libraries.DefaultFolder
	}
	return folder, filepath.Join(s.libraries.LibraryDir(folder), name)
}

// Stage appends a track to the end of the staged queue and kicks the
// feeder so it can be picked up before the next tick.
func (s *Service) Stage(ctx context.Context, name, folder string) (*queue.Entry, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	folder, path := s.resolve(name, folder)

	maxPos, err := s.store.MaxPosition(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Insert(ctx, queue.Entry{
		Name:     name,
		Folder:   folder,
		Path:     path,
		Position: maxPos + 1,
		Status:   queue.StatusStaged,
	})
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("staged %s at position %d", name, entry.Position)
	if s.kicker != nil {
		s.kicker.Kick(ctx)
	}
	return entry, nil
}

// PlayNext pushes a track to the engine immediately and records it ahead of
// every staged entry, so it plays as soon as the current item finishes.
func (s *Service) PlayNext(ctx context.Context, name, folder string) (*queue.Entry, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	folder, path := s.resolve(name, folder)

	minPos, err := s.store.MinPosition(ctx)
	if err != nil {
		return nil, err
	}

	rid, err := s.engine.PushRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Insert(ctx, queue.Entry{
		Name:     name,
		Folder:   folder,
		Path:     path,
		Position: minPos - 1,
		RID:      rid,
		Status:   queue.StatusPushed,
	})
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("play-next %s rid=%s", name, rid)
	return entry, nil
}

// PlayNow pushes a track at the front-of-line sentinel position and skips
// the current item after a short settle delay so the engine has had time to
// register the new request.
func (s *Service) PlayNow(ctx context.Context, name, folder string) (*queue.Entry, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	folder, path := s.resolve(name, folder)

	rid, err := s.engine.PushRequest(ctx, path)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Insert(ctx, queue.Entry{
		Name:     name,
		Folder:   folder,
		Path:     path,
		Position: queue.PositionPlayNow,
		RID:      rid,
		Status:   queue.StatusPushed,
	})
	if err != nil {
		return nil, err
	}

	zlog.Info().Msgf("play-now %s rid=%s", name, rid)
	go func() {
		time.Sleep(s.skipDelay)
		if err := s.engine.Skip(context.Background()); err != nil {
			zlog.Error().Msgf("play-now skip failed: %v", err)
		}
	}()
	return entry, nil
}

// List returns the reconciled queue ordered by position. The engine is the
// sole source of truth for what is really happening: each pushed entry's
// observed status is derived from the engine's queue contents and on-air
// identifier, and entries that fell off the engine's reporting horizon past
// the grace window are deleted during the read.
func (s *Service) List(ctx context.Context) ([]*queue.Entry, error) {
	activeRIDs, err := s.engine.QueueContents(ctx)
	if err != nil {
		return nil, err
	}
	onAir, err := s.engine.OnAir(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	out := make([]*queue.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Status != queue.StatusPushed {
			// Staged entries are intent only; they are never matched
			// against engine state.
			out = append(out, e)
			continue
		}

		switch {
		case !e.RID.Empty() && e.RID == onAir:
			e.Status = queue.StatusPlaying
		case containsRID(activeRIDs, e.RID):
			e.Status = queue.StatusCommitted
		case e.Age(now) < s.grace:
			// The engine may have dequeued it between our two queries;
			// give the next poll a chance to catch the transition.
			e.Status = queue.StatusCommitted
		default:
			// Aged off the engine's reporting horizon: fully played out.
			zlog.Debug().Msgf("reconcile: deleting finished entry %s rid=%s", e.Name, e.RID)
			if _, err := s.store.Remove(ctx, e.ID); err != nil {
				zlog.Error().Msgf("reconcile: delete of %d failed: %v", e.ID, err)
			}
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Remove deletes a ledger entry by identifier.
func (s *Service) Remove(ctx context.Context, id int64) (bool, error) {
	return s.store.Remove(ctx, id)
}

// Reorder applies operator-supplied position changes atomically.
func (s *Service) Reorder(ctx context.Context, changes []ledger.PositionChange) error {
	return s.store.Reorder(ctx, changes)
}

// Clear flushes the engine's queue, skips whatever it was playing, and
// wipes the ledger.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.engine.FlushAndSkip(ctx); err != nil {
		return err
	}
	_, err := s.store.Clear(ctx)
	return err
}

// Skip skips the engine's current track.
func (s *Service) Skip(ctx context.Context) error {
	return s.engine.Skip(ctx)
}

// Pause closes the engine's playback gate.
func (s *Service) Pause(ctx context.Context) error {
	return s.engine.SetPlaybackGate(ctx, false)
}

// Resume opens the engine's playback gate.
func (s *Service) Resume(ctx context.Context) error {
	return s.engine.SetPlaybackGate(ctx, true)
}

// Playing reports whether the playback gate is open.
func (s *Service) Playing(ctx context.Context) (bool, error) {
	return s.engine.PlaybackGate(ctx)
}

// StartRecording starts the engine's recording sink.
func (s *Service) StartRecording(ctx context.Context) error {
	return s.engine.StartRecording(ctx)
}

// StopRecording stops the engine's recording sink.
func (s *Service) StopRecording(ctx context.Context) error {
	return s.engine.StopRecording(ctx)
}

// RecordingStatus probes the engine's recording sink.
func (s *Service) RecordingStatus(ctx context.Context) (bool, string, error) {
	return s.engine.RecordingStatus(ctx)
}

// NowPlaying describes the on-air request for display, or "" when nothing
// is on air. An identifier the engine no longer knows falls back to a
// bare RID tag instead of failing.
func (s *Service) NowPlaying(ctx context.Context) (string, error) {
	rid, err := s.engine.OnAir(ctx)
	if err != nil {
		return "", err
	}
	if rid.Empty() {
		return "", nil
	}
	md, err := s.engine.RequestMetadata(ctx, rid)
	if err != nil {
		if errors.Is(err, liquidsoap.ErrRejected) || errors.Is(err, liquidsoap.ErrParse) {
			return fmt.Sprintf("RID:%s", rid), nil
		}
		return "", err
	}
	return md.Display(rid), nil
}

// NextStagedName returns the name of the next staged entry, if any.
func (s *Service) NextStagedName(ctx context.Context) (string, error) {
	next, err := s.store.NextStaged(ctx)
	if err != nil || next == nil {
		return "", err
	}
	return next.Name, nil
}

func containsRID(rids []queue.RID, rid queue.RID) bool {
	if rid.Empty() {
		return false
	}
	for _, r := range rids {
		if r == rid {
			return true
		}
	}
	return false
}

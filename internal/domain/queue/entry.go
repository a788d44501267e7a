// Package queue provides the queue ledger domain entities.
package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle status of a ledger entry.
type Status string

const (
	// StatusStaged means the entry exists only in the ledger and has not
	// been handed to the engine yet.
	StatusStaged Status = "staged"
	// StatusPushed means the entry has been handed to the engine and a
	// request identifier was recorded.
	StatusPushed Status = "pushed"
	// StatusPlaying is an observed status: the entry's RID matches the
	// engine's on-air identifier.
	StatusPlaying Status = "playing"
	// StatusCommitted is an observed status: the entry sits in the engine's
	// queue but is not on air.
	StatusCommitted Status = "committed"
)

// PositionPlayNow is the sentinel position for entries that must jump to the
// front of the line, paired with an explicit skip.
const PositionPlayNow = -999

// RID is the engine-assigned request identifier for a handed-off entry.
// It is always stored in normalized form (namespace prefix stripped).
type RID string

// ParseRID normalizes a raw identifier from the engine. Identifiers may be
// namespaced with a prefix and colon (e.g. "main_queue:42"); only the suffix
// is kept so the rest of the system never branches on format.
func ParseRID(raw string) RID {
	raw = strings.TrimSpace(raw)
	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		raw = raw[idx+1:]
	}
	return RID(raw)
}

// Empty reports whether the identifier is unset.
func (r RID) Empty() bool {
	return r == ""
}

// Entry represents a track an operator has staged for broadcast.
type Entry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Folder    string    `json:"folder"`
	Path      string    `json:"path"`
	Position  int       `json:"position"`
	RID       RID       `json:"rid,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Age returns how long ago the entry was created, relative to now.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

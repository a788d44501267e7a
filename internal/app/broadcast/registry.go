// Package broadcast bridges browser audio onto the engine's harbor input.
//
// A websocket client sends a JSON handshake followed by raw f32le audio
// frames; the bridge pipes them through an ffmpeg transcoder into the
// engine's icecast-style ingest. Only one live session may exist at a time.
package broadcast

import "sync"

// Registry owns the single broadcast slot.
type Registry struct {
	mu     sync.Mutex
	holder string
}

func NewRegistry() *Registry {
	return &Registry{}
}

// TryAcquire claims the slot for the given session. It reports false when
// another session already holds it.
func (r *Registry) TryAcquire(session string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holder != "" && r.holder != session {
		return false
	}
	r.holder = session
	return true
}

// Release frees the slot if the given session holds it. Releasing a slot
// held by someone else is a no-op.
func (r *Registry) Release(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holder == session {
		r.holder = ""
	}
}

// Active reports whether a session currently holds the slot.
func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.holder != ""
}

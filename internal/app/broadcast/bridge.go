package broadcast

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"aircast/internal/infra/config"
)

// event is the control-frame envelope exchanged with the client.
type event struct {
	Type    string         `json:"type"`
	Message string         `json:"message,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// transcoder is what a session drives; satisfied by *Transcoder.
type transcoder interface {
	Write(p []byte) (int, error)
	Done() <-chan error
	Stop()
}

// Bridge upgrades websocket connections into broadcast sessions.
type Bridge struct {
	registry *Registry
	ingest   config.IngestConfig
	upgrader websocket.Upgrader

	start func(cfg config.IngestConfig, opts Options) (transcoder, error)
}

func NewBridge(registry *Registry, ingest config.IngestConfig) *Bridge {
	return &Bridge{
		registry: registry,
		ingest:   ingest,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		start: func(cfg config.IngestConfig, opts Options) (transcoder, error) {
			return StartTranscoder(cfg, opts)
		},
	}
}

// HandleWS serves one broadcast session. A connection arriving while
// another session holds the slot is told so and closed before any
// subprocess is spawned.
func (b *Bridge) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Error().Msgf("broadcast: upgrade failed: %v", err)
		return
	}

	id := uuid.NewString()
	if !b.registry.TryAcquire(id) {
		zlog.Warn().Msgf("broadcast: rejecting session %s: slot busy", id)
		_ = conn.WriteJSON(event{Type: "error", Message: "broadcast session busy"})
		_ = conn.Close()
		return
	}

	s := &session{id: id, conn: conn, bridge: b}
	zlog.Info().Msgf("broadcast: session %s connected", id)
	defer s.teardown()
	s.loop()
}

// session is one live websocket connection and its transcoder, if any.
type session struct {
	id     string
	conn   *websocket.Conn
	bridge *Bridge

	writeMu sync.Mutex

	mu   sync.Mutex
	proc transcoder
	gen  int
}

func (s *session) loop() {
	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			zlog.Info().Msgf("broadcast: session %s closed: %v", s.id, err)
			return
		}
		switch kind {
		case websocket.TextMessage:
			s.handleControl(payload)
		case websocket.BinaryMessage:
			s.handleAudio(payload)
		}
	}
}

func (s *session) handleControl(payload []byte) {
	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		zlog.Warn().Msgf("broadcast: session %s sent malformed control frame: %v", s.id, err)
		return
	}
	if ev.Type != "connect" {
		return
	}

	var opts Options
	if ev.Config != nil {
		if err := mapstructure.Decode(ev.Config, &opts); err != nil {
			s.send(event{Type: "error", Message: "invalid broadcast config"})
			return
		}
	}

	s.mu.Lock()
	// A repeated handshake replaces the running encoder.
	if s.proc != nil {
		s.proc.Stop()
		s.proc = nil
	}
	proc, err := s.bridge.start(s.bridge.ingest, opts)
	if err != nil {
		s.mu.Unlock()
		zlog.Error().Msgf("broadcast: session %s transcoder start failed: %v", s.id, err)
		s.send(event{Type: "error", Message: "transcoder failed to start"})
		return
	}
	s.proc = proc
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go s.watch(proc, gen)
	zlog.Info().Msgf("broadcast: session %s streaming", s.id)
	s.send(event{Type: "connected"})
}

func (s *session) handleAudio(payload []byte) {
	s.mu.Lock()
	proc := s.proc
	s.mu.Unlock()
	if proc == nil {
		return
	}
	if _, err := proc.Write(payload); err != nil {
		s.send(event{Type: "error", Message: "audio write failed"})
	}
}

// watch reports the transcoder's exit to the client. The socket stays open
// so the client can retry with a fresh handshake. gen guards against a
// stale watcher firing after a re-handshake already replaced the process.
func (s *session) watch(proc transcoder, gen int) {
	err := <-proc.Done()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.proc = nil
	s.mu.Unlock()

	msg := "transcoder exited"
	if err != nil {
		msg = fmt.Sprintf("transcoder exited: %v", err)
	}
	zlog.Warn().Msgf("broadcast: session %s: %s", s.id, msg)
	s.send(event{Type: "error", Message: msg})
}

func (s *session) teardown() {
	s.mu.Lock()
	if s.proc != nil {
		s.proc.Stop()
		s.proc = nil
	}
	s.mu.Unlock()

	_ = s.conn.Close()
	s.bridge.registry.Release(s.id)
	zlog.Info().Msgf("broadcast: session %s released", s.id)
}

func (s *session) send(ev event) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(ev); err != nil {
		zlog.Debug().Msgf("broadcast: session %s write failed: %v", s.id, err)
	}
}

// Package liquidsoap provides a client for the broadcast engine's
// line-based command protocol.
//
// The engine's command port is single-session, so the client opens a
// short-lived connection per command: it writes the command followed by a
// session-terminating "quit", accumulates the reply until the literal END
// marker appears, then trims the marker and the farewell line. Some command
// paths close the connection without emitting the marker; a clean close is
// treated as a successful, unmarked completion.
package liquidsoap

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Protocol failure taxonomy. Callers distinguish these with errors.Is.
var (
	// ErrTimeout means the engine did not complete the exchange within the
	// command deadline.
	ErrTimeout = errors.New("engine command timed out")
	// ErrConnection means the transport could not be established or failed
	// mid-exchange.
	ErrConnection = errors.New("engine connection failed")
	// ErrRejected means the engine replied with an explicit error payload.
	ErrRejected = errors.New("engine rejected command")
	// ErrParse means the engine's reply did not match the expected grammar.
	ErrParse = errors.New("unexpected engine reply")
)

const (
	endMarker    = "END"
	farewellLine = "Bye!"
)

// Config represents command client configuration.
type Config struct {
	// Addr is the engine command port in host:port form.
	Addr string
	// Timeout bounds a full command round-trip. Zero means 3s.
	Timeout time.Duration
	// PlaybackVar is the engine variable gating playback.
	PlaybackVar string
}

// Client executes commands against the engine's command port.
type Client struct {
	addr        string
	timeout     time.Duration
	playbackVar string
}

// New creates a new command client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	playbackVar := cfg.PlaybackVar
	if playbackVar == "" {
		playbackVar = "control_var"
	}
	return &Client{addr: cfg.Addr, timeout: timeout, playbackVar: playbackVar}
}

// Execute sends a single command and returns the trimmed reply payload.
// The connection is closed on every exit path; a deadline expiry fails with
// ErrTimeout and transport failures fail with ErrConnection.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", errors.Wrapf(ErrConnection, "dial %s: %v", c.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return "", errors.Wrapf(ErrConnection, "set deadline: %v", err)
	}

	// Command and quit in one write so the engine tears the session down
	// after replying.
	if _, err := conn.Write([]byte(command + "\nquit\n")); err != nil {
		return "", classify(command, err)
	}

	var reply strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			reply.Write(buf[:n])
			if strings.Contains(reply.String(), endMarker) {
				return trimReply(reply.String()), nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Connection closed without the marker: some command paths
				// close without emitting END. Return what was buffered.
				return strings.TrimSpace(reply.String()), nil
			}
			return "", classify(command, err)
		}
	}
}

// classify maps a transport error to the protocol taxonomy.
func classify(command string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		zlog.Error().Msgf("engine command %q timed out", command)
		return errors.Wrapf(ErrTimeout, "command %q", command)
	}
	return errors.Wrapf(ErrConnection, "command %q: %v", command, err)
}

// trimReply strips the end-of-response marker and the farewell prompt.
func trimReply(raw string) string {
	raw = strings.Replace(raw, endMarker, "", 1)
	raw = strings.Replace(raw, farewellLine, "", 1)
	return strings.TrimSpace(raw)
}

// isRejection reports whether a reply payload is an explicit engine error.
func isRejection(reply string) bool {
	return strings.Contains(reply, "Unknown command") ||
		strings.Contains(reply, "ERROR")
}

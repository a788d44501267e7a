package liquidsoap

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aircast/internal/domain/queue"
)

// startEngine runs a scripted command port on a loopback listener. The
// handler receives the command line and returns the raw bytes to write
// before closing the connection.
func startEngine(t *testing.T, handler func(command string) string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				line, err := bufio.NewReader(conn).ReadString('\n')
				if err != nil {
					return
				}
				_, _ = conn.Write([]byte(handler(strings.TrimSpace(line))))
			}(conn)
		}
	}()

	return ln.Addr().String()
}

func newTestClient(addr string, timeout time.Duration) *Client {
	return New(Config{Addr: addr, Timeout: timeout, PlaybackVar: "control_var"})
}

func TestClient_Execute_TrimsMarkerAndFarewell(t *testing.T) {
	addr := startEngine(t, func(string) string {
		return "ridge:12\nEND\nBye!\n"
	})

	c := newTestClient(addr, time.Second)
	reply, err := c.Execute(context.Background(), "manual_queue.push \"/x.mp3\"")
	require.NoError(t, err)
	assert.Equal(t, "ridge:12", reply)
}

func TestClient_Execute_CloseWithoutMarker(t *testing.T) {
	// Some command paths close the session without emitting END; the
	// buffered payload is still a successful reply.
	addr := startEngine(t, func(string) string {
		return "partial output\n"
	})

	c := newTestClient(addr, time.Second)
	reply, err := c.Execute(context.Background(), "broadcast.skip")
	require.NoError(t, err)
	assert.Equal(t, "partial output", reply)
}

func TestClient_Execute_Timeout(t *testing.T) {
	addr := startEngine(t, func(string) string {
		time.Sleep(2 * time.Second)
		return "too late\nEND\n"
	})

	c := newTestClient(addr, 150*time.Millisecond)
	start := time.Now()
	_, err := c.Execute(context.Background(), "request.on_air")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second, "deadline not enforced")
}

func TestClient_Execute_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := newTestClient(addr, 300*time.Millisecond)
	_, err = c.Execute(context.Background(), "request.on_air")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnection), "got %v", err)
}

func TestClient_PushRequest(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    queue.RID
		wantErr error
	}{
		{name: "bare rid", reply: "14\nEND\n", want: "14"},
		{name: "namespaced rid", reply: "ridge:14\nEND\nBye!\n", want: "14"},
		{name: "rid with trailing detail", reply: "7\nqueued\nEND\n", want: "7"},
		{name: "rejected", reply: "ERROR: no such file\nEND\n", wantErr: ErrRejected},
		{name: "unknown command", reply: "Unknown command\nEND\n", wantErr: ErrRejected},
		{name: "empty reply", reply: "END\n", wantErr: ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startEngine(t, func(string) string { return tt.reply })
			c := newTestClient(addr, time.Second)

			rid, err := c.PushRequest(context.Background(), "/srv/media/music/a.mp3")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rid)
		})
	}
}

func TestClient_QueueContents(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []queue.RID
	}{
		{name: "empty queue", reply: "END\n", want: []queue.RID{}},
		{name: "single", reply: "5\nEND\n", want: []queue.RID{"5"}},
		{
			name:  "mixed namespacing",
			reply: "ridge:5 6 ridge:7\nEND\nBye!\n",
			want:  []queue.RID{"5", "6", "7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startEngine(t, func(string) string { return tt.reply })
			c := newTestClient(addr, time.Second)

			rids, err := c.QueueContents(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, rids)
		})
	}
}

func TestClient_OnAir(t *testing.T) {
	addr := startEngine(t, func(command string) string {
		assert.Equal(t, "request.on_air", command)
		return "ridge:3\nEND\n"
	})

	c := newTestClient(addr, time.Second)
	rid, err := c.OnAir(context.Background())
	require.NoError(t, err)
	assert.Equal(t, queue.RID("3"), rid)
}

func TestClient_OnAir_NothingPlaying(t *testing.T) {
	addr := startEngine(t, func(string) string { return "END\n" })

	c := newTestClient(addr, time.Second)
	rid, err := c.OnAir(context.Background())
	require.NoError(t, err)
	assert.True(t, rid.Empty())
}

func TestClient_PlaybackGate(t *testing.T) {
	var value string
	addr := startEngine(t, func(command string) string {
		if strings.HasPrefix(command, "var.set") {
			value = strings.Fields(command)[2]
			return "Variable control_var set\nEND\n"
		}
		return value + "\nEND\n"
	})

	c := newTestClient(addr, time.Second)
	ctx := context.Background()

	require.NoError(t, c.SetPlaybackGate(ctx, true))
	open, err := c.PlaybackGate(ctx)
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, c.SetPlaybackGate(ctx, false))
	open, err = c.PlaybackGate(ctx)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestClient_PlaybackGate_Malformed(t *testing.T) {
	addr := startEngine(t, func(string) string { return "maybe\nEND\n" })

	c := newTestClient(addr, time.Second)
	_, err := c.PlaybackGate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)
}

func TestClient_RecordingStatus(t *testing.T) {
	addr := startEngine(t, func(string) string { return "123.4\nEND\n" })

	c := newTestClient(addr, time.Second)
	active, raw, err := c.RecordingStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, "123.4", raw)
}

func TestClient_RecordingStatus_Idle(t *testing.T) {
	addr := startEngine(t, func(string) string { return "ERROR: source is not ready\nEND\n" })

	c := newTestClient(addr, time.Second)
	active, _, err := c.RecordingStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, active)
}

package broadcast

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/cockroachdb/errors"

	"aircast/internal/infra/config"
)

// Options are per-session overrides a client may send in its handshake.
// Zero values fall back to the configured ingest defaults.
type Options struct {
	BitrateK   int    `mapstructure:"bitrate"`
	Mount      string `mapstructure:"mount"`
	SampleRate int    `mapstructure:"sampleRate"`
	Channels   int    `mapstructure:"channels"`
}

// Transcoder wraps an ffmpeg subprocess that reads raw f32le audio on
// stdin and streams mp3 to the engine's harbor input.
type Transcoder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	done  chan error
}

// StartTranscoder spawns ffmpeg for one broadcast session.
func StartTranscoder(cfg config.IngestConfig, opts Options) (*Transcoder, error) {
	path := cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}

	cmd := exec.Command(path, transcodeArgs(cfg, opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "open transcoder stdin")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "spawn transcoder")
	}

	t := &Transcoder{cmd: cmd, stdin: stdin, done: make(chan error, 1)}
	go func() {
		t.done <- cmd.Wait()
	}()
	return t, nil
}

// Write feeds raw audio to the subprocess. It fails once the subprocess
// has exited or its stdin was closed.
func (t *Transcoder) Write(p []byte) (int, error) {
	return t.stdin.Write(p)
}

// Done delivers the subprocess exit result exactly once.
func (t *Transcoder) Done() <-chan error {
	return t.done
}

// Stop closes stdin and kills the subprocess. Safe to call after exit.
func (t *Transcoder) Stop() {
	_ = t.stdin.Close()
	_ = t.cmd.Process.Kill()
}

// transcodeArgs builds the ffmpeg invocation: raw f32le in on pipe:0,
// libmp3lame out over the icecast protocol.
func transcodeArgs(cfg config.IngestConfig, opts Options) []string {
	rate := cfg.SampleRate
	if opts.SampleRate > 0 {
		rate = opts.SampleRate
	}
	channels := cfg.Channels
	if opts.Channels > 0 {
		channels = opts.Channels
	}
	bitrate := cfg.BitrateK
	if opts.BitrateK > 0 {
		bitrate = opts.BitrateK
	}
	mount := cfg.Mount
	if opts.Mount != "" {
		mount = opts.Mount
	}
	if !strings.HasPrefix(mount, "/") {
		mount = "/" + mount
	}

	return []string{
		"-f", "f32le",
		"-ar", fmt.Sprint(rate),
		"-ac", fmt.Sprint(channels),
		"-i", "pipe:0",
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", bitrate),
		"-content_type", "audio/mpeg",
		"-f", "mp3",
		fmt.Sprintf("icecast://%s:%s@%s:%d%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, mount),
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
ingest:
  password: hackme
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "127.0.0.1:1234", cfg.Engine.Addr)
	assert.Equal(t, 3000, cfg.Engine.CommandTimeoutMs)
	assert.Equal(t, "control_var", cfg.Engine.PlaybackVar)
	assert.Equal(t, 2000, cfg.Feeder.IntervalMs)
	assert.Equal(t, 30, cfg.Feeder.GraceWindowSec)
	assert.Equal(t, 5000, cfg.Stats.CacheTTLMs)
	assert.Equal(t, "data/queue.db", cfg.Ledger.Path)
	assert.Equal(t, "music", cfg.Libraries.DefaultFolder)
	assert.Equal(t, "ffmpeg", cfg.Ingest.FFmpegPath)
	assert.Equal(t, 128, cfg.Ingest.BitrateK)
	assert.Equal(t, 44100, cfg.Ingest.SampleRate)
}

func TestLoad_MissingIngestPassword(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AIRCAST_ENGINE_ADDR", "10.0.0.2:1234")
	t.Setenv("AIRCAST_INGEST_PASSWORD", "fromenv")

	path := writeConfig(t, `
engine:
  addr: "127.0.0.1:1234"
ingest:
  password: fromfile
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.2:1234", cfg.Engine.Addr)
	assert.Equal(t, "fromenv", cfg.Ingest.Password)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "command timeout too small",
			content: `
engine:
  command_timeout_ms: 10
ingest:
  password: hackme
`,
		},
		{
			name: "feeder interval too small",
			content: `
feeder:
  interval_ms: 50
ingest:
  password: hackme
`,
		},
		{
			name: "bad ingest port",
			content: `
ingest:
  password: hackme
  port: 99999
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLibrariesConfig_LibraryDir(t *testing.T) {
	cfg := LibrariesConfig{
		BaseDir:       "/srv/media",
		DefaultFolder: "music",
		Folders: map[string]string{
			"music":   "/srv/media/music",
			"jingles": "/srv/media/jingles",
		},
	}

	assert.Equal(t, "/srv/media/jingles", cfg.LibraryDir("jingles"))
	assert.Equal(t, "/srv/media/music", cfg.LibraryDir(""))
	assert.Equal(t, "/srv/media/music", cfg.LibraryDir("no-such-folder"))

	empty := LibrariesConfig{BaseDir: "/srv/media", DefaultFolder: "music"}
	assert.Equal(t, "/srv/media", empty.LibraryDir("music"))
}

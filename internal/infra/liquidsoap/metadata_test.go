package liquidsoap

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aircast/internal/domain/queue"
)

const metadataReply = `artist="The Orbits"
title="Night Drive"
filename="/srv/media/music/night_drive.mp3"
initial_uri="/srv/media/music/night_drive.mp3"
status="playing"
END
`

func TestClient_RequestMetadata(t *testing.T) {
	addr := startEngine(t, func(command string) string {
		assert.Equal(t, "request.metadata 12", command)
		return metadataReply
	})

	c := newTestClient(addr, time.Second)
	md, err := c.RequestMetadata(context.Background(), queue.RID("12"))
	require.NoError(t, err)

	assert.Equal(t, "Night Drive", md.Title)
	assert.Equal(t, "The Orbits", md.Artist)
	assert.Equal(t, "/srv/media/music/night_drive.mp3", md.Filename)
	assert.Equal(t, "The Orbits - Night Drive", md.Display("12"))
}

func TestClient_RequestMetadata_UnknownRID(t *testing.T) {
	addr := startEngine(t, func(string) string { return "Unknown command\nEND\n" })

	c := newTestClient(addr, time.Second)
	_, err := c.RequestMetadata(context.Background(), queue.RID("99"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected), "got %v", err)
}

func TestClient_RequestMetadata_Malformed(t *testing.T) {
	addr := startEngine(t, func(string) string { return "no pairs here\nEND\n" })

	c := newTestClient(addr, time.Second)
	_, err := c.RequestMetadata(context.Background(), queue.RID("5"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse), "got %v", err)
}

func TestMetadata_Display(t *testing.T) {
	tests := []struct {
		name string
		md   Metadata
		want string
	}{
		{name: "artist and title", md: Metadata{Title: "A", Artist: "B"}, want: "B - A"},
		{name: "title only", md: Metadata{Title: "A"}, want: "A"},
		{name: "filename fallback", md: Metadata{Filename: "/media/x/track.mp3"}, want: "track.mp3"},
		{name: "uri fallback", md: Metadata{URI: "/media/y/other.mp3"}, want: "other.mp3"},
		{name: "nothing", md: Metadata{}, want: "RID:8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.md.Display("8"))
		})
	}
}

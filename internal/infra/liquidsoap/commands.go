package liquidsoap

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"aircast/internal/domain/queue"
)

// PushRequest hands a media path to the engine's manual queue and returns
// the request identifier the engine assigned to it.
func (c *Client) PushRequest(ctx context.Context, path string) (queue.RID, error) {
	reply, err := c.Execute(ctx, fmt.Sprintf("manual_queue.push %q", path))
	if err != nil {
		return "", err
	}
	if isRejection(reply) {
		return "", errors.Wrapf(ErrRejected, "push %q: %s", path, reply)
	}

	// The new RID is the first line of output.
	first, _, _ := strings.Cut(reply, "\n")
	rid := queue.ParseRID(first)
	if rid.Empty() {
		return "", errors.Wrapf(ErrParse, "push reply carried no request id: %q", reply)
	}
	return rid, nil
}

// QueueContents returns the identifiers currently sitting in the engine's
// manual queue, in queue order.
func (c *Client) QueueContents(ctx context.Context) ([]queue.RID, error) {
	reply, err := c.Execute(ctx, "manual_queue.queue")
	if err != nil {
		return nil, err
	}
	if isRejection(reply) {
		return nil, errors.Wrapf(ErrRejected, "queue query: %s", reply)
	}

	fields := strings.Fields(reply)
	rids := make([]queue.RID, 0, len(fields))
	for _, f := range fields {
		if rid := queue.ParseRID(f); !rid.Empty() {
			rids = append(rids, rid)
		}
	}
	return rids, nil
}

// OnAir returns the identifier of the engine's currently playing request.
// An empty RID means nothing is on air.
func (c *Client) OnAir(ctx context.Context) (queue.RID, error) {
	reply, err := c.Execute(ctx, "request.on_air")
	if err != nil {
		return "", err
	}
	if isRejection(reply) {
		return "", errors.Wrapf(ErrRejected, "on_air query: %s", reply)
	}
	return queue.ParseRID(reply), nil
}

// Skip skips the engine's current track.
func (c *Client) Skip(ctx context.Context) error {
	reply, err := c.Execute(ctx, "broadcast.skip")
	if err != nil {
		return err
	}
	if isRejection(reply) {
		return errors.Wrapf(ErrRejected, "skip: %s", reply)
	}
	return nil
}

// FlushAndSkip empties the engine's manual queue and skips whatever is
// playing from it.
func (c *Client) FlushAndSkip(ctx context.Context) error {
	reply, err := c.Execute(ctx, "manual_queue.flush_and_skip")
	if err != nil {
		return err
	}
	if isRejection(reply) {
		return errors.Wrapf(ErrRejected, "flush_and_skip: %s", reply)
	}
	return nil
}

// SetPlaybackGate sets the engine's boolean playback-gate variable.
func (c *Client) SetPlaybackGate(ctx context.Context, open bool) error {
	reply, err := c.Execute(ctx, fmt.Sprintf("var.set %s %t", c.playbackVar, open))
	if err != nil {
		return err
	}
	if isRejection(reply) {
		return errors.Wrapf(ErrRejected, "var.set %s: %s", c.playbackVar, reply)
	}
	return nil
}

// PlaybackGate reads the engine's boolean playback-gate variable.
func (c *Client) PlaybackGate(ctx context.Context) (bool, error) {
	reply, err := c.Execute(ctx, "var.get "+c.playbackVar)
	if err != nil {
		return false, err
	}
	if isRejection(reply) {
		return false, errors.Wrapf(ErrRejected, "var.get %s: %s", c.playbackVar, reply)
	}
	switch strings.TrimSpace(reply) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.Wrapf(ErrParse, "var.get %s returned %q", c.playbackVar, reply)
}

// StartRecording starts the engine's recording sink.
func (c *Client) StartRecording(ctx context.Context) error {
	reply, err := c.Execute(ctx, "recording.start")
	if err != nil {
		return err
	}
	if isRejection(reply) {
		return errors.Wrapf(ErrRejected, "recording.start: %s", reply)
	}
	return nil
}

// StopRecording stops the engine's recording sink.
func (c *Client) StopRecording(ctx context.Context) error {
	reply, err := c.Execute(ctx, "recording.stop")
	if err != nil {
		return err
	}
	if isRejection(reply) {
		return errors.Wrapf(ErrRejected, "recording.stop: %s", reply)
	}
	return nil
}

// RecordingStatus probes the recording sink. The engine exposes no direct
// status command, so the remaining-time query stands in for one: a reply
// that is not an error means the sink is writing.
func (c *Client) RecordingStatus(ctx context.Context) (bool, string, error) {
	reply, err := c.Execute(ctx, "recording.remaining")
	if err != nil {
		return false, "", err
	}
	active := reply != "" && !isRejection(reply)
	return active, reply, nil
}

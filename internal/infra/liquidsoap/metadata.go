package liquidsoap

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/cockroachdb/errors"

	"aircast/internal/domain/queue"
)

// Metadata holds the fields scraped from a request.metadata reply.
type Metadata struct {
	Title    string
	Artist   string
	Filename string
	URI      string
}

var (
	titleRe    = regexp.MustCompile(`title="(.*?)"`)
	artistRe   = regexp.MustCompile(`artist="(.*?)"`)
	filenameRe = regexp.MustCompile(`filename="(.*?)"`)
	uriRe      = regexp.MustCompile(`initial_uri="(.*?)"`)
)

// RequestMetadata fetches the engine's metadata for a handed-off request.
// An unknown identifier is ErrRejected; a reply carrying none of the
// expected key="value" pairs is ErrParse.
func (c *Client) RequestMetadata(ctx context.Context, rid queue.RID) (*Metadata, error) {
	reply, err := c.Execute(ctx, "request.metadata "+string(rid))
	if err != nil {
		return nil, err
	}
	if reply == "" || isRejection(reply) {
		return nil, errors.Wrapf(ErrRejected, "metadata for rid %s: %s", rid, reply)
	}

	md := &Metadata{
		Title:    firstGroup(titleRe, reply),
		Artist:   firstGroup(artistRe, reply),
		Filename: firstGroup(filenameRe, reply),
		URI:      firstGroup(uriRe, reply),
	}
	if *md == (Metadata{}) {
		return nil, errors.Wrapf(ErrParse, "metadata for rid %s: %q", rid, reply)
	}
	return md, nil
}

// Display renders the metadata the way operators expect to read it.
func (m *Metadata) Display(rid queue.RID) string {
	switch {
	case m.Title != "" && m.Artist != "":
		return m.Artist + " - " + m.Title
	case m.Title != "":
		return m.Title
	case m.Filename != "":
		return filepath.Base(m.Filename)
	case m.URI != "":
		return filepath.Base(m.URI)
	}
	return fmt.Sprintf("RID:%s", rid)
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

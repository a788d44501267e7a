// Package shoutcast provides a client for the engine's public statistics
// feed.
//
// The feed is a tag-delimited quasi-XML document (SHOUTcast v1 style) that
// real XML decoders reject over unescaped entities, so the expected fields
// are scraped tag by tag instead.
package shoutcast

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrParse means the feed document carried none of the expected fields.
var ErrParse = errors.New("unrecognized stats document")

// Snapshot holds the fields parsed from one stats fetch.
type Snapshot struct {
	CurrentListeners string `json:"currentlisteners"`
	PeakListeners    string `json:"peaklisteners"`
	ServerGenre      string `json:"servergenre"`
	ServerURL        string `json:"serverurl"`
	ServerTitle      string `json:"servertitle"`
	SongTitle        string `json:"songtitle"`
	StreamStatus     string `json:"streamstatus"`
	Bitrate          string `json:"bitrate"`
	Content          string `json:"content"`
}

// Config represents stats client configuration.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client fetches and parses the statistics feed.
type Client struct {
	url        string
	httpClient *http.Client
}

// New creates a new stats client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var tagPatterns = map[string]*regexp.Regexp{}

func init() {
	for _, tag := range []string{
		"CURRENTLISTENERS", "PEAKLISTENERS", "SERVERGENRE", "SERVERURL",
		"SERVERTITLE", "SONGTITLE", "STREAMSTATUS", "BITRATE", "CONTENT",
	} {
		tagPatterns[tag] = regexp.MustCompile(`<` + tag + `>(.*?)</` + tag + `>`)
	}
}

// Fetch retrieves and parses the current statistics document.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch stats")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("stats endpoint returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read stats body")
	}

	return parse(string(body))
}

func parse(doc string) (*Snapshot, error) {
	getTag := func(tag string) string {
		if m := tagPatterns[tag].FindStringSubmatch(doc); m != nil {
			return m[1]
		}
		return ""
	}

	snap := &Snapshot{
		CurrentListeners: getTag("CURRENTLISTENERS"),
		PeakListeners:    getTag("PEAKLISTENERS"),
		ServerGenre:      getTag("SERVERGENRE"),
		ServerURL:        getTag("SERVERURL"),
		ServerTitle:      getTag("SERVERTITLE"),
		SongTitle:        getTag("SONGTITLE"),
		StreamStatus:     getTag("STREAMSTATUS"),
		Bitrate:          getTag("BITRATE"),
		Content:          getTag("CONTENT"),
	}
	if *snap == (Snapshot{}) {
		return nil, errors.Wrapf(ErrParse, "body %.80q", doc)
	}
	return snap, nil
}

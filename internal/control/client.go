// Package control talks to the command-and-control API: it reports pixel
// throughput and receives drawing directives.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrControlChannel reports a failed reporting cycle: transport failure,
// an error body, or an unparsable directive. The caller keeps its
// last-known-good directive and retries on the next cycle.
var ErrControlChannel = errors.New("pxflood: control channel error")

// Directive is one instruction tuple from the control API: where to draw,
// what to draw, and which wall to flood.
type Directive struct {
	DX       int
	DY       int
	ImageURL string
	Host     string
	Port     int
	Mode     string
}

// Client reports throughput to the control API and receives directives.
type Client struct {
	apiURL string
	ver    string
	http   *http.Client
}

// NewClient returns a client for apiURL. ver is the client version tag
// included in every report.
func NewClient(apiURL, ver string, timeout time.Duration) *Client {
	return &Client{
		apiURL: apiURL,
		ver:    ver,
		http:   &http.Client{Timeout: timeout},
	}
}

// Report sends the pixel count drawn since the previous call and returns
// the next directive. The query string is appended verbatim in the form
// the API expects: {api_url}?pxc=<pixels>&ver=<tag>.
func (c *Client) Report(ctx context.Context, pixels int64) (Directive, error) {
	url := fmt.Sprintf("%s?pxc=%d&ver=%s", c.apiURL, pixels, c.ver)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Directive{}, fmt.Errorf("%w: %v", ErrControlChannel, err)
	}
	req.Header.Set("User-Agent", "pxflood/"+c.ver)

	resp, err := c.http.Do(req)
	if err != nil {
		return Directive{}, fmt.Errorf("%w: %v", ErrControlChannel, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Directive{}, fmt.Errorf("%w: read response: %v", ErrControlChannel, err)
	}
	if resp.StatusCode/100 != 2 {
		return Directive{}, fmt.Errorf("%w: status %d: %s", ErrControlChannel, resp.StatusCode, trimBody(body))
	}
	// The API signals failure in-band with an Error body.
	if strings.Contains(string(body), "Error") {
		return Directive{}, fmt.Errorf("%w: %s", ErrControlChannel, trimBody(body))
	}
	return parseDirective(body)
}

// parseDirective unpacks the six whitespace-separated response tokens:
// dx dy image_url hostname port mode.
func parseDirective(body []byte) (Directive, error) {
	f := strings.Fields(string(body))
	if len(f) != 6 {
		return Directive{}, fmt.Errorf("%w: %d fields in %q, want 6", ErrControlChannel, len(f), trimBody(body))
	}

	var d Directive
	var err error
	if d.DX, err = strconv.Atoi(f[0]); err != nil {
		return Directive{}, fmt.Errorf("%w: dx %q", ErrControlChannel, f[0])
	}
	if d.DY, err = strconv.Atoi(f[1]); err != nil {
		return Directive{}, fmt.Errorf("%w: dy %q", ErrControlChannel, f[1])
	}
	d.ImageURL = f[2]
	d.Host = f[3]
	if d.Port, err = strconv.Atoi(f[4]); err != nil {
		return Directive{}, fmt.Errorf("%w: port %q", ErrControlChannel, f[4])
	}
	d.Mode = f[5]
	return d, nil
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

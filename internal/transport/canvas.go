package transport

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Canvas cost-accounting headers. Values are decimal numbers, fractional on
// some deployments.
const (
	HeaderRateLimitRemaining = "X-Rate-Limit-Remaining"
	HeaderRequestCost        = "X-Request-Cost"
)

// throttleBodyMarker is the literal Canvas includes in throttled 403 bodies.
const throttleBodyMarker = "Rate Limit Exceeded"

// throttlePeekLimit bounds how much of a 403 body is inspected for the
// throttle marker.
const throttlePeekLimit = 4096

// IsThrottleResponse reports whether resp is a Canvas rate-limit rejection:
// HTTP 403 with X-Rate-Limit-Remaining at or below zero, or the throttle
// marker in the body. A plain 403 is a genuine authorization failure and
// reports false. The body is spliced back after inspection and remains
// fully readable downstream.
func IsThrottleResponse(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		return false
	}
	if v, ok := headerNumber(resp.Header, HeaderRateLimitRemaining); ok && v <= 0 {
		return true
	}
	peeked, err := peekBody(resp, throttlePeekLimit)
	if err != nil {
		return false
	}
	return bytes.Contains(peeked, []byte(throttleBodyMarker))
}

// headerNumber parses a numeric header value. ok is false when the header
// is absent or malformed.
func headerNumber(h http.Header, name string) (float64, bool) {
	raw := strings.TrimSpace(h.Get(name))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// peekBody reads up to n bytes of resp.Body and splices them back in front
// of the unread remainder, so downstream consumers still see the full body.
func peekBody(resp *http.Response, n int) ([]byte, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	peeked := buf[:read]
	resp.Body = &splicedBody{
		Reader: io.MultiReader(bytes.NewReader(peeked), resp.Body),
		closer: resp.Body,
	}
	return peeked, nil
}

// splicedBody re-joins peeked bytes with the unread remainder of a body
// while preserving Close on the original.
type splicedBody struct {
	io.Reader
	closer io.Closer
}

func (s *splicedBody) Close() error {
	return s.closer.Close()
}

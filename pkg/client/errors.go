package client

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client is closed")

const maxErrorBodyBytes = 512

// StatusError reports a response with a status code of 400 or above.
type StatusError struct {
	Member     string
	Method     string
	URI        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	msg := fmt.Sprintf("%s: %s %s returned status %d", e.Member, e.Method, e.URI, e.StatusCode)
	if s := strings.TrimSpace(string(body)); s != "" {
		msg += ": " + s
	}
	return msg
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

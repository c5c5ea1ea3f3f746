package httpclient

import (
	"context"
	"net/http"

	"github.com/samvad-hq/httpcap/pkg/request"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header() http.Header
}

// Executor sends a composed request message and returns the response, so
// callers can inject mocks or different transports.
type Executor interface {
	Execute(ctx context.Context, msg *request.Message) (Response, error)
}

package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samvad-hq/httpcap/pkg/request"
)

// RestyClient adapts resty.Client to the httpclient.Executor interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// Execute sends msg. A per-message timeout narrows the context deadline;
// multipart bodies are streamed through a pipe instead of buffered.
func (r *RestyClient) Execute(ctx context.Context, msg *request.Message) (Response, error) {
	if msg == nil {
		return nil, errors.New("request message is nil")
	}
	if strings.TrimSpace(msg.URI) == "" {
		return nil, errors.New("request message has no uri")
	}
	if msg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, msg.Timeout)
		defer cancel()
	}

	req := r.client.R().SetContext(ctx)
	for key, values := range msg.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	switch msg.BodyKind() {
	case request.BodyBytes, request.BodyForm:
		req.SetBody(msg.Body())
	case request.BodyMultipart:
		pr, pw := io.Pipe()
		defer pr.Close()
		go func() {
			pw.CloseWithError(msg.Multipart().Encode(pw))
		}()
		req.SetBody(pr)
	}

	method := msg.Method
	if method == "" {
		method = http.MethodGet
	}
	resp, err := req.Execute(method, msg.URI)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte        { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int     { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Header() http.Header { return r.resp.Header() }

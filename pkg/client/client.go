// Package client turns intercepted interface calls into HTTP requests. Each
// member is resolved against a route table by its qualified name, composed
// into a request.Message, executed and its response decoded into the
// member's declared result type.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/httpcap/internal/logger"
	"github.com/samvad-hq/httpcap/internal/storage"
	"github.com/samvad-hq/httpcap/pkg/dispatch"
	"github.com/samvad-hq/httpcap/pkg/events"
	"github.com/samvad-hq/httpcap/pkg/faults"
	"github.com/samvad-hq/httpcap/pkg/httpclient"
	"github.com/samvad-hq/httpcap/pkg/request"
	"github.com/samvad-hq/httpcap/pkg/routes"
)

const defaultTimeout = 30 * time.Second

// EventSink receives one CallEvent per executed call.
type EventSink interface {
	Publish(ctx context.Context, evt events.CallEvent) (int, error)
}

// Client is a dispatch.Interceptor backed by an HTTP executor.
type Client struct {
	base      *url.URL
	table     *routes.Table
	exec      httpclient.Executor
	cache     storage.Cache
	sink      EventSink
	log       logger.Logger
	userAgent string
	timeout   time.Duration
	ifaceName string
	closed    atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor replaces the default resty executor.
func WithExecutor(exec httpclient.Executor) Option {
	return func(c *Client) { c.exec = exec }
}

// WithLogger sets the client logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithCache serves repeated GET calls from cache.
func WithCache(cache storage.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// WithEvents publishes a CallEvent for every executed call.
func WithEvents(sink EventSink) Option {
	return func(c *Client) { c.sink = sink }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// WithTimeout sets the executor timeout used when no executor is supplied.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithInterfaceName overrides the owner part of route names, so members of
// bound structs resolve as "<name>.<Member>".
func WithInterfaceName(name string) Option {
	return func(c *Client) { c.ifaceName = strings.TrimSpace(name) }
}

// New returns a Client that resolves routes from table relative to baseURL.
func New(baseURL string, table *routes.Table, opts ...Option) (*Client, error) {
	if table == nil {
		return nil, faults.Configuration("client needs a route table")
	}
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, faults.Configuration("client base url %q must be an absolute http(s) url", baseURL)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, faults.Configuration("client base url %q must use http or https", baseURL)
	}

	c := &Client{
		base:    base,
		table:   table,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.exec == nil {
		c.exec = httpclient.NewRestyClient(c.timeout)
	}
	c.log = logger.OrNop(c.log)
	return c, nil
}

// Make builds a T dispatcher on the default registry that forwards to c.
func Make[T any](c *Client) (T, error) {
	return dispatch.New[T](c)
}

// MakeFrom is Make for a specific registry.
func MakeFrom[T any](r *dispatch.Registry, c *Client) (T, error) {
	return dispatch.NewFrom[T](r, c)
}

// Close stops the client; later calls fail with ErrClosed. The cache and
// event sink belong to the caller and are left open.
func (c *Client) Close() error {
	c.closed.Store(true)
	return nil
}

// RouteName returns the route table key for member.
func (c *Client) RouteName(member *dispatch.MemberDescriptor) string {
	if c.ifaceName != "" {
		return c.ifaceName + "." + member.Name
	}
	return member.Qualified()
}

// Intercept implements dispatch.Interceptor. Composition errors are returned
// directly; future members execute on their own goroutine.
func (c *Client) Intercept(_ any, member *dispatch.MemberDescriptor, args []any) (any, error) {
	if member == nil {
		return nil, faults.Argument("intercept: member descriptor is nil")
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}

	name := c.RouteName(member)
	route, ok := c.table.Lookup(name)
	if !ok {
		return nil, faults.Configuration("no route registered for %s", name)
	}

	msg, err := c.Compose(route, member, args)
	if err != nil {
		return nil, err
	}
	ctx := contextArg(member, args)

	if member.Kind == dispatch.ResultFuture {
		return dispatch.Go(func() (any, error) {
			return c.execute(ctx, name, member, msg)
		}), nil
	}
	return c.execute(ctx, name, member, msg)
}

// execute sends msg, consulting the cache for GET requests, and decodes the
// response into the member's result type.
func (c *Client) execute(ctx context.Context, name string, member *dispatch.MemberDescriptor, msg *request.Message) (any, error) {
	start := time.Now()
	cacheKey := c.cacheKey(msg)

	if cacheKey != "" {
		if entry, found := c.cached(cacheKey); found {
			c.publish(ctx, member, msg, entry.status, start, true, nil)
			return decodeResult(member, entry.contentType, entry.body)
		}
	}

	resp, err := c.exec.Execute(ctx, msg)
	if err != nil {
		c.log.WarnObj("call failed", "call_error", map[string]any{
			"call":  name,
			"uri":   msg.URI,
			"error": err.Error(),
		})
		c.publish(ctx, member, msg, 0, start, false, err)
		return nil, err
	}

	status := resp.StatusCode()
	body := resp.Body()
	ct := resp.Header().Get(request.HeaderContentType)
	if status >= http.StatusBadRequest {
		err := &StatusError{Member: name, Method: msg.Method, URI: msg.URI, StatusCode: status, Body: body}
		c.publish(ctx, member, msg, status, start, false, err)
		return nil, err
	}

	if cacheKey != "" {
		entry := cacheEntry{status: status, contentType: ct, body: body}
		if err := c.cache.Put(cacheKey, entry.encode()); err != nil {
			c.log.WarnObj("cache put failed", "cache_error", map[string]any{
				"key":   cacheKey,
				"error": err.Error(),
			})
		}
	}

	c.log.DebugObj("call completed", "call", map[string]any{
		"call":        name,
		"method":      msg.Method,
		"uri":         msg.URI,
		"status":      status,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	c.publish(ctx, member, msg, status, start, false, nil)
	return decodeResult(member, ct, body)
}

// cacheKey identifies a GET by its URI and every composed header, so
// header and cookie parameters never share an entry. Header values may carry
// credentials and are hashed rather than stored.
func (c *Client) cacheKey(msg *request.Message) string {
	if c.cache == nil || msg.Method != http.MethodGet {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(msg.Method + "\x00" + msg.URI + "\x00"))
	keys := make([]string, 0, len(msg.Header))
	for k := range msg.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		for _, v := range msg.Header[k] {
			h.Write([]byte("\x00" + v))
		}
		h.Write([]byte("\n"))
	}
	return msg.Method + " " + hex.EncodeToString(h.Sum(nil))
}

func (c *Client) cached(key string) (cacheEntry, bool) {
	raw, found, err := c.cache.Get(key)
	if err != nil {
		c.log.WarnObj("cache get failed", "cache_error", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
		return cacheEntry{}, false
	}
	if !found {
		return cacheEntry{}, false
	}
	return decodeCacheEntry(raw)
}

type cacheEntry struct {
	status      int
	contentType string
	body        []byte
}

// Cache entries are "<status>\x00<content-type>\x00<body>".
func (e cacheEntry) encode() []byte {
	status := strconv.Itoa(e.status)
	out := make([]byte, 0, len(status)+len(e.contentType)+2+len(e.body))
	out = append(out, status...)
	out = append(out, 0)
	out = append(out, e.contentType...)
	out = append(out, 0)
	return append(out, e.body...)
}

func decodeCacheEntry(raw []byte) (cacheEntry, bool) {
	parts := bytes.SplitN(raw, []byte{0}, 3)
	if len(parts) != 3 {
		return cacheEntry{}, false
	}
	status, err := strconv.Atoi(string(parts[0]))
	if err != nil || status < 100 || status > 999 {
		return cacheEntry{}, false
	}
	return cacheEntry{status: status, contentType: string(parts[1]), body: parts[2]}, true
}

func (c *Client) publish(ctx context.Context, member *dispatch.MemberDescriptor, msg *request.Message, status int, start time.Time, cached bool, callErr error) {
	if c.sink == nil {
		return
	}
	owner := member.Owner
	if c.ifaceName != "" {
		owner = c.ifaceName
	}
	evt := events.NewCallEvent(owner, member.Name, msg.Method, msg.URI, status, start, callErr)
	evt.Cached = cached
	if _, err := c.sink.Publish(context.WithoutCancel(ctx), evt); err != nil {
		c.log.WarnObj("call event publish failed", "event_error", map[string]any{
			"call":  evt.Qualified(),
			"error": err.Error(),
		})
	}
}

// contextArg returns the member's context argument, or Background.
func contextArg(member *dispatch.MemberDescriptor, args []any) context.Context {
	if i := member.ContextIndex(); i >= 0 && i < len(args) {
		if ctx, ok := args[i].(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

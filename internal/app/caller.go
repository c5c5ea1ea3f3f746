package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/samvad-hq/httpcap/internal/config"
	"github.com/samvad-hq/httpcap/internal/logger"
	"github.com/samvad-hq/httpcap/internal/storage"
	"github.com/samvad-hq/httpcap/pkg/client"
	"github.com/samvad-hq/httpcap/pkg/dispatch"
	"github.com/samvad-hq/httpcap/pkg/events"
	"github.com/samvad-hq/httpcap/pkg/faults"
	"github.com/samvad-hq/httpcap/pkg/routes"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	stringType  = reflect.TypeOf("")
	bytesType   = reflect.TypeOf([]byte(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Caller invokes routes by name without a Go interface. Every route parameter
// is passed as a string and the raw response body is returned.
type Caller struct {
	cfg    *config.Config
	table  *routes.Table
	client *client.Client
	cache  storage.Cache
	fanout *events.Fanout
	log    logger.Logger
}

// NewCaller builds a caller from config: the route table, the response cache,
// the enabled event sinks and the client tying them together. Extra client
// options are applied last.
func NewCaller(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...client.Option) (*Caller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.OrNop(log)
	if ctx == nil {
		ctx = context.Background()
	}

	table, err := routes.Load(cfg.RoutesFile)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	log.InfoObj("route table loaded", "routes_meta", map[string]any{
		"count": len(table.All()),
		"file":  cfg.RoutesFile,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	cache, err := storage.NewCache(cfg.CacheType, cfg.CachePath, storage.Options{
		TTL:             cfg.CacheTTL,
		CleanupInterval: cfg.CacheCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	log.InfoObj("cache initialized", "cache_config", map[string]any{
		"type":                     cfg.CacheType,
		"path":                     cfg.CachePath,
		"ttl_seconds":              int(cfg.CacheTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.CacheCleanupInterval.Seconds()),
	})

	base := []client.Option{
		client.WithLogger(log),
		client.WithCache(cache),
		client.WithUserAgent(cfg.UserAgent),
		client.WithTimeout(cfg.RequestTimeout),
	}
	if fanout.Size() > 0 {
		base = append(base, client.WithEvents(fanout))
	}
	c, err := client.New(cfg.BaseURL, table, append(base, opts...)...)
	if err != nil {
		_ = cache.Close()
		_ = fanout.Close()
		return nil, err
	}

	return &Caller{
		cfg:    cfg,
		table:  table,
		client: c,
		cache:  cache,
		fanout: fanout,
		log:    log,
	}, nil
}

// buildFanout loads the enabled sinks. A missing sinks file means no sinks.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*events.Fanout, error) {
	if strings.TrimSpace(cfg.SinksFile) == "" {
		return events.NewFanout(nil), nil
	}
	reg, err := events.LoadConfig(cfg.SinksFile)
	if err != nil {
		return nil, fmt.Errorf("load sinks: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := events.BuildAll(ctx, events.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, s := range enabled {
		summaries = append(summaries, map[string]string{"id": s.ID, "type": s.Type})
	}
	log.InfoObj("event sinks loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})
	return events.NewFanout(pubs), nil
}

// Routes returns the route table sorted by name.
func (c *Caller) Routes() []routes.Route {
	return c.table.All()
}

// Call invokes the named route. Params matching route parameters are placed
// as the route declares; other params are sent as query parameters.
func (c *Caller) Call(ctx context.Context, routeName string, params map[string]string) ([]byte, error) {
	route, ok := c.table.Lookup(routeName)
	if !ok {
		return nil, faults.Configuration("no route registered for %s", routeName)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	member, args := dynamicMember(route, params)
	args[0] = ctx
	res, err := c.client.Intercept(c, member, args)
	return dispatch.Value[[]byte](member, res, err)
}

// dynamicMember describes a call of route as func(ctx, string...) ([]byte, error).
func dynamicMember(route routes.Route, params map[string]string) (*dispatch.MemberDescriptor, []any) {
	owner, name := "", route.Name
	if i := strings.LastIndex(route.Name, "."); i >= 0 {
		owner, name = route.Name[:i], route.Name[i+1:]
	}

	md := &dispatch.MemberDescriptor{
		Owner:        owner,
		Name:         name,
		Kind:         dispatch.ResultValue,
		Result:       bytesType,
		ReturnsError: true,
		Params: []dispatch.ParameterDescriptor{
			{Name: "ctx", Position: 0, Type: contextType, Kind: dispatch.ValueReference, IsContext: true},
		},
	}
	args := []any{nil}

	used := make(map[string]bool, len(params))
	add := func(pname string, value any) {
		md.Params = append(md.Params, dispatch.ParameterDescriptor{
			Name:     pname,
			Position: len(md.Params),
			Type:     stringType,
			Kind:     dispatch.ValueScalar,
		})
		args = append(args, value)
	}
	for _, p := range route.Params {
		v, ok := lookupParam(params, p)
		if !ok {
			add(p.Name, nil)
			continue
		}
		used[v.key] = true
		add(p.Name, v.value)
	}

	extra := make([]string, 0, len(params))
	for k := range params {
		if !used[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		add(k, params[k])
	}

	in := make([]reflect.Type, len(md.Params))
	for i, p := range md.Params {
		in[i] = p.Type
	}
	md.Type = reflect.FuncOf(in, []reflect.Type{bytesType, errorType}, false)
	return md, args
}

type paramValue struct {
	key   string
	value string
}

// lookupParam matches a route param by name, then by wire name, ignoring case.
func lookupParam(params map[string]string, p routes.Param) (paramValue, bool) {
	for _, want := range []string{p.Name, p.WireName()} {
		if v, ok := params[want]; ok {
			return paramValue{key: want, value: v}, true
		}
		for k, v := range params {
			if strings.EqualFold(k, want) {
				return paramValue{key: k, value: v}, true
			}
		}
	}
	return paramValue{}, false
}

// Close releases the client, cache and event sinks.
func (c *Caller) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if err := c.client.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.cache.Close(); err != nil {
		c.log.ErrorObj("cache close failed", "error", err)
		errs = append(errs, err)
	}
	if err := c.fanout.Close(); err != nil {
		c.log.ErrorObj("event sinks close failed", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

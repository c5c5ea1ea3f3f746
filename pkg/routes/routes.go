// Package routes maps interface members to HTTP verbs, paths and parameter
// placements. Tables are loaded from YAML/JSON files or built in code.
package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Parameter placements.
const (
	InQuery  = "query"
	InForm   = "form"
	InBody   = "body"
	InPath   = "path"
	InHeader = "header"
	InFile   = "file"
	InText   = "text"
	InCookie = "cookie"
)

var placements = map[string]bool{
	InQuery: true, InForm: true, InBody: true, InPath: true,
	InHeader: true, InFile: true, InText: true, InCookie: true,
}

var bodyPlacements = map[string]bool{InForm: true, InBody: true, InFile: true, InText: true}

var knownMethods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodOptions: true,
}

var pathParamRe = regexp.MustCompile(`\{([^{}/]+)\}`)

const defaultMethod = http.MethodGet

// Route describes how one member maps onto an HTTP call. Name is the
// member's qualified name, e.g. "UserAPI.GetUser".
type Route struct {
	Name           string            `json:"name" yaml:"name"`
	Method         string            `json:"method" yaml:"method"`
	Path           string            `json:"path" yaml:"path"`
	ContentType    string            `json:"content_type" yaml:"content_type"`
	Accept         string            `json:"accept" yaml:"accept"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	Params         []Param           `json:"params" yaml:"params"`
}

// Param binds a member parameter, by name, to a placement. Field is the
// wire name and defaults to Name.
type Param struct {
	Name     string `json:"name" yaml:"name"`
	In       string `json:"in" yaml:"in"`
	Field    string `json:"field" yaml:"field"`
	Filename string `json:"filename" yaml:"filename"`
}

// WireName returns the name used on the wire.
func (p Param) WireName() string {
	if p.Field != "" {
		return p.Field
	}
	return p.Name
}

// Timeout returns the per-route timeout, zero when unset.
func (r Route) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Param returns the binding for a parameter name, case-insensitively.
func (r Route) Param(name string) (Param, bool) {
	for _, p := range r.Params {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return Param{}, false
}

// configFile represents the structure of a routes file.
type configFile struct {
	Routes []Route `json:"routes" yaml:"routes"`
}

// Table is an immutable-after-load set of routes indexed by name.
type Table struct {
	mu     sync.RWMutex
	routes []Route
	idx    map[string]Route
}

// NewTable validates routes and indexes them by name.
func NewTable(routes ...Route) (*Table, error) {
	t := &Table{
		routes: make([]Route, 0, len(routes)),
		idx:    make(map[string]Route, len(routes)),
	}
	for i := range routes {
		r := sanitizeRoute(routes[i])
		if err := validateRoute(r); err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		key := strings.ToLower(r.Name)
		if _, exists := t.idx[key]; exists {
			return nil, fmt.Errorf("duplicate route %q", r.Name)
		}
		t.routes = append(t.routes, r)
		t.idx[key] = r
	}
	return t, nil
}

// Load reads a route table from a YAML/JSON file.
func Load(path string) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("routes file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open routes file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	cfg, err := parseRoutes(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(cfg.Routes) == 0 {
		return nil, errors.New("routes file contains no routes entries")
	}
	return NewTable(cfg.Routes...)
}

// Lookup returns the route registered under name.
func (t *Table) Lookup(name string) (Route, bool) {
	if t == nil {
		return Route{}, false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Route{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.idx[name]
	return r, ok
}

// All returns the routes sorted by name.
func (t *Table) All() []Route {
	if t == nil {
		return nil
	}

	t.mu.RLock()
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// parseRoutes attempts to decode the routes file content.
func parseRoutes(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if cfg, err := unmarshalRoutes(d.name, data, d.fn); err == nil {
			return cfg, nil
		}
	}

	return configFile{}, errors.New("routes file format not recognized (expected YAML or JSON)")
}

func unmarshalRoutes(name string, data []byte, fn func([]byte, any) error) (configFile, error) {
	var cfg configFile
	if err := fn(data, &cfg); err != nil {
		return configFile{}, fmt.Errorf("decode %s routes: %w", name, err)
	}
	return cfg, nil
}

// sanitizeRoute trims and normalizes route fields.
func sanitizeRoute(r Route) Route {
	r.Name = strings.TrimSpace(r.Name)
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
	if r.Method == "" {
		r.Method = defaultMethod
	}
	r.Path = strings.TrimSpace(r.Path)
	r.ContentType = strings.TrimSpace(r.ContentType)
	r.Accept = strings.TrimSpace(r.Accept)
	r.Headers = sanitizeHeaders(r.Headers)

	params := make([]Param, len(r.Params))
	for i, p := range r.Params {
		p.Name = strings.TrimSpace(p.Name)
		p.In = strings.ToLower(strings.TrimSpace(p.In))
		p.Field = strings.TrimSpace(p.Field)
		p.Filename = strings.TrimSpace(p.Filename)
		params[i] = p
	}
	r.Params = params
	return r
}

// sanitizeHeaders trims and removes empty headers.
func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// validateRoute checks that required fields are present and consistent.
func validateRoute(r Route) error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if !knownMethods[r.Method] {
		return fmt.Errorf("route %q has unknown method %q", r.Name, r.Method)
	}
	if r.TimeoutSeconds < 0 {
		return fmt.Errorf("route %q timeout_seconds must not be negative", r.Name)
	}

	bodyless := r.Method == http.MethodGet || r.Method == http.MethodHead
	seen := make(map[string]bool, len(r.Params))
	pathParams := make(map[string]bool)
	bodies := 0
	for _, p := range r.Params {
		if p.Name == "" {
			return fmt.Errorf("route %q has a param without a name", r.Name)
		}
		key := strings.ToLower(p.Name)
		if seen[key] {
			return fmt.Errorf("route %q binds param %q twice", r.Name, p.Name)
		}
		seen[key] = true

		if !placements[p.In] {
			return fmt.Errorf("route %q param %q has unknown placement %q", r.Name, p.Name, p.In)
		}
		if bodyless && bodyPlacements[p.In] {
			return fmt.Errorf("route %q is %s and cannot carry %s param %q", r.Name, r.Method, p.In, p.Name)
		}
		if p.In == InBody {
			bodies++
		}
		if p.In == InPath {
			if !strings.Contains(r.Path, "{"+p.WireName()+"}") {
				return fmt.Errorf("route %q path %q has no {%s} placeholder", r.Name, r.Path, p.WireName())
			}
			pathParams[p.WireName()] = true
		}
	}
	if bodies > 1 {
		return fmt.Errorf("route %q binds more than one body param", r.Name)
	}

	for _, m := range pathParamRe.FindAllStringSubmatch(r.Path, -1) {
		if !pathParams[m[1]] {
			return fmt.Errorf("route %q path placeholder {%s} has no path param", r.Name, m[1])
		}
	}
	return nil
}

package client

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/samvad-hq/httpcap/pkg/dispatch"
	"github.com/samvad-hq/httpcap/pkg/faults"
	"github.com/samvad-hq/httpcap/pkg/request"
	"github.com/samvad-hq/httpcap/pkg/routes"
	"gopkg.in/yaml.v3"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeXML    = "application/xml"
	contentTypeYAML   = "application/yaml"
	contentTypeText   = "text/plain; charset=utf-8"
	contentTypeBinary = "application/octet-stream"
)

var unnamedParam = regexp.MustCompile(`^p\d+$`)

// composition accumulates placements that are applied once all arguments
// are seen.
type composition struct {
	form    []request.Pair
	cookies []string
	body    bool
}

// Compose builds the request message for one call of member routed by route.
func (c *Client) Compose(route routes.Route, member *dispatch.MemberDescriptor, args []any) (*request.Message, error) {
	if len(args) != len(member.Params) {
		return nil, faults.Argument("%s: got %d arguments, want %d", member.Qualified(), len(args), len(member.Params))
	}

	msg := request.NewMessage(route.Method, c.resolve(route.Path))
	msg.Timeout = route.Timeout()
	if c.userAgent != "" {
		msg.SetHeader("User-Agent", c.userAgent)
	}
	if route.Accept != "" {
		msg.SetHeader("Accept", route.Accept)
	}
	keys := make([]string, 0, len(route.Headers))
	for k := range route.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		msg.SetHeader(k, route.Headers[k])
	}

	var comp composition
	ordinal := 0
	for _, pd := range member.Params {
		if pd.IsContext {
			continue
		}
		p := bindingFor(route, pd, ordinal)
		ordinal++
		if err := comp.apply(msg, route, p, args[pd.Position]); err != nil {
			return nil, fmt.Errorf("%s: parameter %s: %w", member.Qualified(), pd.Name, err)
		}
	}

	if len(comp.form) > 0 {
		if err := msg.MergeFormFields(comp.form); err != nil {
			return nil, fmt.Errorf("%s: %w", member.Qualified(), err)
		}
	}
	if len(comp.cookies) > 0 {
		msg.SetCookies(strings.Join(comp.cookies, "; "))
	}
	return msg, nil
}

// resolve joins the route path onto the base URL. Absolute paths are kept.
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimRight(c.base.String(), "/")
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}

// bindingFor resolves the placement of pd. Parameters without a route entry
// fall back to the ordinal-th route param when unnamed, then to a default.
func bindingFor(route routes.Route, pd dispatch.ParameterDescriptor, ordinal int) routes.Param {
	if p, ok := route.Param(pd.Name); ok {
		return p
	}
	if unnamedParam.MatchString(pd.Name) && ordinal < len(route.Params) {
		return route.Params[ordinal]
	}
	return routes.Param{Name: pd.Name, In: defaultPlacement(route.Method, pd)}
}

func defaultPlacement(method string, pd dispatch.ParameterDescriptor) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete, http.MethodOptions:
		return routes.InQuery
	}
	if pd.Kind == dispatch.ValueScalar {
		return routes.InQuery
	}
	return routes.InBody
}

func (comp *composition) apply(msg *request.Message, route routes.Route, p routes.Param, arg any) error {
	name := p.WireName()
	switch p.In {
	case routes.InPath:
		s, ok := stringify(arg)
		if !ok {
			return faults.Argument("path parameter %q is nil", name)
		}
		return msg.ReplacePathParam(name, s)
	case routes.InQuery:
		for _, pair := range formPairs(name, arg) {
			if err := msg.AppendQuery(pair.Key, pair.Value); err != nil {
				return err
			}
		}
	case routes.InHeader:
		for _, s := range scalars(arg) {
			msg.AddHeader(name, s)
		}
	case routes.InCookie:
		if s, ok := stringify(arg); ok {
			comp.cookies = append(comp.cookies, name+"="+s)
		}
	case routes.InForm:
		comp.form = append(comp.form, formPairs(name, arg)...)
	case routes.InText:
		if s, ok := stringify(arg); ok {
			return msg.AddMultipartText(name, s)
		}
	case routes.InFile:
		return addFile(msg, p, arg)
	case routes.InBody:
		if comp.body {
			return faults.Configuration("more than one body parameter")
		}
		if isNil(arg) {
			return nil
		}
		data, ct, err := encodeBody(arg, route.ContentType)
		if err != nil {
			return err
		}
		comp.body = true
		return msg.SetBody(data, ct)
	default:
		return faults.Configuration("unknown placement %q", p.In)
	}
	return nil
}

// stringify renders a scalar argument. It reports false for nil values.
func stringify(v any) (string, bool) {
	if isNil(v) {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case time.Time:
		return x.Format(time.RFC3339), true
	case fmt.Stringer:
		return x.String(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v), true
}

// scalars expands slices and arrays into one string per element.
func scalars(v any) []string {
	if isNil(v) {
		return nil
	}
	if _, ok := v.([]byte); ok {
		s, _ := stringify(v)
		return []string{s}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if s, ok := stringify(rv.Index(i).Interface()); ok {
				out = append(out, s)
			}
		}
		return out
	}
	s, _ := stringify(v)
	return []string{s}
}

// formPairs flattens maps and url.Values into ordered pairs; anything else
// becomes name=value pairs.
func formPairs(name string, v any) []request.Pair {
	switch x := v.(type) {
	case nil:
		return nil
	case []request.Pair:
		return x
	case url.Values:
		var out []request.Pair
		for _, k := range sortedKeys(x) {
			for _, val := range x[k] {
				out = append(out, request.Pair{Key: k, Value: val})
			}
		}
		return out
	case map[string]string:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]request.Pair, 0, len(keys))
		for _, k := range keys {
			out = append(out, request.Pair{Key: k, Value: x[k]})
		}
		return out
	}
	var out []request.Pair
	for _, s := range scalars(v) {
		out = append(out, request.Pair{Key: name, Value: s})
	}
	return out
}

func sortedKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func addFile(msg *request.Message, p routes.Param, arg any) error {
	if isNil(arg) {
		return nil
	}
	filename := p.Filename
	var r io.Reader
	switch x := arg.(type) {
	case io.Reader:
		r = x
		if named, ok := x.(interface{ Name() string }); ok && filename == "" {
			filename = filepath.Base(named.Name())
		}
	case []byte:
		r = bytes.NewReader(x)
	case string:
		r = strings.NewReader(x)
	default:
		return faults.Argument("file parameter %q must be an io.Reader, []byte or string, got %T", p.Name, arg)
	}
	if filename == "" {
		filename = p.WireName()
	}
	return msg.AddMultipartFile(r, p.WireName(), filename, mime.TypeByExtension(filepath.Ext(filename)))
}

// encodeBody serializes a body argument. Raw bytes, strings and readers are
// sent as is; other values are encoded by the route's content type, JSON by
// default.
func encodeBody(arg any, contentType string) ([]byte, string, error) {
	switch x := arg.(type) {
	case []byte:
		return x, orDefault(contentType, contentTypeBinary), nil
	case string:
		return []byte(x), orDefault(contentType, contentTypeText), nil
	case io.Reader:
		data, err := io.ReadAll(x)
		if err != nil {
			return nil, "", fmt.Errorf("read body: %w", err)
		}
		return data, orDefault(contentType, contentTypeBinary), nil
	}

	var (
		data []byte
		err  error
	)
	switch formatOf(contentType) {
	case formatXML:
		data, err = xml.Marshal(arg)
		contentType = orDefault(contentType, contentTypeXML)
	case formatYAML:
		data, err = yaml.Marshal(arg)
		contentType = orDefault(contentType, contentTypeYAML)
	default:
		data, err = json.Marshal(arg)
		contentType = orDefault(contentType, contentTypeJSON)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode body: %w", err)
	}
	return data, contentType, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

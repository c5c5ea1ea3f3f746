// Package request models one outgoing HTTP request and the operations that
// compose its URI, headers and body before it is handed to a transport.
package request

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/httpcap/pkg/faults"
)

// BodyKind is the body state of a Message.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyBytes
	BodyForm
	BodyMultipart
)

func (k BodyKind) String() string {
	switch k {
	case BodyBytes:
		return "bytes"
	case BodyForm:
		return "form-encoded"
	case BodyMultipart:
		return "multipart"
	default:
		return "none"
	}
}

const (
	HeaderContentType = "Content-Type"
	HeaderCookie      = "Cookie"

	ContentTypeForm = "application/x-www-form-urlencoded"
)

// Message is a mutable outgoing request. A Message belongs to the single call
// composing it and is not safe for concurrent use.
type Message struct {
	Method string
	URI    string
	Header http.Header

	// Timeout is an optional per-request override read by the transport.
	// Zero means unset.
	Timeout time.Duration

	kind      BodyKind
	body      []byte
	multipart *Multipart
}

// NewMessage returns a Message with an empty header map.
func NewMessage(method, uri string) *Message {
	return &Message{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		URI:    uri,
		Header: make(http.Header),
	}
}

// BodyKind reports the current body state.
func (m *Message) BodyKind() BodyKind { return m.kind }

// Multipart returns the multipart container, or nil when the body is not multipart.
func (m *Message) Multipart() *Multipart { return m.multipart }

// ContentType returns the Content-Type header.
func (m *Message) ContentType() string { return m.header().Get(HeaderContentType) }

// Body returns a copy of a bytes or form-encoded body. Multipart bodies are
// streamed by the transport via Multipart().Encode and return nil here.
func (m *Message) Body() []byte {
	if m.kind == BodyNone || m.kind == BodyMultipart {
		return nil
	}
	return ConcatBytes(m.body, nil)
}

// SetHeader replaces the values of key.
func (m *Message) SetHeader(key, value string) { m.header().Set(key, value) }

// AddHeader appends value to key, keeping earlier values in order.
func (m *Message) AddHeader(key, value string) { m.header().Add(key, value) }

// AppendQuery appends key=value to the URI. Repeated calls never overwrite.
func (m *Message) AppendQuery(key, value string) error {
	if strings.TrimSpace(m.URI) == "" {
		return faults.Configuration("append query %q: request uri is not set", key)
	}
	if key == "" {
		return faults.Argument("query parameter name is empty")
	}

	base := strings.TrimRight(m.URI, "?&/")
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	m.URI = base + sep + key + "=" + Escape(value)
	return nil
}

// ReplacePathParam substitutes the {name} placeholder in the URI with the
// path-escaped value.
func (m *Message) ReplacePathParam(name, value string) error {
	if name == "" {
		return faults.Argument("path parameter name is empty")
	}
	placeholder := "{" + name + "}"
	if !strings.Contains(m.URI, placeholder) {
		return faults.Configuration("path parameter %q not present in %q", name, m.URI)
	}
	m.URI = strings.ReplaceAll(m.URI, placeholder, url.PathEscape(value))
	return nil
}

// SetBody sets a raw body. It cannot replace a form or multipart body.
func (m *Message) SetBody(data []byte, contentType string) error {
	if err := m.checkBody("set body", BodyBytes); err != nil {
		return err
	}
	m.kind = BodyBytes
	m.body = ConcatBytes(data, nil)
	if contentType != "" {
		m.SetHeader(HeaderContentType, contentType)
	}
	return nil
}

// MergeFormFields appends pairs to a form-encoded body, creating it when the
// body is empty.
func (m *Message) MergeFormFields(pairs []Pair) error {
	if err := m.checkBody("merge form fields", BodyForm); err != nil {
		return err
	}
	for _, p := range pairs {
		if p.Key == "" {
			return faults.Argument("form field name is empty")
		}
	}

	prev := m.body
	next := FormEncode(pairs)
	switch {
	case len(prev) == 0:
		m.body = next
	case len(next) == 0:
		m.body = prev
	default:
		m.body = ConcatBytes(ConcatBytes(prev, []byte{'&'}), next)
	}
	m.kind = BodyForm
	m.SetHeader(HeaderContentType, ContentTypeForm)
	return nil
}

// AddMultipartFile appends a file part streamed from r.
func (m *Message) AddMultipartFile(r io.Reader, name, filename, contentType string) error {
	if err := m.checkBody("add multipart file", BodyMultipart); err != nil {
		return err
	}
	if name == "" {
		return faults.Argument("multipart file part name is empty")
	}
	if r == nil {
		return faults.Argument("multipart file part %q has no content", name)
	}
	m.ensureMultipart().add(Part{
		Kind:        PartFile,
		Name:        name,
		Filename:    filename,
		ContentType: contentType,
		Reader:      r,
	})
	return nil
}

// AddMultipartText appends a text field part.
func (m *Message) AddMultipartText(name, value string) error {
	if err := m.checkBody("add multipart text", BodyMultipart); err != nil {
		return err
	}
	if name == "" {
		return faults.Argument("multipart text part name is empty")
	}
	m.ensureMultipart().add(Part{Kind: PartText, Name: name, Value: value})
	return nil
}

func (m *Message) ensureMultipart() *Multipart {
	if m.multipart == nil {
		m.multipart = newMultipart()
		m.SetHeader(HeaderContentType, m.multipart.ContentType())
	}
	m.kind = BodyMultipart
	return m.multipart
}

// checkBody enforces the GET/HEAD guard and the body kind state machine.
func (m *Message) checkBody(op string, want BodyKind) error {
	if strings.EqualFold(m.Method, http.MethodGet) || strings.EqualFold(m.Method, http.MethodHead) {
		return faults.Unsupported("%s: %s requests carry no body", op, m.Method)
	}
	if m.kind != BodyNone && m.kind != want {
		return faults.Unsupported("%s: body is already %s", op, m.kind)
	}
	return nil
}

func (m *Message) header() http.Header {
	if m.Header == nil {
		m.Header = make(http.Header)
	}
	return m.Header
}

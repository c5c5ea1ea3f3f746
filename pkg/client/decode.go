package client

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"mime"
	"reflect"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/httpcap/pkg/dispatch"
	"gopkg.in/yaml.v3"
)

type format int

const (
	formatJSON format = iota
	formatXML
	formatYAML
	formatHTML
)

var (
	bytesType    = reflect.TypeOf([]byte(nil))
	documentType = reflect.TypeOf((*goquery.Document)(nil))
)

// formatOf maps a Content-Type to a codec. Unknown types decode as JSON.
func formatOf(contentType string) format {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch {
	case strings.Contains(mt, "json"):
		return formatJSON
	case strings.Contains(mt, "yaml"):
		return formatYAML
	case mt == "text/html" || mt == "application/xhtml+xml":
		return formatHTML
	case strings.Contains(mt, "xml"):
		return formatXML
	default:
		return formatJSON
	}
}

// decodeResult converts a response body to the member's result type. Void
// members and empty bodies yield nil.
func decodeResult(member *dispatch.MemberDescriptor, contentType string, body []byte) (any, error) {
	t := member.Result
	if member.Kind == dispatch.ResultVoid || t == nil {
		return nil, nil
	}

	switch {
	case t == bytesType:
		return append([]byte(nil), body...), nil
	case t.Kind() == reflect.String:
		return reflect.ValueOf(string(body)).Convert(t).Interface(), nil
	case t == documentType:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%s: parse html: %w", member.Qualified(), err)
		}
		return doc, nil
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	ptr := reflect.New(t)
	var err error
	switch formatOf(contentType) {
	case formatXML:
		err = xml.Unmarshal(body, ptr.Interface())
	case formatYAML:
		err = yaml.Unmarshal(body, ptr.Interface())
	case formatHTML:
		return nil, fmt.Errorf("%s: html response cannot be decoded into %s", member.Qualified(), t)
	default:
		err = json.Unmarshal(body, ptr.Interface())
	}
	if err != nil {
		return nil, fmt.Errorf("%s: decode %s: %w", member.Qualified(), t, err)
	}
	return ptr.Elem().Interface(), nil
}

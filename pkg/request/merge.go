package request

import (
	"net/url"
	"strings"
)

// Pair is one form field. Order of a []Pair is preserved on the wire.
type Pair struct {
	Key   string
	Value string
}

// Escape percent-encodes s for use as a query, form or cookie value.
// Spaces become %20 rather than '+'.
func Escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// FormEncode joins pairs as key=value with '&', encoding values only.
func FormEncode(pairs []Pair) []byte {
	if len(pairs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(Escape(p.Value))
	}
	return []byte(b.String())
}

// ConcatBytes returns a followed by b in a fresh slice. Nil and empty inputs are fine.
func ConcatBytes(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

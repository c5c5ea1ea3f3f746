package request

import "strings"

// SetCookies replaces the Cookie header with the pairs in raw ("a=1; b=2"),
// percent-encoding each value. The header is only set when at least one
// valid pair remains; the return value reports whether it was set.
func (m *Message) SetCookies(raw string) bool {
	h := m.header()
	h.Del(HeaderCookie)

	var pairs []string
	for _, chunk := range strings.Split(raw, ";") {
		chunk = strings.TrimSpace(chunk)
		name, value, ok := strings.Cut(chunk, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		pairs = append(pairs, name+"="+Escape(strings.TrimSpace(value)))
	}

	encoded := strings.Join(pairs, "; ")
	if encoded == "" {
		return false
	}
	h.Set(HeaderCookie, encoded)
	return true
}

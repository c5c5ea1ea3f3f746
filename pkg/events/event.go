package events

import (
	"time"
)

// CallEvent records the outcome of one forwarded call.
type CallEvent struct {
	Interface   string    `json:"interface"`
	Member      string    `json:"member"`
	Method      string    `json:"method"`
	URI         string    `json:"uri"`
	Status      int       `json:"status"`
	DurationMs  int64     `json:"duration_ms"`
	Cached      bool      `json:"cached,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewCallEvent constructs a CallEvent for a call that started at start.
func NewCallEvent(iface, member, method, uri string, status int, start time.Time, err error) CallEvent {
	evt := CallEvent{
		Interface:   iface,
		Member:      member,
		Method:      method,
		URI:         uri,
		Status:      status,
		DurationMs:  time.Since(start).Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	return evt
}

// Qualified returns "Interface.Member".
func (e CallEvent) Qualified() string {
	if e.Interface == "" {
		return e.Member
	}
	return e.Interface + "." + e.Member
}

package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPublisher struct {
	id     string
	typ    string
	err    error
	calls  int
	closed bool
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, CallEvent) error {
	s.calls++
	return s.err
}
func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	ok := &stubPublisher{id: "ok", typ: "http"}
	bad := &stubPublisher{id: "bad", typ: "http", err: errors.New("failed")}
	fanout := NewFanout([]Publisher{ok, nil, bad})

	if fanout.Size() != 2 {
		t.Fatalf("nil publishers should be dropped, size=%d", fanout.Size())
	}
	count, err := fanout.Publish(context.Background(), CallEvent{Interface: "UserAPI", Member: "GetUser"})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("every publisher should be called once")
	}

	if err := fanout.Close(); err != nil || !ok.closed || !bad.closed {
		t.Fatalf("Close should reach closable publishers, err=%v", err)
	}
}

func TestNilFanoutIsSafe(t *testing.T) {
	var f *Fanout
	if n, err := f.Publish(context.Background(), CallEvent{}); n != 0 || err != nil {
		t.Fatalf("nil fanout Publish = %d, %v", n, err)
	}
	if f.Size() != 0 || f.Close() != nil {
		t.Fatalf("nil fanout should be empty")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []SinkConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 || pubs[0].Type() != TypeHTTP {
		t.Fatalf("expected 1 http publisher, got %#v", pubs)
	}

	if _, err := BuildAll(context.Background(), reg, []SinkConfig{{ID: "x", Type: "kafka"}}, nil); err == nil {
		t.Fatalf("expected error for unknown sink type")
	}
}

func TestCallEventQualified(t *testing.T) {
	if got := (CallEvent{Interface: "UserAPI", Member: "GetUser"}).Qualified(); got != "UserAPI.GetUser" {
		t.Fatalf("Qualified = %q", got)
	}
	if got := (CallEvent{Member: "Ping"}).Qualified(); got != "Ping" {
		t.Fatalf("Qualified = %q", got)
	}
	evt := NewCallEvent("A", "B", "GET", "/x", 500, time.Now(), errors.New("boom"))
	if evt.Error != "boom" || evt.CompletedAt.IsZero() {
		t.Fatalf("unexpected event %#v", evt)
	}
}

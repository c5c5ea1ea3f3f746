package fixture_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/samvad-hq/httpcap/internal/gen/fixture"
	"github.com/samvad-hq/httpcap/pkg/dispatch"
)

type call struct {
	Index  int
	Name   string
	Params []string
	Args   []any
}

type recorder struct {
	mu      sync.Mutex
	calls   []call
	answers map[string]any
	closed  bool
}

func (r *recorder) Intercept(_ any, m *dispatch.MemberDescriptor, args []any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	r.calls = append(r.calls, call{Index: m.Index, Name: m.Name, Params: names, Args: args})
	return r.answers[m.Name], nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestGeneratedStoreForwardsEveryMember(t *testing.T) {
	rec := &recorder{answers: map[string]any{
		"Count": 3,
		"Get":   &fixture.Item{ID: "a", Qty: 2},
		"Raw":   "raw",
		"Watch": dispatch.Resolved(fixture.Item{ID: "w"}, nil),
	}}
	s, err := dispatch.New[fixture.Store](rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if n, err := s.Count(ctx); err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if it, err := s.Get(ctx, "a"); err != nil || it.Qty != 2 {
		t.Fatalf("Get = %+v, %v", it, err)
	}
	s.Ping("hello")
	if err := s.Put(ctx, fixture.Item{ID: "b", Qty: 1}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := s.Raw("x", 7); got != "raw" {
		t.Fatalf("Raw = %q", got)
	}
	it, err := s.Watch(ctx, "w").Await(ctx)
	if err != nil || it.ID != "w" {
		t.Fatalf("Watch = %+v, %v", it, err)
	}

	want := []call{
		{Index: 0, Name: "Count", Params: []string{"ctx"}, Args: []any{ctx}},
		{Index: 1, Name: "Get", Params: []string{"ctx", "id"}, Args: []any{ctx, "a"}},
		{Index: 2, Name: "Ping", Params: []string{"p0"}, Args: []any{"hello"}},
		{Index: 3, Name: "Put", Params: []string{"ctx", "item"}, Args: []any{ctx, fixture.Item{ID: "b", Qty: 1}}},
		{Index: 4, Name: "Raw", Params: []string{"p1", "p0"}, Args: []any{"x", 7}},
		{Index: 5, Name: "Watch", Params: []string{"ctx", "id"}, Args: []any{ctx, "w"}},
	}
	opt := cmp.Transformer("ctx", func(c context.Context) string { return fmt.Sprint(c) })
	if diff := cmp.Diff(want, rec.calls, opt); diff != "" {
		t.Fatalf("forwarded calls mismatch (-want +got):\n%s", diff)
	}

	if err := s.Close(); err != nil || !rec.closed {
		t.Fatalf("Close = %v, interceptor closed = %v", err, rec.closed)
	}
	if d, ok := s.(dispatch.Dispatcher); !ok || d.DispatchInterceptor() != rec {
		t.Fatalf("dispatcher does not expose its interceptor")
	}
}

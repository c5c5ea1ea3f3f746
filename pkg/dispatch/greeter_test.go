package dispatch_test

import (
	"context"
	"io"
	"sync"

	"github.com/samvad-hq/httpcap/pkg/dispatch"
)

// Greeter is the capability exercised by the dispatch tests.
type Greeter interface {
	io.Closer
	Hello(ctx context.Context, name string) (string, error)
	Count(n int) int
	Notify(msg string)
	Later(ctx context.Context, id int) *dispatch.Future[string]
}

// greeterDispatcher has the shape httpgen emits for Greeter.
type greeterDispatcher struct {
	ic      dispatch.Interceptor
	members []dispatch.MemberDescriptor
}

func (d *greeterDispatcher) DispatchInterceptor() dispatch.Interceptor { return d.ic }

func (d *greeterDispatcher) Close() error { return dispatch.CloseInterceptor(d.ic) }

func (d *greeterDispatcher) Count(n int) int {
	res, err := d.ic.Intercept(d, &d.members[0], []any{n})
	return dispatch.MustValue[int](&d.members[0], res, err)
}

func (d *greeterDispatcher) Hello(ctx context.Context, name string) (string, error) {
	res, err := d.ic.Intercept(d, &d.members[1], []any{ctx, name})
	return dispatch.Value[string](&d.members[1], res, err)
}

func (d *greeterDispatcher) Later(ctx context.Context, id int) *dispatch.Future[string] {
	res, err := d.ic.Intercept(d, &d.members[2], []any{ctx, id})
	return dispatch.FutureOf[string](&d.members[2], res, err)
}

func (d *greeterDispatcher) Notify(msg string) {
	_, _ = d.ic.Intercept(d, &d.members[3], []any{msg})
}

var greeterSignatures = []dispatch.Signature{
	{Name: "Count", Params: []string{"n"}},
	{Name: "Hello", Params: []string{"ctx", "name"}},
	{Name: "Later", Params: []string{"ctx", "id"}},
	{Name: "Notify", Params: []string{"msg"}},
}

func registerGreeter(r *dispatch.Registry) {
	dispatch.RegisterOn[Greeter](r, greeterSignatures, func(ic dispatch.Interceptor, members []dispatch.MemberDescriptor) Greeter {
		return &greeterDispatcher{ic: ic, members: members}
	})
}

// call is one recorded interception.
type call struct {
	self   any
	index  int
	name   string
	params []string
	args   []any
}

// recorder records interceptions and answers from a per-member table.
type recorder struct {
	mu      sync.Mutex
	calls   []call
	answers map[string]any
	err     error
	closed  bool
}

func (r *recorder) Intercept(self any, m *dispatch.MemberDescriptor, args []any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	r.calls = append(r.calls, call{self: self, index: m.Index, name: m.Name, params: names, args: args})
	if r.err != nil {
		return nil, r.err
	}
	return r.answers[m.Name], nil
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func (r *recorder) last() call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

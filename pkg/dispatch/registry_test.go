package dispatch_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/samvad-hq/httpcap/pkg/dispatch"
	"github.com/samvad-hq/httpcap/pkg/faults"
)

func newGreeter(t *testing.T, rec *recorder) Greeter {
	t.Helper()
	reg := dispatch.NewRegistry()
	registerGreeter(reg)
	g, err := dispatch.NewFrom[Greeter](reg, rec)
	if err != nil {
		t.Fatalf("NewFrom: %v", err)
	}
	return g
}

func TestDispatcherForwardsByPosition(t *testing.T) {
	rec := &recorder{answers: map[string]any{
		"Hello": "hi bob",
		"Count": 42,
		"Later": dispatch.Resolved("later", nil),
	}}
	g := newGreeter(t, rec)

	ctx := context.Background()
	got, err := g.Hello(ctx, "bob")
	if err != nil {
		t.Fatalf("Hello: %v", err)
	}
	if got != "hi bob" {
		t.Fatalf("Hello = %q", got)
	}
	c := rec.last()
	if c.index != 1 || c.name != "Hello" {
		t.Fatalf("Hello forwarded as #%d %s", c.index, c.name)
	}
	if diff := cmp.Diff([]string{"ctx", "name"}, c.params); diff != "" {
		t.Fatalf("param names (-want +got):\n%s", diff)
	}
	if len(c.args) != 2 || c.args[0] != ctx || c.args[1] != "bob" {
		t.Fatalf("unexpected args %#v", c.args)
	}
	if c.self != g {
		t.Fatalf("self should be the dispatcher instance")
	}

	if n := g.Count(7); n != 42 {
		t.Fatalf("Count = %d", n)
	}
	if c := rec.last(); c.index != 0 || c.args[0] != 7 {
		t.Fatalf("Count forwarded as %#v", c)
	}

	g.Notify("ping")
	if c := rec.last(); c.index != 3 || c.args[0] != "ping" {
		t.Fatalf("Notify forwarded as %#v", c)
	}

	v, err := g.Later(ctx, 9).Await(ctx)
	if err != nil || v != "later" {
		t.Fatalf("Later = %q, %v", v, err)
	}

	if err := g.Close(); err != nil || !rec.closed {
		t.Fatalf("Close should reach the interceptor, err=%v closed=%v", err, rec.closed)
	}
}

func TestDispatcherTypeMismatch(t *testing.T) {
	rec := &recorder{answers: map[string]any{"Hello": 12}}
	g := newGreeter(t, rec)

	_, err := g.Hello(context.Background(), "x")
	if !errors.Is(err, dispatch.ErrTypeMismatch) {
		t.Fatalf("expected type mismatch, got %v", err)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for mismatched Count result")
		}
	}()
	rec.answers["Count"] = "not an int"
	g.Count(1)
}

func TestDispatcherPropagatesInterceptorError(t *testing.T) {
	boom := errors.New("boom")
	g := newGreeter(t, &recorder{err: boom})

	if _, err := g.Hello(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := g.Later(context.Background(), 1).Await(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom from future, got %v", err)
	}
}

func TestFutureAwaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	rec := &recorder{answers: map[string]any{
		"Later": dispatch.Go(func() (any, error) {
			<-release
			return "done", nil
		}),
	}}
	g := newGreeter(t, rec)
	fut := g.Later(context.Background(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := fut.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)
	<-fut.Done()
	v, err := fut.Await(context.Background())
	if err != nil || v != "done" {
		t.Fatalf("Await = %q, %v", v, err)
	}
}

func TestGoRecoversPanics(t *testing.T) {
	p := dispatch.Go(func() (any, error) { panic("bad") })
	if _, err := p.Result(); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

func TestGetOrCreateSynthesizesOnce(t *testing.T) {
	reg := dispatch.NewRegistry()
	registerGreeter(reg)
	iface := dispatch.TypeOf[Greeter]()

	const callers = 64
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		factories = make([]dispatch.Factory, callers)
		errs      = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			factories[i], errs[i] = reg.GetOrCreate(iface)
		}(i)
	}
	close(start)
	wg.Wait()

	if got := reg.Synthesized(); got != 1 {
		t.Fatalf("expected exactly one synthesis, got %d", got)
	}
	want := reflect.ValueOf(factories[0]).Pointer()
	for i := range factories {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if reflect.ValueOf(factories[i]).Pointer() != want {
			t.Fatalf("caller %d observed a different factory", i)
		}
	}

	desc, ok := reg.Interface(iface)
	if !ok || len(desc.Members) != 4 {
		t.Fatalf("expected cached descriptor with 4 members, got %#v", desc)
	}
}

func TestGetOrCreateSharesFailureAndRetries(t *testing.T) {
	reg := dispatch.NewRegistry()
	iface := dispatch.TypeOf[Greeter]()

	const callers = 16
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.GetOrCreate(iface)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if !errors.Is(err, faults.ErrConfiguration) {
			t.Fatalf("caller %d: expected configuration error, got %v", i, err)
		}
	}
	if reg.Synthesized() != 0 {
		t.Fatalf("failed synthesis must not be cached")
	}

	registerGreeter(reg)
	if _, err := reg.GetOrCreate(iface); err != nil {
		t.Fatalf("retry after registration: %v", err)
	}
	if reg.Synthesized() != 1 {
		t.Fatalf("expected one synthesis after retry, got %d", reg.Synthesized())
	}
}

func TestStaleSignaturesFail(t *testing.T) {
	reg := dispatch.NewRegistry()
	stale := []dispatch.Signature{{Name: "Hello"}, {Name: "Count"}, {Name: "Later"}, {Name: "Notify"}}
	dispatch.RegisterOn[Greeter](reg, stale, func(ic dispatch.Interceptor, m []dispatch.MemberDescriptor) Greeter {
		return &greeterDispatcher{ic: ic, members: m}
	})
	if _, err := dispatch.NewFrom[Greeter](reg, &recorder{}); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error for reordered members, got %v", err)
	}

	reg2 := dispatch.NewRegistry()
	dispatch.RegisterOn[Greeter](reg2, greeterSignatures[:2], func(ic dispatch.Interceptor, m []dispatch.MemberDescriptor) Greeter {
		return &greeterDispatcher{ic: ic, members: m}
	})
	if _, err := dispatch.NewFrom[Greeter](reg2, &recorder{}); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing members, got %v", err)
	}
}

func TestFactoryRequiresInterceptor(t *testing.T) {
	reg := dispatch.NewRegistry()
	registerGreeter(reg)
	if _, err := dispatch.NewFrom[Greeter](reg, nil); !errors.Is(err, faults.ErrArgument) {
		t.Fatalf("expected argument error, got %v", err)
	}
}

func TestDescribeIsCached(t *testing.T) {
	reg := dispatch.NewRegistry()
	a, err := reg.Describe(dispatch.TypeOf[Greeter]())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	b, _ := reg.Describe(dispatch.TypeOf[Greeter]())
	if &a[0] != &b[0] {
		t.Fatalf("expected the cached table to be returned")
	}
}

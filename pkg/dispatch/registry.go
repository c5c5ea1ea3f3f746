// Package dispatch turns calls on a Go interface into calls to a single
// Interceptor, carrying a positional descriptor of the member that was called.
//
// Forwarding types are produced ahead of time by cmd/httpgen and register a
// Constructor with the Default registry from an init function. The registry
// collects each interface's member table once, verifies the generated code
// still matches it and hands out factories bound to that table. Func-field
// structs can be wired at run time with Bind instead.
package dispatch

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samvad-hq/httpcap/pkg/faults"
	"golang.org/x/sync/singleflight"
)

// Signature is the generated view of one member: its name and parameter names.
type Signature struct {
	Name   string
	Params []string
}

// Constructor wires a dispatcher instance to its interceptor and member table.
type Constructor func(ic Interceptor, members []MemberDescriptor) any

// Factory builds dispatcher instances for one interface.
type Factory func(ic Interceptor) (any, error)

type constructorEntry struct {
	sigs []Signature
	ctor Constructor
}

type dispatcherEntry struct {
	desc    *InterfaceDescriptor
	factory Factory
}

// Registry owns the descriptor and dispatcher caches. Entries are created on
// first use and kept for the life of the process; the key space is the set of
// interfaces compiled into the binary, so nothing is evicted.
type Registry struct {
	excluded []reflect.Type

	mu    sync.RWMutex
	ctors map[reflect.Type]constructorEntry

	descriptors sync.Map // reflect.Type -> []MemberDescriptor
	dispatchers sync.Map // reflect.Type -> *dispatcherEntry
	structs     sync.Map // reflect.Type -> *structBinding
	group       singleflight.Group

	// Local types of one package can share a name, so flight keys come
	// from a per-type id rather than the type's string.
	typeIDs sync.Map // reflect.Type -> uint64
	nextID  atomic.Uint64

	synthesized atomic.Int64
}

// Default is the process-wide registry generated code registers with.
var Default = NewRegistry()

// NewRegistry returns an empty registry. With no arguments the
// BaselineCapabilities are excluded from forwarding.
func NewRegistry(excluded ...reflect.Type) *Registry {
	if len(excluded) == 0 {
		excluded = BaselineCapabilities
	}
	return &Registry{
		excluded: excluded,
		ctors:    make(map[reflect.Type]constructorEntry),
	}
}

// RegisterConstructor records the construction contract for iface.
// A later registration for the same interface replaces the earlier one but
// does not affect dispatchers already synthesized.
func (r *Registry) RegisterConstructor(iface reflect.Type, sigs []Signature, ctor Constructor) {
	if iface == nil || ctor == nil {
		return
	}
	r.mu.Lock()
	r.ctors[iface] = constructorEntry{sigs: sigs, ctor: ctor}
	r.mu.Unlock()
}

// Synthesized reports how many dispatchers this registry has synthesized.
func (r *Registry) Synthesized() int64 { return r.synthesized.Load() }

// Describe returns the cached member table of iface, collecting it on first use.
func (r *Registry) Describe(iface reflect.Type) ([]MemberDescriptor, error) {
	if v, ok := r.descriptors.Load(iface); ok {
		return v.([]MemberDescriptor), nil
	}
	v, err, _ := r.group.Do(r.flightKey("describe", iface), func() (any, error) {
		if v, ok := r.descriptors.Load(iface); ok {
			return v, nil
		}
		members, err := Collect(iface, r.excluded...)
		if err != nil {
			return nil, err
		}
		r.descriptors.Store(iface, members)
		return members, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]MemberDescriptor), nil
}

// GetOrCreate returns the dispatcher factory for iface. Concurrent first
// callers share a single synthesis and its outcome; failures are not cached.
func (r *Registry) GetOrCreate(iface reflect.Type) (Factory, error) {
	if v, ok := r.dispatchers.Load(iface); ok {
		return v.(*dispatcherEntry).factory, nil
	}
	v, err, _ := r.group.Do(r.flightKey("dispatch", iface), func() (any, error) {
		if v, ok := r.dispatchers.Load(iface); ok {
			return v, nil
		}
		entry, err := r.synthesize(iface)
		if err != nil {
			return nil, err
		}
		r.dispatchers.Store(iface, entry)
		r.synthesized.Add(1)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*dispatcherEntry).factory, nil
}

// Interface returns the synthesized descriptor of iface, if any.
func (r *Registry) Interface(iface reflect.Type) (*InterfaceDescriptor, bool) {
	v, ok := r.dispatchers.Load(iface)
	if !ok {
		return nil, false
	}
	return v.(*dispatcherEntry).desc, true
}

func (r *Registry) synthesize(iface reflect.Type) (*dispatcherEntry, error) {
	collected, err := r.Describe(iface)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	ce, ok := r.ctors[iface]
	r.mu.RUnlock()
	if !ok {
		return nil, faults.Configuration("no dispatcher constructor registered for %s; run httpgen for it", iface)
	}

	members, err := applySignatures(iface, collected, ce.sigs)
	if err != nil {
		return nil, err
	}
	desc := &InterfaceDescriptor{Type: iface, Name: iface.Name(), Members: members}

	ctor := ce.ctor
	factory := func(ic Interceptor) (any, error) {
		if ic == nil {
			return nil, faults.Argument("dispatcher for %s needs an interceptor", iface)
		}
		return ctor(ic, desc.Members), nil
	}
	return &dispatcherEntry{desc: desc, factory: factory}, nil
}

// applySignatures checks that the generated member table lines up with the
// collected one index for index and copies the generated parameter names.
func applySignatures(iface reflect.Type, collected []MemberDescriptor, sigs []Signature) ([]MemberDescriptor, error) {
	if len(sigs) != len(collected) {
		return nil, faults.Configuration("generated dispatcher for %s is stale: %d members generated, %d declared", iface, len(sigs), len(collected))
	}
	out := make([]MemberDescriptor, len(collected))
	for i, md := range collected {
		if sigs[i].Name != md.Name {
			return nil, faults.Configuration("generated dispatcher for %s is stale: member %d is %s, want %s", iface, i, sigs[i].Name, md.Name)
		}
		md.Params = append([]ParameterDescriptor(nil), md.Params...)
		taken := make(map[string]bool, len(md.Params))
		for _, name := range sigs[i].Params {
			if usableName(name) {
				taken[name] = true
			}
		}
		for j := range md.Params {
			if j < len(sigs[i].Params) && usableName(sigs[i].Params[j]) {
				md.Params[j].Name = sigs[i].Params[j]
				continue
			}
			// An unnamed parameter keeps a positional name no declared one uses.
			for n := j; taken[md.Params[j].Name]; n++ {
				md.Params[j].Name = "p" + strconv.Itoa(n)
			}
			taken[md.Params[j].Name] = true
		}
		out[i] = md
	}
	return out, nil
}

func usableName(name string) bool {
	return strings.TrimSpace(name) != "" && name != "_"
}

// flightKey names the singleflight call for kind on t. Each distinct
// reflect.Type gets its own id on first use.
func (r *Registry) flightKey(kind string, t reflect.Type) string {
	if t == nil {
		return kind + ":nil"
	}
	id, ok := r.typeIDs.Load(t)
	if !ok {
		id, _ = r.typeIDs.LoadOrStore(t, r.nextID.Add(1))
	}
	return kind + ":" + strconv.FormatUint(id.(uint64), 10)
}

// RegisterOn registers a typed constructor for interface T on r.
func RegisterOn[T any](r *Registry, sigs []Signature, ctor func(Interceptor, []MemberDescriptor) T) {
	r.RegisterConstructor(TypeOf[T](), sigs, func(ic Interceptor, members []MemberDescriptor) any {
		return ctor(ic, members)
	})
}

// Register registers a typed constructor for interface T on Default. It is
// what generated code calls from init.
func Register[T any](sigs []Signature, ctor func(Interceptor, []MemberDescriptor) T) {
	RegisterOn[T](Default, sigs, ctor)
}

// NewFrom builds a T dispatcher from r.
func NewFrom[T any](r *Registry, ic Interceptor) (T, error) {
	var zero T
	factory, err := r.GetOrCreate(TypeOf[T]())
	if err != nil {
		return zero, err
	}
	v, err := factory(ic)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, faults.Configuration("constructor for %s returned %T", TypeOf[T](), v)
	}
	return out, nil
}

// New builds a T dispatcher from Default.
func New[T any](ic Interceptor) (T, error) {
	return NewFrom[T](Default, ic)
}

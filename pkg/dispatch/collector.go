package dispatch

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/samvad-hq/httpcap/pkg/faults"
)

var (
	contextType = TypeOf[context.Context]()
	errorType   = TypeOf[error]()
	binderType  = TypeOf[futureBinder]()
)

// BaselineCapabilities are never forwarded: disposal and the dispatcher marker.
var BaselineCapabilities = []reflect.Type{
	TypeOf[io.Closer](),
	TypeOf[Dispatcher](),
}

// TypeOf returns the reflect.Type of T, including interface types.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Collect enumerates the forwardable members of iface in a stable order,
// dropping members that belong to any excluded capability. Embedded
// interfaces are already flattened and de-duplicated by the method set.
func Collect(iface reflect.Type, excluded ...reflect.Type) ([]MemberDescriptor, error) {
	if iface == nil || iface.Kind() != reflect.Interface {
		return nil, faults.Configuration("collect: %v is not an interface type", iface)
	}

	skip := make(map[string]reflect.Type)
	for _, ex := range excluded {
		if ex == nil || ex.Kind() != reflect.Interface {
			return nil, faults.Configuration("collect: excluded capability %v is not an interface type", ex)
		}
		for i := 0; i < ex.NumMethod(); i++ {
			m := ex.Method(i)
			skip[m.Name] = m.Type
		}
	}

	members := make([]MemberDescriptor, 0, iface.NumMethod())
	for i := 0; i < iface.NumMethod(); i++ {
		m := iface.Method(i)
		if t, ok := skip[m.Name]; ok && t == m.Type {
			continue
		}
		if !m.IsExported() {
			return nil, faults.Configuration("collect: %s.%s is unexported and cannot be implemented outside its package", iface, m.Name)
		}
		md, err := describeFunc(iface.Name(), m.Name, m.Type, nil)
		if err != nil {
			return nil, err
		}
		md.Index = len(members)
		members = append(members, md)
	}
	return members, nil
}

// collectStruct enumerates the exported func fields of a struct type in
// declaration order, flattening embedded structs. Field tags of the form
// `httpcap:"ctx,id"` name the parameters; `httpcap:"-"` skips the field.
func collectStruct(st reflect.Type) ([]MemberDescriptor, [][]int, error) {
	if st.Kind() != reflect.Struct {
		return nil, nil, faults.Configuration("bind: %v is not a struct type", st)
	}

	var (
		members []MemberDescriptor
		paths   [][]int
		seen    = make(map[string]bool)
	)
	for _, f := range reflect.VisibleFields(st) {
		if !f.IsExported() || f.Type.Kind() != reflect.Func {
			continue
		}
		tag := f.Tag.Get("httpcap")
		if tag == "-" || seen[f.Name] {
			continue
		}
		seen[f.Name] = true

		var names []string
		if tag != "" {
			names = strings.Split(tag, ",")
		}
		md, err := describeFunc(st.Name(), f.Name, f.Type, names)
		if err != nil {
			return nil, nil, err
		}
		md.Index = len(members)
		members = append(members, md)
		paths = append(paths, f.Index)
	}
	return members, paths, nil
}

func describeFunc(owner, name string, ft reflect.Type, paramNames []string) (MemberDescriptor, error) {
	where := name
	if owner != "" {
		where = owner + "." + name
	}
	if ft.IsVariadic() {
		return MemberDescriptor{}, faults.Configuration("%s: variadic members are not supported", where)
	}

	md := MemberDescriptor{
		Owner:  owner,
		Name:   name,
		Type:   ft,
		Params: make([]ParameterDescriptor, ft.NumIn()),
	}
	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if err := checkParam(pt); err != nil {
			return MemberDescriptor{}, faults.Configuration("%s: parameter %d: %s", where, i, err)
		}
		pname := fmt.Sprintf("p%d", i)
		if i < len(paramNames) && strings.TrimSpace(paramNames[i]) != "" {
			pname = strings.TrimSpace(paramNames[i])
		}
		md.Params[i] = ParameterDescriptor{
			Name:      pname,
			Position:  i,
			Type:      pt,
			Kind:      valueKindOf(pt),
			IsContext: pt == contextType,
		}
	}

	if err := classifyResults(&md); err != nil {
		return MemberDescriptor{}, faults.Configuration("%s: %s", where, err)
	}
	return md, nil
}

func checkParam(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("%s parameters cannot be forwarded", t.Kind())
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Pointer {
			return fmt.Errorf("output parameter %s is not supported", t)
		}
	}
	return nil
}

func classifyResults(md *MemberDescriptor) error {
	ft := md.Type
	outs := make([]reflect.Type, ft.NumOut())
	for i := range outs {
		outs[i] = ft.Out(i)
	}
	if n := len(outs); n > 0 && outs[n-1] == errorType {
		md.ReturnsError = true
		outs = outs[:n-1]
	}

	switch len(outs) {
	case 0:
		md.Kind = ResultVoid
		return nil
	case 1:
	default:
		return fmt.Errorf("at most one value and one trailing error may be returned")
	}

	out := outs[0]
	if out == errorType {
		return fmt.Errorf("error must be the last result")
	}
	if vt, ok := futureValueType(out); ok {
		md.Kind = ResultFuture
		md.Result = vt
		return nil
	}
	md.Kind = ResultValue
	md.Result = out
	return nil
}

// futureValueType reports whether t is *Future[T] and returns T.
func futureValueType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Pointer || !t.Implements(binderType) {
		return nil, false
	}
	fb := reflect.New(t.Elem()).Interface().(futureBinder)
	return fb.valueType(), true
}

func valueKindOf(t reflect.Type) ValueKind {
	switch t.Kind() {
	case reflect.Struct, reflect.Array:
		return ValueStruct
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return ValueReference
	default:
		return ValueScalar
	}
}

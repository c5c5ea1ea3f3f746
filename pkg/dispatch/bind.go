package dispatch

import (
	"reflect"

	"github.com/samvad-hq/httpcap/pkg/faults"
)

// Bind fills every exported func field of the struct target points to with a
// function that forwards to ic, using the struct's field order as the member
// positions. Member tables are cached per struct type on r.
func (r *Registry) Bind(target any, ic Interceptor) error {
	if ic == nil {
		return faults.Argument("bind needs an interceptor")
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return faults.Configuration("bind: target must be a non-nil pointer to a struct, got %T", target)
	}

	bs, err := r.bindings(rv.Elem().Type())
	if err != nil {
		return err
	}

	sv := rv.Elem()
	for i := range bs.members {
		m := &bs.members[i]
		field := sv.FieldByIndex(bs.paths[i])
		field.Set(reflect.MakeFunc(m.Type, func(in []reflect.Value) []reflect.Value {
			args := make([]any, len(in))
			for j, v := range in {
				args[j] = v.Interface()
			}
			res, err := ic.Intercept(target, m, args)
			return outputs(m, res, err)
		}))
	}
	return nil
}

// Bind uses the Default registry.
func Bind(target any, ic Interceptor) error {
	return Default.Bind(target, ic)
}

type structBinding struct {
	members []MemberDescriptor
	paths   [][]int
}

func (r *Registry) bindings(st reflect.Type) (*structBinding, error) {
	if v, ok := r.structs.Load(st); ok {
		return v.(*structBinding), nil
	}
	v, err, _ := r.group.Do(r.flightKey("bind", st), func() (any, error) {
		if v, ok := r.structs.Load(st); ok {
			return v, nil
		}
		members, paths, err := collectStruct(st)
		if err != nil {
			return nil, err
		}
		bs := &structBinding{members: members, paths: paths}
		r.structs.Store(st, bs)
		return bs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*structBinding), nil
}

// outputs shapes an interceptor result into the member's declared results.
func outputs(m *MemberDescriptor, res any, err error) []reflect.Value {
	var out []reflect.Value
	switch m.Kind {
	case ResultValue:
		v, verr := valueOf(m, res, err)
		if verr != nil && !m.ReturnsError {
			panic(verr)
		}
		out = append(out, v)
		err = verr
	case ResultFuture:
		fut := reflect.New(m.Type.Out(0).Elem())
		fut.Interface().(futureBinder).bind(m, res, err)
		out = append(out, fut)
	}
	if m.ReturnsError {
		out = append(out, errorValue(err))
	}
	return out
}

func valueOf(m *MemberDescriptor, res any, err error) (reflect.Value, error) {
	zero := reflect.Zero(m.Result)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	rv := reflect.ValueOf(res)
	if !rv.Type().AssignableTo(m.Result) {
		return zero, mismatch(m, res)
	}
	if rv.Type() != m.Result {
		converted := reflect.New(m.Result).Elem()
		converted.Set(rv)
		rv = converted
	}
	return rv, nil
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}

package dispatch

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Interceptor is the single entry point every forwarded call reaches. self is
// the dispatcher the call was made on, member the resolved descriptor and
// args the call's arguments in declared order.
//
// For future members Intercept should return a Promise; a plain value is
// treated as already resolved.
type Interceptor interface {
	Intercept(self any, member *MemberDescriptor, args []any) (any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(self any, member *MemberDescriptor, args []any) (any, error)

func (f InterceptorFunc) Intercept(self any, member *MemberDescriptor, args []any) (any, error) {
	return f(self, member, args)
}

// Dispatcher is the marker capability implemented by every dispatcher. It is
// excluded from forwarding.
type Dispatcher interface {
	DispatchInterceptor() Interceptor
}

// ErrTypeMismatch is returned when an interceptor result is not assignable to
// the member's declared result type.
var ErrTypeMismatch = errors.New("interceptor result type mismatch")

// Value converts an interceptor result to the member's declared type T.
// A nil result yields the zero value of T.
func Value[T any](m *MemberDescriptor, res any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, mismatch(m, res)
	}
	return v, nil
}

// MustValue is Value for members that declare no error result; failures panic.
func MustValue[T any](m *MemberDescriptor, res any, err error) T {
	v, err := Value[T](m, res, err)
	if err != nil {
		panic(err)
	}
	return v
}

// CloseInterceptor closes ic when it implements io.Closer.
func CloseInterceptor(ic Interceptor) error {
	if c, ok := ic.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func mismatch(m *MemberDescriptor, res any) error {
	want := "<nil>"
	if m != nil && m.Result != nil {
		want = m.Result.String()
	}
	name := "<unknown>"
	if m != nil {
		name = m.Qualified()
	}
	return errors.Wrap(ErrTypeMismatch, fmt.Sprintf("%s: got %T, want %s", name, res, want))
}

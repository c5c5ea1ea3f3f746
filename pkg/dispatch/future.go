package dispatch

import (
	"context"
	"fmt"
	"reflect"
)

// Promise is the untyped outcome an interceptor returns for future members.
type Promise interface {
	Done() <-chan struct{}
	Result() (any, error)
}

// Go runs fn on a new goroutine and returns its outcome as a Promise. A panic
// in fn becomes the promise's error.
func Go(fn func() (any, error)) Promise {
	p := &promise{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer func() {
			if r := recover(); r != nil {
				p.err = fmt.Errorf("promise panicked: %v", r)
			}
		}()
		p.val, p.err = fn()
	}()
	return p
}

// Resolved returns a Promise that is already complete.
func Resolved(v any, err error) Promise {
	p := &promise{done: make(chan struct{}), val: v, err: err}
	close(p.done)
	return p
}

type promise struct {
	done chan struct{}
	val  any
	err  error
}

func (p *promise) Done() <-chan struct{} { return p.done }

func (p *promise) Result() (any, error) {
	<-p.done
	return p.val, p.err
}

// Future is the typed result of a future member.
type Future[T any] struct {
	member  *MemberDescriptor
	promise Promise
}

// FutureOf wraps an interceptor result for a future member.
func FutureOf[T any](m *MemberDescriptor, res any, err error) *Future[T] {
	f := &Future[T]{}
	f.bind(m, res, err)
	return f
}

// Done is closed once the value is available.
func (f *Future[T]) Done() <-chan struct{} { return f.promise.Done() }

// Await blocks until the value is available or ctx ends.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-f.promise.Done():
	}
	res, err := f.promise.Result()
	return Value[T](f.member, res, err)
}

// futureBinder lets reflection-built dispatchers fill a *Future[T] whose T is
// only known at run time.
type futureBinder interface {
	bind(m *MemberDescriptor, res any, err error)
	valueType() reflect.Type
}

func (f *Future[T]) bind(m *MemberDescriptor, res any, err error) {
	f.member = m
	switch {
	case err != nil:
		f.promise = Resolved(nil, err)
	case res == nil:
		f.promise = Resolved(nil, nil)
	default:
		if p, ok := res.(Promise); ok {
			f.promise = p
			return
		}
		f.promise = Resolved(res, nil)
	}
}

func (f *Future[T]) valueType() reflect.Type { return TypeOf[T]() }

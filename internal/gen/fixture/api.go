// Package fixture holds an interface with its checked-in httpgen output, so
// the generator's rendering is compiled and exercised with the module.
package fixture

import (
	"context"
	"io"

	"github.com/samvad-hq/httpcap/pkg/dispatch"
)

//go:generate go run github.com/samvad-hq/httpcap/cmd/httpgen --type Store

type Item struct {
	ID  string
	Qty int
}

type Store interface {
	io.Closer
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id string) (*Item, error)
	Ping(string)
	Put(ctx context.Context, item Item) error
	Raw(_ string, p0 int) string
	Watch(ctx context.Context, id string) *dispatch.Future[Item]
}

package client_test

import (
	"context"
	"encoding/xml"
	"io"
	"sync"

	"github.com/samvad-hq/httpcap/pkg/dispatch"
	"github.com/samvad-hq/httpcap/pkg/events"
	"github.com/samvad-hq/httpcap/pkg/routes"
)

type User struct {
	ID   string `json:"id" yaml:"id" xml:"id"`
	Name string `json:"name" yaml:"name" xml:"name"`
}

type feed struct {
	XMLName xml.Name `xml:"feed"`
	Title   string   `xml:"title"`
	Entries []string `xml:"entry"`
}

// UserAPI is the capability the client tests call through.
type UserAPI interface {
	io.Closer
	Create(ctx context.Context, u User) (*User, error)
	GetUser(ctx context.Context, id string, verbose bool) (*User, error)
	Login(ctx context.Context, user, pass string) (string, error)
	Upload(ctx context.Context, id, title string, data []byte) error
	Watch(ctx context.Context, id string) *dispatch.Future[*User]
}

// userAPIDispatcher has the shape httpgen emits for UserAPI.
type userAPIDispatcher struct {
	ic      dispatch.Interceptor
	members []dispatch.MemberDescriptor
}

func (d *userAPIDispatcher) DispatchInterceptor() dispatch.Interceptor { return d.ic }

func (d *userAPIDispatcher) Close() error { return dispatch.CloseInterceptor(d.ic) }

func (d *userAPIDispatcher) Create(ctx context.Context, u User) (*User, error) {
	res, err := d.ic.Intercept(d, &d.members[0], []any{ctx, u})
	return dispatch.Value[*User](&d.members[0], res, err)
}

func (d *userAPIDispatcher) GetUser(ctx context.Context, id string, verbose bool) (*User, error) {
	res, err := d.ic.Intercept(d, &d.members[1], []any{ctx, id, verbose})
	return dispatch.Value[*User](&d.members[1], res, err)
}

func (d *userAPIDispatcher) Login(ctx context.Context, user string, pass string) (string, error) {
	res, err := d.ic.Intercept(d, &d.members[2], []any{ctx, user, pass})
	return dispatch.Value[string](&d.members[2], res, err)
}

func (d *userAPIDispatcher) Upload(ctx context.Context, id string, title string, data []byte) error {
	_, err := d.ic.Intercept(d, &d.members[3], []any{ctx, id, title, data})
	return err
}

func (d *userAPIDispatcher) Watch(ctx context.Context, id string) *dispatch.Future[*User] {
	res, err := d.ic.Intercept(d, &d.members[4], []any{ctx, id})
	return dispatch.FutureOf[*User](&d.members[4], res, err)
}

var userAPISignatures = []dispatch.Signature{
	{Name: "Create", Params: []string{"ctx", "u"}},
	{Name: "GetUser", Params: []string{"ctx", "id", "verbose"}},
	{Name: "Login", Params: []string{"ctx", "user", "pass"}},
	{Name: "Upload", Params: []string{"ctx", "id", "title", "data"}},
	{Name: "Watch", Params: []string{"ctx", "id"}},
}

func newRegistry() *dispatch.Registry {
	r := dispatch.NewRegistry()
	dispatch.RegisterOn[UserAPI](r, userAPISignatures, func(ic dispatch.Interceptor, members []dispatch.MemberDescriptor) UserAPI {
		return &userAPIDispatcher{ic: ic, members: members}
	})
	return r
}

func userRoutes() []routes.Route {
	return []routes.Route{
		{
			Name:   "UserAPI.Create",
			Method: "POST",
			Path:   "/users",
			Params: []routes.Param{{Name: "u", In: routes.InBody}},
		},
		{
			Name:   "UserAPI.GetUser",
			Path:   "/users/{id}",
			Accept: "application/json",
			Params: []routes.Param{{Name: "id", In: routes.InPath}, {Name: "verbose", In: routes.InQuery}},
		},
		{
			Name:    "UserAPI.Login",
			Method:  "POST",
			Path:    "/login",
			Headers: map[string]string{"X-Client": "tests"},
			Params: []routes.Param{
				{Name: "user", In: routes.InForm, Field: "username"},
				{Name: "pass", In: routes.InForm, Field: "password"},
			},
		},
		{
			Name:   "UserAPI.Upload",
			Method: "POST",
			Path:   "/users/{id}/files",
			Params: []routes.Param{
				{Name: "id", In: routes.InPath},
				{Name: "title", In: routes.InText},
				{Name: "data", In: routes.InFile, Filename: "data.bin"},
			},
		},
		{
			Name:   "UserAPI.Watch",
			Path:   "/users/{id}/watch",
			Params: []routes.Param{{Name: "id", In: routes.InPath}},
		},
	}
}

// sink records published call events.
type sink struct {
	mu     sync.Mutex
	events []events.CallEvent
}

func (s *sink) Publish(_ context.Context, evt events.CallEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return 1, nil
}

func (s *sink) all() []events.CallEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.CallEvent(nil), s.events...)
}

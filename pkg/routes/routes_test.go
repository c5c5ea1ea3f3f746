package routes

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadRoutesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	raw := `
routes:
  - name: UserAPI.GetUser
    path: /users/{id}
    timeout_seconds: 3
    params:
      - name: id
        in: path
      - name: verbose
        in: query
  - name: UserAPI.Upload
    method: post
    path: /users/{id}/avatar
    headers:
      X-Trace: " on "
      X-Empty: " "
    params:
      - name: id
        in: path
      - name: avatar
        in: file
        filename: avatar.png
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	get, ok := table.Lookup("userapi.getuser")
	if !ok {
		t.Fatalf("expected case-insensitive lookup to succeed")
	}
	if get.Method != "GET" {
		t.Fatalf("expected default GET, got %q", get.Method)
	}
	if get.Timeout() != 3*time.Second {
		t.Fatalf("unexpected timeout %v", get.Timeout())
	}
	if p, ok := get.Param("ID"); !ok || p.In != InPath {
		t.Fatalf("expected id path param, got %#v", p)
	}

	up, _ := table.Lookup("UserAPI.Upload")
	if up.Method != "POST" {
		t.Fatalf("method not normalized: %q", up.Method)
	}
	if len(up.Headers) != 1 || up.Headers["X-Trace"] != "on" {
		t.Fatalf("headers not sanitized: %#v", up.Headers)
	}
	if all := table.All(); len(all) != 2 || all[0].Name != "UserAPI.GetUser" {
		t.Fatalf("unexpected All(): %#v", all)
	}
}

func TestLoadRoutesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.json")
	raw := `{"routes":[{"name":"Ping","method":"HEAD","path":"/ping"}]}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := table.Lookup("Ping"); !ok {
		t.Fatalf("expected Ping route")
	}
}

func TestValidateRouteRejects(t *testing.T) {
	cases := map[string]Route{
		"no name":          {Method: "GET"},
		"bad method":       {Name: "A", Method: "FETCH"},
		"bad placement":    {Name: "A", Method: "GET", Params: []Param{{Name: "x", In: "cookiejar"}}},
		"body on get":      {Name: "A", Method: "GET", Params: []Param{{Name: "x", In: InForm}}},
		"missing path var": {Name: "A", Method: "GET", Path: "/u", Params: []Param{{Name: "id", In: InPath}}},
		"unbound path var": {Name: "A", Method: "GET", Path: "/u/{id}"},
		"dup param":        {Name: "A", Method: "POST", Params: []Param{{Name: "x", In: InQuery}, {Name: "X", In: InForm}}},
		"two bodies":       {Name: "A", Method: "POST", Params: []Param{{Name: "a", In: InBody}, {Name: "b", In: InBody}}},
	}
	for name, r := range cases {
		if err := validateRoute(sanitizeRoute(r)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestNewTableRejectsDuplicates(t *testing.T) {
	_, err := NewTable(Route{Name: "A.B"}, Route{Name: "a.b"})
	if err == nil {
		t.Fatalf("expected duplicate route error")
	}
}

func TestParamWireName(t *testing.T) {
	if (Param{Name: "userID", Field: "user_id"}).WireName() != "user_id" {
		t.Fatalf("expected field override")
	}
	if (Param{Name: "q"}).WireName() != "q" {
		t.Fatalf("expected name fallback")
	}
}

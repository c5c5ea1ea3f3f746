package gen

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"
)

const header = "// Code generated by httpgen. DO NOT EDIT."

var fileTemplate = template.Must(template.New("file").Funcs(template.FuncMap{
	"lowerFirst": lowerFirst,
	"args":       argList,
	"params":     paramList,
	"sigNames":   signatureNames,
}).Parse(`{{ .Header }}

package {{ .Package }}

import (
{{- range .Imports }}
	{{ . }}
{{- end }}
)
{{ range $i := .Interfaces }}{{ $d := printf "%sDispatcher" (lowerFirst $i.Name) }}
// {{ $d }} forwards every {{ $i.Name }} member to an interceptor.
type {{ $d }} struct {
	ic      dispatch.Interceptor
	members []dispatch.MemberDescriptor
}

func new{{ $i.Name }}Dispatcher(ic dispatch.Interceptor, members []dispatch.MemberDescriptor) {{ $i.Name }} {
	return &{{ $d }}{ic: ic, members: members}
}

func (d *{{ $d }}) DispatchInterceptor() dispatch.Interceptor { return d.ic }

func (d *{{ $d }}) Close() error { return dispatch.CloseInterceptor(d.ic) }
{{ range $m := $i.Members }}
func (d *{{ $d }}) {{ $m.Name }}({{ params $m }}) {{ $m.Results }} {
{{- if eq $m.Kind "void" }}
{{- if $m.HasError }}
	_, err := d.ic.Intercept(d, &d.members[{{ $m.Index }}], []any{ {{- args $m -}} })
	return err
{{- else }}
	_, _ = d.ic.Intercept(d, &d.members[{{ $m.Index }}], []any{ {{- args $m -}} })
{{- end }}
{{- else if eq $m.Kind "future" }}
	res, err := d.ic.Intercept(d, &d.members[{{ $m.Index }}], []any{ {{- args $m -}} })
{{- if $m.HasError }}
	return dispatch.FutureOf[{{ $m.Value }}](&d.members[{{ $m.Index }}], res, err), err
{{- else }}
	return dispatch.FutureOf[{{ $m.Value }}](&d.members[{{ $m.Index }}], res, err)
{{- end }}
{{- else }}
	res, err := d.ic.Intercept(d, &d.members[{{ $m.Index }}], []any{ {{- args $m -}} })
{{- if $m.HasError }}
	return dispatch.Value[{{ $m.Value }}](&d.members[{{ $m.Index }}], res, err)
{{- else }}
	return dispatch.MustValue[{{ $m.Value }}](&d.members[{{ $m.Index }}], res, err)
{{- end }}
{{- end }}
}
{{ end }}
var {{ lowerFirst $i.Name }}Signatures = []dispatch.Signature{
{{- range $m := $i.Members }}
	{Name: {{ printf "%q" $m.Name }}, Params: []string{ {{- sigNames $m -}} }},
{{- end }}
}

func init() {
	dispatch.Register[{{ $i.Name }}]({{ lowerFirst $i.Name }}Signatures, new{{ $i.Name }}Dispatcher)
}
{{ end }}`))

type fileData struct {
	Header     string
	Package    string
	Imports    []string
	Interfaces []*ifaceModel
}

// render produces the formatted source for one generated file.
func render(pkgName string, models []*ifaceModel) ([]byte, error) {
	if pkgName == "dispatch" {
		return nil, fmt.Errorf("dispatchers cannot be generated inside the dispatch package")
	}
	data := fileData{Header: header, Package: pkgName, Imports: mergeImports(models), Interfaces: models}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return formatSource(buf.Bytes())
}

// mergeImports returns sorted import lines, dispatch always included.
func mergeImports(models []*ifaceModel) []string {
	byPath := map[string]importSpec{dispatchPath: {path: dispatchPath}}
	for _, m := range models {
		for _, spec := range m.imports {
			if _, ok := byPath[spec.path]; !ok || spec.name != "" {
				byPath[spec.path] = spec
			}
		}
	}
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		spec := byPath[p]
		line := strconv.Quote(spec.path)
		if spec.name != "" {
			line = spec.name + " " + line
		}
		lines = append(lines, line)
	}
	return lines
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	// Leading acronyms are lowered as a block: HTTPClient becomes httpClient.
	n := 0
	for n < len(s) && s[n] >= 'A' && s[n] <= 'Z' {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == 1 || n == len(s):
		return strings.ToLower(s[:n]) + s[n:]
	default:
		return strings.ToLower(s[:n-1]) + s[n-1:]
	}
}

func argList(m memberModel) string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func paramList(m memberModel) string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Name + " " + p.Type
	}
	return strings.Join(parts, ", ")
}

func signatureNames(m memberModel) string {
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		names[i] = strconv.Quote(p.Declared)
	}
	return strings.Join(names, ", ")
}

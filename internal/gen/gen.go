// Package gen emits forwarding dispatchers for interfaces declared in a Go
// package. The emitted types call a dispatch.Interceptor with the member's
// positional descriptor and register themselves with dispatch.Default.
package gen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/printer"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	dispatchPath = "github.com/samvad-hq/httpcap/pkg/dispatch"
	filePrefix   = "zz_httpcap_"
)

// Options selects the package directory and interfaces to generate for.
type Options struct {
	Dir   string
	Types []string
	// Output, when set, receives every dispatcher in one file.
	Output string
}

// File is one generated source file.
type File struct {
	Path    string
	Content []byte
}

// pkgInfo is the parsed view of one package directory.
type pkgInfo struct {
	name   string
	fset   *token.FileSet
	ifaces map[string]ifaceDecl
}

type ifaceDecl struct {
	spec *ast.InterfaceType
	file *ast.File
}

// Generate parses opts.Dir and renders a dispatcher for every type in
// opts.Types. Nothing is written to disk.
func Generate(opts Options) ([]File, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = "."
	}
	types := cleanTypes(opts.Types)
	if len(types) == 0 {
		return nil, fmt.Errorf("no interface types requested")
	}

	pkg, err := parsePackage(dir)
	if err != nil {
		return nil, err
	}

	var models []*ifaceModel
	for _, name := range types {
		m, err := pkg.model(name)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}

	if out := strings.TrimSpace(opts.Output); out != "" {
		src, err := render(pkg.name, models)
		if err != nil {
			return nil, err
		}
		if !filepath.IsAbs(out) {
			out = filepath.Join(dir, out)
		}
		return []File{{Path: out, Content: src}}, nil
	}

	files := make([]File, 0, len(models))
	for _, m := range models {
		src, err := render(pkg.name, []*ifaceModel{m})
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, filePrefix+strings.ToLower(m.Name)+".go")
		files = append(files, File{Path: path, Content: src})
	}
	return files, nil
}

// WriteFiles writes generated files to disk.
func WriteFiles(files []File) error {
	for _, f := range files {
		if err := os.WriteFile(f.Path, f.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

func cleanTypes(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range in {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// parsePackage parses the non-test, non-generated Go files of dir.
func parsePackage(dir string) (*pkgInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.go"))
	if err != nil {
		return nil, fmt.Errorf("list go files: %w", err)
	}

	pkg := &pkgInfo{fset: token.NewFileSet(), ifaces: make(map[string]ifaceDecl)}
	for _, path := range matches {
		base := filepath.Base(path)
		if strings.HasSuffix(base, "_test.go") || strings.HasPrefix(base, filePrefix) {
			continue
		}
		file, err := parser.ParseFile(pkg.fset, path, nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		if pkg.name == "" {
			pkg.name = file.Name.Name
		} else if pkg.name != file.Name.Name {
			return nil, fmt.Errorf("%s declares package %s, expected %s", base, file.Name.Name, pkg.name)
		}
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				if it, ok := ts.Type.(*ast.InterfaceType); ok {
					pkg.ifaces[ts.Name.Name] = ifaceDecl{spec: it, file: file}
				}
			}
		}
	}
	if pkg.name == "" {
		return nil, fmt.Errorf("no go files in %s", dir)
	}
	return pkg, nil
}

// reserved names would shadow locals or the dispatch package in generated
// bodies.
var reserved = map[string]bool{"d": true, "res": true, "err": true, "dispatch": true}

// ifaceModel is everything the template needs for one interface.
type ifaceModel struct {
	Name    string
	Members []memberModel
	imports map[string]importSpec
}

type importSpec struct {
	name string
	path string
}

type memberModel struct {
	Index     int
	Name      string
	Params    []paramModel
	Results   string
	Kind      string // void, value or future
	Value     string
	HasError  bool
	HasResult bool
}

type paramModel struct {
	Name     string
	Declared string
	Type     string
}

// model flattens the interface's method set, drops baseline members and
// validates every signature.
func (p *pkgInfo) model(name string) (*ifaceModel, error) {
	decl, ok := p.ifaces[name]
	if !ok {
		return nil, fmt.Errorf("interface %s not found in package %s", name, p.name)
	}
	if !ast.IsExported(name) {
		return nil, fmt.Errorf("interface %s must be exported", name)
	}

	m := &ifaceModel{Name: name, imports: make(map[string]importSpec)}
	methods := make(map[string]methodDecl)
	if err := p.collect(decl, methods, map[string]bool{name: true}); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)

	for i, n := range names {
		md := methods[n]
		mm, err := p.member(m, i, md)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, n, err)
		}
		m.Members = append(m.Members, mm)
	}
	return m, nil
}

type methodDecl struct {
	name string
	fn   *ast.FuncType
	file *ast.File
}

func (p *pkgInfo) collect(decl ifaceDecl, methods map[string]methodDecl, visiting map[string]bool) error {
	for _, field := range decl.spec.Methods.List {
		switch t := field.Type.(type) {
		case *ast.FuncType:
			for _, ident := range field.Names {
				if !ident.IsExported() {
					return fmt.Errorf("unexported member %s cannot be forwarded", ident.Name)
				}
				if isBaseline(ident.Name, t) {
					continue
				}
				methods[ident.Name] = methodDecl{name: ident.Name, fn: t, file: decl.file}
			}
		case *ast.Ident:
			inner, ok := p.ifaces[t.Name]
			if !ok {
				return fmt.Errorf("embedded %s is not an interface in this package", t.Name)
			}
			if visiting[t.Name] {
				return fmt.Errorf("interface %s embeds itself", t.Name)
			}
			visiting[t.Name] = true
			if err := p.collect(inner, methods, visiting); err != nil {
				return err
			}
			delete(visiting, t.Name)
		case *ast.SelectorExpr:
			if baselineEmbed(decl.file, t) {
				continue
			}
			return fmt.Errorf("embedded %s from another package is not supported; declare its members directly", exprString(t))
		default:
			return fmt.Errorf("unsupported interface element %s", exprString(field.Type))
		}
	}
	return nil
}

// isBaseline reports the members every dispatcher implements itself.
func isBaseline(name string, fn *ast.FuncType) bool {
	params := fn.Params.NumFields()
	results := 0
	if fn.Results != nil {
		results = fn.Results.NumFields()
	}
	switch name {
	case "Close":
		return params == 0 && results == 1 && isErrorType(fn.Results.List[0].Type)
	case "DispatchInterceptor":
		return params == 0 && results == 1
	}
	return false
}

func baselineEmbed(file *ast.File, sel *ast.SelectorExpr) bool {
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok {
		return false
	}
	path := importPathFor(file, pkgIdent.Name)
	return (path == "io" && sel.Sel.Name == "Closer") || (path == dispatchPath && sel.Sel.Name == "Dispatcher")
}

// placeholder picks the first pN, counting up from the parameter position,
// that no other parameter of the member uses.
func placeholder(taken map[string]bool, pos int) string {
	for n := pos; ; n++ {
		name := "p" + strconv.Itoa(n)
		if !taken[name] && !reserved[name] {
			return name
		}
	}
}

func (p *pkgInfo) member(m *ifaceModel, index int, md methodDecl) (memberModel, error) {
	mm := memberModel{Index: index, Name: md.name}
	if err := p.trackImports(m, md); err != nil {
		return mm, err
	}

	taken := make(map[string]bool)
	for _, field := range md.fn.Params.List {
		for _, ident := range field.Names {
			taken[ident.Name] = true
		}
	}

	pos := 0
	for _, field := range md.fn.Params.List {
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			return mm, fmt.Errorf("variadic members are not supported")
		}
		if err := checkParamExpr(field.Type); err != nil {
			return mm, err
		}
		typ := exprString(field.Type)
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, ident := range names {
			declared := ""
			if ident != nil && ident.Name != "_" {
				declared = ident.Name
			}
			local := declared
			if local == "" || reserved[local] {
				local = placeholder(taken, pos)
			}
			taken[local] = true
			mm.Params = append(mm.Params, paramModel{Name: local, Declared: declared, Type: typ})
			pos++
		}
	}

	var results []ast.Expr
	if md.fn.Results != nil {
		for _, field := range md.fn.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for i := 0; i < n; i++ {
				results = append(results, field.Type)
			}
		}
	}
	if n := len(results); n > 0 && isErrorType(results[n-1]) {
		mm.HasError = true
		results = results[:n-1]
	}
	parts := make([]string, 0, 2)
	switch len(results) {
	case 0:
		mm.Kind = "void"
	case 1:
		if isErrorType(results[0]) {
			return mm, fmt.Errorf("error must be the last result")
		}
		mm.HasResult = true
		parts = append(parts, exprString(results[0]))
		if inner, ok := futureArg(md.file, results[0]); ok {
			mm.Kind = "future"
			mm.Value = exprString(inner)
		} else {
			mm.Kind = "value"
			mm.Value = exprString(results[0])
		}
	default:
		return mm, fmt.Errorf("at most one value and one trailing error may be returned")
	}
	if mm.HasError {
		parts = append(parts, "error")
	}
	switch len(parts) {
	case 0:
	case 1:
		mm.Results = parts[0]
	default:
		mm.Results = "(" + strings.Join(parts, ", ") + ")"
	}
	return mm, nil
}

func checkParamExpr(expr ast.Expr) error {
	switch t := expr.(type) {
	case *ast.ChanType:
		return fmt.Errorf("chan parameters cannot be forwarded")
	case *ast.FuncType:
		return fmt.Errorf("func parameters cannot be forwarded")
	case *ast.StarExpr:
		if _, ok := t.X.(*ast.StarExpr); ok {
			return fmt.Errorf("output parameter %s is not supported", exprString(t))
		}
	case *ast.SelectorExpr:
		if id, ok := t.X.(*ast.Ident); ok && id.Name == "unsafe" && t.Sel.Name == "Pointer" {
			return fmt.Errorf("unsafe.Pointer parameters cannot be forwarded")
		}
	}
	return nil
}

func isErrorType(expr ast.Expr) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == "error"
}

// futureArg reports whether expr is *dispatch.Future[T] and returns T.
func futureArg(file *ast.File, expr ast.Expr) (ast.Expr, bool) {
	star, ok := expr.(*ast.StarExpr)
	if !ok {
		return nil, false
	}
	idx, ok := star.X.(*ast.IndexExpr)
	if !ok {
		return nil, false
	}
	sel, ok := idx.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Future" {
		return nil, false
	}
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok || importPathFor(file, pkgIdent.Name) != dispatchPath {
		return nil, false
	}
	return idx.Index, true
}

// trackImports records the imports referenced by a member's signature.
func (p *pkgInfo) trackImports(m *ifaceModel, md methodDecl) error {
	var err error
	ast.Inspect(md.fn, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok || err != nil {
			return err == nil
		}
		id, ok := sel.X.(*ast.Ident)
		if !ok {
			return true
		}
		path := importPathFor(md.file, id.Name)
		if path == "" {
			err = fmt.Errorf("cannot resolve package %s", id.Name)
			return false
		}
		if prev, ok := m.imports[id.Name]; ok && prev.path != path {
			err = fmt.Errorf("package name %s refers to both %s and %s", id.Name, prev.path, path)
			return false
		}
		spec := importSpec{path: path}
		if guessName(path) != id.Name {
			spec.name = id.Name
		}
		m.imports[id.Name] = spec
		return true
	})
	return err
}

// importPathFor maps a package name used in file to its import path.
func importPathFor(file *ast.File, name string) string {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		if imp.Name != nil {
			if imp.Name.Name == name {
				return path
			}
			continue
		}
		if guessName(path) == name {
			return path
		}
	}
	return ""
}

// guessName returns the conventional package name for an import path.
func guessName(path string) string {
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	if len(parts) > 1 && isMajorVersion(last) {
		last = parts[len(parts)-2]
	}
	if i := strings.Index(last, ".v"); i > 0 && isMajorVersion(last[i+1:]) {
		last = last[:i]
	}
	last = strings.TrimPrefix(last, "go-")
	return strings.ReplaceAll(last, "-", "")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}

func exprString(expr ast.Expr) string {
	var buf bytes.Buffer
	_ = printer.Fprint(&buf, token.NewFileSet(), expr)
	return buf.String()
}

// formatSource gofmts generated code, returning the raw source with the
// error so broken output can be inspected.
func formatSource(src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return src, fmt.Errorf("format generated code: %w", err)
	}
	return out, nil
}

// Package extractor implements the Entity Extractor: it walks one
// *packages.Package's top-level scope and turns Go declarations into the
// graph package's entity types (ClassInfo, InterfaceInfo, EnumInfo,
// TypeAliasInfo, FunctionInfo).
//
// A Go struct becomes a ClassInfo, a Go interface becomes an
// InterfaceInfo, a named type over a basic kind with an associated const
// block becomes an EnumInfo, any other named type becomes a
// TypeAliasInfo, and a free function not matched as a struct's
// constructor becomes a FunctionInfo.
package extractor

import (
	"go/ast"
	"go/doc"
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/cwbudde/tsapigraph/internal/collector"
	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/graph"
)

// Extractor turns one package's declarations into entities.
type Extractor struct {
	pkg *packages.Package
	log *diag.Log

	// docByName holds extracted doc comments and deprecation markers
	// keyed by declared identifier name, built once per package from
	// go/doc so individual extraction steps don't re-walk the AST.
	docByName map[string]docEntry
}

type docEntry struct {
	text       string
	deprecated bool
	internal   bool
}

// New builds an Extractor for pkg, pre-computing doc comments from its
// syntax trees when present (ModeCompiled packages have none, so doc
// comments and deprecation markers are simply unavailable in that mode).
func New(pkg *packages.Package, log *diag.Log) *Extractor {
	e := &Extractor{pkg: pkg, log: log, docByName: map[string]docEntry{}}
	e.collectDocs()
	return e
}

func (e *Extractor) collectDocs() {
	if len(e.pkg.Syntax) == 0 {
		return
	}
	astPkg := &ast.Package{Name: e.pkg.Name, Files: map[string]*ast.File{}}
	for i, f := range e.pkg.Syntax {
		fname := ""
		if i < len(e.pkg.CompiledGoFiles) {
			fname = e.pkg.CompiledGoFiles[i]
		}
		astPkg.Files[fname] = f
	}
	docPkg := doc.New(astPkg, e.pkg.PkgPath, doc.AllDecls|doc.PreserveAST)

	record := func(name, text string) {
		e.docByName[name] = docEntry{
			text:       strings.TrimSpace(stripInternalMarker(text)),
			deprecated: isDeprecated(text),
			internal:   hasInternalMarker(text),
		}
	}
	for _, t := range docPkg.Types {
		record(t.Name, t.Doc)
	}
	for _, f := range docPkg.Funcs {
		record(f.Name, f.Doc)
	}
	for _, c := range docPkg.Consts {
		for _, name := range c.Names {
			record(name, c.Doc)
		}
	}
}

func isDeprecated(docText string) bool {
	for _, line := range strings.Split(docText, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Deprecated:") {
			return true
		}
	}
	return false
}

// internalMarker lets a declaration opt out of its normal capitalization-
// derived visibility: a declaration documented with this marker line is
// reported with private visibility regardless of Go's capitalization
// rule, letting an exported-but-not-public-API identifier (a common Go
// pattern for cross-package-but-not-for-consumers helpers) be classified
// correctly.
const internalMarker = "tsapigraph:internal"

func hasInternalMarker(docText string) bool {
	for _, line := range strings.Split(docText, "\n") {
		if strings.Contains(line, internalMarker) {
			return true
		}
	}
	return false
}

func stripInternalMarker(docText string) string {
	lines := strings.Split(docText, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, internalMarker) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func visibilityOf(name string) graph.Visibility {
	if ast.IsExported(name) {
		return graph.VisibilityPublic
	}
	return graph.VisibilityPrivate
}

// visibilityFor combines the identifier's export-casing visibility with
// an internal-marker override from its doc comment.
func visibilityFor(name string, doc docEntry) graph.Visibility {
	if doc.internal {
		return graph.VisibilityPrivate
	}
	return visibilityOf(name)
}

// Extract walks the package scope and returns its top-level entities.
// Panics during a single declaration's extraction are recovered by the
// adapter's SafeWalk boundary one level up; Extract itself stays simple
// and lets that boundary own recovery.
func (e *Extractor) Extract() graph.ModuleInfo {
	mod := graph.ModuleInfo{Path: e.pkg.PkgPath}
	if e.pkg.Types == nil {
		return mod
	}
	scope := e.pkg.Types.Scope()

	constructorsByType := e.matchConstructors(scope)
	enumTypeNames := e.detectEnums(scope)

	names := scope.Names()
	sort.Strings(names)

	for _, name := range names {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}

		switch o := obj.(type) {
		case *types.TypeName:
			if o.IsAlias() {
				doc, rhs := e.docByName[name], types.Unalias(o.Type())
				qual := func(p *types.Package) string {
					if p == e.pkg.Types {
						return ""
					}
					return p.Name()
				}
				mod.TypeAliases = append(mod.TypeAliases, graph.TypeAliasInfo{
					Name: name, Doc: doc.text, Deprecated: doc.deprecated, Visibility: visibilityFor(name, doc),
					Target: types.TypeString(rhs, qual), ReferencedTypes: collector.CollectNames(rhs),
				})
				continue
			}
			named, ok := o.Type().(*types.Named)
			if !ok {
				continue
			}
			switch under := named.Underlying().(type) {
			case *types.Struct:
				mod.Classes = append(mod.Classes, e.extractClass(named, under, constructorsByType[name]))
			case *types.Interface:
				mod.Interfaces = append(mod.Interfaces, e.extractInterface(named, under))
			default:
				if enumTypeNames[name] {
					mod.Enums = append(mod.Enums, e.extractEnum(named, scope))
				} else {
					mod.TypeAliases = append(mod.TypeAliases, e.extractAlias(named))
				}
			}
		case *types.Func:
			target := constructorTargetName(o)
			if tn, ok := scope.Lookup(target).(*types.TypeName); ok && tn.Exported() && constructorsByType[target] == o {
				if _, isStruct := tn.Type().Underlying().(*types.Struct); isStruct {
					continue
				}
			}
			mod.Functions = append(mod.Functions, e.extractFunction(o))
		}
	}
	return mod
}

// matchConstructors finds, for each named result type Foo, a package-level
// function named New or NewFoo whose first result is Foo or *Foo, per the
// constructor-matching convention the rest of the Go ecosystem (and this
// pipeline's own teacher) follows. When several match, the first in
// scope-name order wins, so New is preferred over NewFoo. Only a match
// whose Foo is a struct is attached as a class constructor.
func (e *Extractor) matchConstructors(scope *types.Scope) map[string]*types.Func {
	out := map[string]*types.Func{}
	for _, name := range scope.Names() {
		fn, ok := scope.Lookup(name).(*types.Func)
		if !ok {
			continue
		}
		target, ok := constructorReturnType(fn)
		if !ok {
			continue
		}
		if name == "New" || name == "New"+target {
			if _, exists := out[target]; !exists {
				out[target] = fn
			}
		}
	}
	return out
}

func constructorReturnType(fn *types.Func) (string, bool) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Results() == nil || sig.Results().Len() == 0 {
		return "", false
	}
	res := sig.Results().At(0).Type()
	if ptr, ok := res.(*types.Pointer); ok {
		res = ptr.Elem()
	}
	named, ok := res.(*types.Named)
	if !ok {
		return "", false
	}
	return named.Obj().Name(), true
}

func constructorTargetName(fn *types.Func) string {
	name, _ := constructorReturnType(fn)
	return name
}

// detectEnums finds named types over a basic kind with two or more
// associated package-level constants, the Go idiom for an enumeration.
func (e *Extractor) detectEnums(scope *types.Scope) map[string]bool {
	counts := map[string]int{}
	for _, name := range scope.Names() {
		c, ok := scope.Lookup(name).(*types.Const)
		if !ok {
			continue
		}
		named, ok := c.Type().(*types.Named)
		if !ok {
			continue
		}
		if _, basic := named.Underlying().(*types.Basic); !basic {
			continue
		}
		counts[named.Obj().Name()]++
	}
	out := map[string]bool{}
	for name, n := range counts {
		if n >= 2 {
			out[name] = true
		}
	}
	return out
}

func (e *Extractor) extractClass(named *types.Named, st *types.Struct, ctor *types.Func) graph.ClassInfo {
	name := named.Obj().Name()
	doc := e.docByName[name]
	ci := graph.ClassInfo{
		Name:           name,
		Doc:            doc.text,
		Deprecated:     doc.deprecated,
		Visibility:     visibilityFor(name, doc),
		TypeParameters: typeParamNames(named),
	}

	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		fi := graph.FieldInfo{
			Name:       f.Name(),
			Type:       types.TypeString(f.Type(), types.RelativeTo(e.pkg.Types)),
			Visibility: visibilityOf(f.Name()),
			Embedded:   f.Embedded(),
		}
		if f.Embedded() {
			ci.Embeds = append(ci.Embeds, fi.Type)
		}
		ci.Fields = append(ci.Fields, fi)
	}

	memberTypes := []types.Type{}
	for i := 0; i < st.NumFields(); i++ {
		memberTypes = append(memberTypes, st.Field(i).Type())
	}

	for i := 0; i < named.NumMethods(); i++ {
		m := named.Method(i)
		ci.Methods = append(ci.Methods, e.extractMethod(m))
		memberTypes = append(memberTypes, m.Type())
	}
	sort.Slice(ci.Methods, func(i, j int) bool { return ci.Methods[i].Name < ci.Methods[j].Name })

	if ctor != nil {
		ci.Constructor = e.extractConstructor(ctor)
		memberTypes = append(memberTypes, ctor.Type())
	}

	ci.Implements = e.implementedInterfaceNames(named)
	ci.ReferencedTypes = collector.CollectNames(memberTypes...)

	return ci
}

func (e *Extractor) extractMethod(m *types.Func) graph.MethodInfo {
	sig := m.Type().(*types.Signature)
	doc := e.docByName[m.Name()]
	mi := graph.MethodInfo{
		Name:       m.Name(),
		Signature:  types.TypeString(sig, types.RelativeTo(e.pkg.Types)),
		Parameters: paramsOf(sig, e.pkg.Types),
		ReturnType: resultsOf(sig, e.pkg.Types),
		Visibility: visibilityFor(m.Name(), doc),
		Doc:        doc.text,
		Deprecated: doc.deprecated,
	}
	return mi
}

func (e *Extractor) extractConstructor(fn *types.Func) *graph.ConstructorInfo {
	sig := fn.Type().(*types.Signature)
	doc := e.docByName[fn.Name()]
	return &graph.ConstructorInfo{
		Signature:  types.TypeString(sig, types.RelativeTo(e.pkg.Types)),
		Parameters: paramsOf(sig, e.pkg.Types),
		Doc:        doc.text,
	}
}

func (e *Extractor) extractInterface(named *types.Named, it *types.Interface) graph.InterfaceInfo {
	name := named.Obj().Name()
	doc := e.docByName[name]
	ii := graph.InterfaceInfo{
		Name:           name,
		Doc:            doc.text,
		Deprecated:     doc.deprecated,
		Visibility:     visibilityFor(name, doc),
		TypeParameters: typeParamNames(named),
	}
	memberTypes := []types.Type{}
	for i := 0; i < it.NumExplicitMethods(); i++ {
		m := it.ExplicitMethod(i)
		ii.Methods = append(ii.Methods, e.extractMethod(m))
		memberTypes = append(memberTypes, m.Type())
	}
	sort.Slice(ii.Methods, func(i, j int) bool { return ii.Methods[i].Name < ii.Methods[j].Name })
	for i := 0; i < it.NumEmbeddeds(); i++ {
		embedded := it.EmbeddedType(i)
		ii.Extends = append(ii.Extends, types.TypeString(embedded, types.RelativeTo(e.pkg.Types)))
		memberTypes = append(memberTypes, embedded)
	}
	ii.ReferencedTypes = collector.CollectNames(memberTypes...)
	return ii
}

func (e *Extractor) extractEnum(named *types.Named, scope *types.Scope) graph.EnumInfo {
	name := named.Obj().Name()
	doc := e.docByName[name]
	ei := graph.EnumInfo{
		Name:       name,
		Doc:        doc.text,
		Deprecated: doc.deprecated,
		Visibility: visibilityFor(name, doc),
		Underlying: types.TypeString(named.Underlying(), nil),
	}
	var consts []*types.Const
	for _, memberName := range scope.Names() {
		c, ok := scope.Lookup(memberName).(*types.Const)
		if !ok {
			continue
		}
		cn, ok := c.Type().(*types.Named)
		if !ok || cn.Obj().Name() != name {
			continue
		}
		consts = append(consts, c)
	}
	// Declaration order; constants without position information keep the
	// name order scope.Names returns.
	sort.SliceStable(consts, func(i, j int) bool { return consts[i].Pos() < consts[j].Pos() })
	for _, c := range consts {
		mdoc := e.docByName[c.Name()]
		ei.Members = append(ei.Members, graph.EnumMemberInfo{
			Name:  c.Name(),
			Value: c.Val().String(),
			Doc:   mdoc.text,
		})
	}
	return ei
}

func (e *Extractor) extractAlias(named *types.Named) graph.TypeAliasInfo {
	name := named.Obj().Name()
	doc := e.docByName[name]
	return graph.TypeAliasInfo{
		Name:            name,
		Doc:             doc.text,
		Deprecated:      doc.deprecated,
		Visibility:      visibilityFor(name, doc),
		Target:          types.TypeString(named.Underlying(), types.RelativeTo(e.pkg.Types)),
		TypeParameters:  typeParamNames(named),
		ReferencedTypes: collector.CollectNames(named.Underlying()),
	}
}

func (e *Extractor) extractFunction(fn *types.Func) graph.FunctionInfo {
	sig := fn.Type().(*types.Signature)
	doc := e.docByName[fn.Name()]
	return graph.FunctionInfo{
		Name:            fn.Name(),
		Doc:             doc.text,
		Deprecated:      doc.deprecated,
		Visibility:      visibilityFor(fn.Name(), doc),
		Signature:       types.TypeString(sig, types.RelativeTo(e.pkg.Types)),
		Parameters:      paramsOf(sig, e.pkg.Types),
		ReturnType:      resultsOf(sig, e.pkg.Types),
		ReferencedTypes: collector.CollectNames(sig),
	}
}

// implementedInterfaceNames reports which interfaces declared in the same
// package named's method set satisfies. Interfaces declared in other
// packages are not considered.
func (e *Extractor) implementedInterfaceNames(named *types.Named) []string {
	var out []string
	scope := e.pkg.Types.Scope()
	ptr := types.NewPointer(named)
	for _, name := range scope.Names() {
		tn, ok := scope.Lookup(name).(*types.TypeName)
		if !ok {
			continue
		}
		iface, ok := tn.Type().Underlying().(*types.Interface)
		if !ok || iface.NumMethods() == 0 {
			continue
		}
		if types.Implements(named, iface) || types.Implements(ptr, iface) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func typeParamNames(named *types.Named) []string {
	tp := named.TypeParams()
	if tp == nil {
		return nil
	}
	var out []string
	for i := 0; i < tp.Len(); i++ {
		out = append(out, tp.At(i).Obj().Name())
	}
	return out
}

func paramsOf(sig *types.Signature, pkg *types.Package) []graph.ParameterInfo {
	params := sig.Params()
	if params == nil {
		return nil
	}
	var out []graph.ParameterInfo
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		variadic := sig.Variadic() && i == params.Len()-1
		out = append(out, graph.ParameterInfo{
			Name:     paramName(p.Name(), i),
			Type:     types.TypeString(p.Type(), types.RelativeTo(pkg)),
			Variadic: variadic,
		})
	}
	return out
}

func paramName(name string, idx int) string {
	if name == "" {
		return "_"
	}
	return name
}

func resultsOf(sig *types.Signature, pkg *types.Package) string {
	results := sig.Results()
	if results == nil || results.Len() == 0 {
		return "void"
	}
	if results.Len() == 1 {
		return types.TypeString(results.At(0).Type(), types.RelativeTo(pkg))
	}
	return types.TypeString(results, types.RelativeTo(pkg))
}

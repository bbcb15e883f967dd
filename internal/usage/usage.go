// Package usage implements the Usage Analyzer: a syntax-only pass over a
// directory of Go sample files that records, for each call expression,
// which (owner type, method) or bare function pair of the graph's
// extracted API surface is actually exercised by real code.
//
// The pass is deliberately syntax-only (go/parser, not go/types): the
// samples directory is arbitrary user-supplied code that need not even
// compile against the same module graph. Call attribution never falls
// back to matching a selector's method name alone against the API
// surface — every recorded call is backed by a locally inferred receiver
// type, built from three maps derived once from the supplied ApiIndex
// (propertyTypeMap, methodReturnTypeMap, functionReturnTypeMap) plus a
// per-function varTypes table populated from explicit annotations,
// constructor calls, other call-expression return types, type
// assertions and property-chain lookups.
package usage

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/graph"
)

// CallSite is one observed use of a named entity.
type CallSite struct {
	Entity  string `json:"entity"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	Pattern string `json:"pattern,omitempty"`
}

// UsageIndex is the output of a usage analysis run: for every entity key
// referenced by the samples (a bare function name, or "Owner.Method" for
// a class or interface method), the call sites observed.
type UsageIndex struct {
	Calls map[string][]CallSite `json:"calls"`
	// Uncalled lists entity keys present in the index that had zero
	// observed call sites. The Coverage Formatter does not read it; it
	// derives coverage from Calls.
	Uncalled []string `json:"uncalled,omitempty"`
}

// apiMaps are the lookup tables the receiver-type inference engine
// consults. They are built once per Analyze call from the ApiIndex and
// never mutated afterward.
type apiMaps struct {
	// propertyTypeMap maps "Owner.field" -> the field's bare type name.
	propertyTypeMap map[string]string
	// methodReturnTypeMap maps "Owner.method" -> the method's bare return
	// type name.
	methodReturnTypeMap map[string]string
	// functionReturnTypeMap maps a package function's name -> its bare
	// return type name.
	functionReturnTypeMap map[string]string
	// methodSet is the set of "Owner.method" keys that exist somewhere in
	// the index, the gate a selector call must pass to be recorded.
	methodSet map[string]bool
	// ctorOf maps a constructor function's conventional name (NewWidget)
	// to the class name it constructs.
	ctorOf map[string]string
}

// buildMaps derives the five lookup tables from idx's classes,
// interfaces and functions.
func buildMaps(idx graph.ApiIndex) *apiMaps {
	m := &apiMaps{
		propertyTypeMap:       map[string]string{},
		methodReturnTypeMap:   map[string]string{},
		functionReturnTypeMap: map[string]string{},
		methodSet:             map[string]bool{},
		ctorOf:                map[string]string{},
	}
	for _, mod := range idx.Modules {
		for _, fn := range mod.Functions {
			m.functionReturnTypeMap[fn.Name] = bareType(fn.ReturnType)
		}
		for _, cls := range mod.Classes {
			if cls.Constructor != nil {
				m.ctorOf["New"+cls.Name] = cls.Name
			}
			for _, f := range cls.Fields {
				m.propertyTypeMap[cls.Name+"."+f.Name] = bareType(f.Type)
			}
			for _, mm := range cls.Methods {
				key := cls.Name + "." + mm.Name
				m.methodSet[key] = true
				m.methodReturnTypeMap[key] = bareType(mm.ReturnType)
			}
		}
		for _, ifc := range mod.Interfaces {
			for _, mm := range ifc.Methods {
				key := ifc.Name + "." + mm.Name
				m.methodSet[key] = true
				m.methodReturnTypeMap[key] = bareType(mm.ReturnType)
			}
		}
	}
	return m
}

// knownKeys returns every entity key the analysis can observe a call
// against, for computing Uncalled.
func (m *apiMaps) knownKeys() map[string]bool {
	out := map[string]bool{}
	for k := range m.ctorOf {
		out[k] = true
	}
	for k := range m.functionReturnTypeMap {
		out[k] = true
	}
	for k := range m.methodSet {
		out[k] = true
	}
	return out
}

// bareType reduces a graph type string (as rendered by go/types.TypeString,
// possibly a tuple like "(*Widget, error)") to the single bare type name
// usable as a map key: strips a tuple's trailing results, pointer and
// slice prefixes, generic type arguments, and any package qualifier.
func bareType(t string) string {
	t = strings.TrimSpace(t)
	if strings.HasPrefix(t, "(") {
		t = strings.TrimPrefix(t, "(")
		t = strings.TrimSuffix(t, ")")
		if i := strings.Index(t, ","); i >= 0 {
			t = t[:i]
		}
		t = strings.TrimSpace(t)
	}
	for strings.HasPrefix(t, "*") || strings.HasPrefix(t, "[]") {
		t = strings.TrimPrefix(t, "*")
		t = strings.TrimPrefix(t, "[]")
	}
	if i := strings.IndexByte(t, '['); i >= 0 {
		t = t[:i]
	}
	if i := strings.LastIndexByte(t, '.'); i >= 0 {
		t = t[i+1:]
	}
	return t
}

// exprString renders the syntactic shape of a type expression well
// enough for bareType to reduce it: identifiers, pointers, slices,
// qualified identifiers and generic instantiations.
func exprString(e ast.Expr) string {
	switch t := e.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.IndexExpr:
		return exprString(t.X)
	case *ast.IndexListExpr:
		return exprString(t.X)
	default:
		return ""
	}
}

// Analyze walks every .go file under samplesDir and builds a UsageIndex
// against idx. Parse errors for individual files are recorded as
// warnings and that file is skipped rather than aborting the whole run.
func Analyze(ctx context.Context, samplesDir string, idx graph.ApiIndex, log *diag.Log) (*UsageIndex, error) {
	maps := buildMaps(idx)
	seen := map[string]bool{}
	result := &UsageIndex{Calls: map[string][]CallSite{}}

	fset := token.NewFileSet()

	err := filepath.WalkDir(samplesDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			log.AddWarning(diag.CodeTypeNodeTraverse, "could not read sample file "+path+": "+err.Error())
			return nil
		}
		file, err := parser.ParseFile(fset, path, src, 0)
		if err != nil {
			log.AddWarning(diag.CodeTypeNodeTraverse, "could not parse sample file "+path+": "+err.Error())
			return nil
		}
		rel := path
		if r, err := filepath.Rel(samplesDir, path); err == nil {
			rel = r
		}
		analyzeFile(file, fset, rel, maps, result, seen)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for name := range maps.knownKeys() {
		if !seen[name] {
			result.Uncalled = append(result.Uncalled, name)
		}
	}
	sort.Strings(result.Uncalled)
	for name := range result.Calls {
		sort.Slice(result.Calls[name], func(i, j int) bool {
			if result.Calls[name][i].File != result.Calls[name][j].File {
				return result.Calls[name][i].File < result.Calls[name][j].File
			}
			return result.Calls[name][i].Line < result.Calls[name][j].Line
		})
	}
	return result, nil
}

// analyzeFile dispatches every top-level function declaration and
// function literal in file to its own varTypes scope.
func analyzeFile(file *ast.File, fset *token.FileSet, relPath string, maps *apiMaps, result *UsageIndex, seen map[string]bool) {
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		vt := map[string]string{}
		if fn.Recv != nil && len(fn.Recv.List) > 0 {
			recvType := bareType(exprString(fn.Recv.List[0].Type))
			for _, n := range fn.Recv.List[0].Names {
				vt[n.Name] = recvType
			}
		}
		addParams(fn.Type, vt)
		w := &walker{fset: fset, relPath: relPath, maps: maps, result: result, seen: seen, handled: map[ast.Node]bool{}}
		w.block(fn.Body, vt)
	}
}

// addParams seeds vt with a function's parameter names and bare types.
func addParams(ft *ast.FuncType, vt map[string]string) {
	if ft == nil || ft.Params == nil {
		return
	}
	for _, field := range ft.Params.List {
		t := bareType(exprString(field.Type))
		for _, n := range field.Names {
			vt[n.Name] = t
		}
	}
}

// walker carries the per-file recording state through a function body's
// nested scopes (closures each get their own vt, inheriting the
// enclosing scope's bindings).
type walker struct {
	fset    *token.FileSet
	relPath string
	maps    *apiMaps
	result  *UsageIndex
	seen    map[string]bool
	handled map[ast.Node]bool
}

// block walks every statement of body, threading vt through nested
// blocks so a variable assigned earlier in the same function is visible
// later in it.
func (w *walker) block(body *ast.BlockStmt, vt map[string]string) {
	if body == nil {
		return
	}
	for _, stmt := range body.List {
		w.stmt(stmt, vt)
	}
}

func (w *walker) stmt(n ast.Stmt, vt map[string]string) {
	switch s := n.(type) {
	case *ast.AssignStmt:
		w.assign(s, vt)
	case *ast.DeclStmt:
		w.decl(s, vt)
	case *ast.ExprStmt:
		w.expr(s.X, vt, "")
	case *ast.GoStmt:
		w.recordCall(s.Call, vt, "async")
	case *ast.DeferStmt:
		w.recordCall(s.Call, vt, "")
	case *ast.IfStmt:
		if s.Init != nil {
			w.stmt(s.Init, vt)
		}
		w.expr(s.Cond, vt, "")
		w.block(s.Body, copyScope(vt))
		if s.Else != nil {
			w.stmt(s.Else, vt)
		}
	case *ast.ForStmt:
		inner := copyScope(vt)
		if s.Init != nil {
			w.stmt(s.Init, inner)
		}
		if s.Cond != nil {
			w.expr(s.Cond, inner, "")
		}
		w.block(s.Body, inner)
	case *ast.RangeStmt:
		w.rangeStmt(s, vt)
	case *ast.BlockStmt:
		w.block(s, copyScope(vt))
	case *ast.ReturnStmt:
		for _, r := range s.Results {
			w.expr(r, vt, "")
		}
	case *ast.SwitchStmt:
		if s.Init != nil {
			w.stmt(s.Init, vt)
		}
		w.block(s.Body, copyScope(vt))
	case *ast.CaseClause:
		inner := copyScope(vt)
		for _, body := range s.Body {
			w.stmt(body, inner)
		}
	case *ast.LabeledStmt:
		w.stmt(s.Stmt, vt)
	}
}

// copyScope shallow-copies vt so bindings made inside a nested block
// (if/for/switch body) do not leak back into the enclosing scope.
func copyScope(vt map[string]string) map[string]string {
	out := make(map[string]string, len(vt))
	for k, v := range vt {
		out[k] = v
	}
	return out
}

// rangeStmt covers the "awaited for-range" streaming pattern's Go
// analogue: ranging directly over a call's result (typically a channel
// returned by a streaming API method) is recorded with pattern
// "streaming" instead of through the generic expression walk.
func (w *walker) rangeStmt(s *ast.RangeStmt, vt map[string]string) {
	if call, ok := s.X.(*ast.CallExpr); ok {
		w.recordCall(call, vt, "streaming")
	} else {
		w.expr(s.X, vt, "")
	}
	inner := copyScope(vt)
	if id, ok := s.Key.(*ast.Ident); ok && s.Tok == token.DEFINE {
		inner[id.Name] = ""
	}
	if id, ok := s.Value.(*ast.Ident); ok && s.Tok == token.DEFINE {
		if t := inferExprType(s.X, vt, w.maps); t != "" {
			inner[id.Name] = t
		}
	}
	w.block(s.Body, inner)
}

// assign handles both "x := expr" and "v, err := expr" forms: the first
// (or only) left-hand identifier is bound to expr's inferred type when
// recognizable. A second left-hand identifier literally named "err" (or
// ending in "Err") marks the call as the Go analogue of the
// try/error-handling pattern.
func (w *walker) assign(s *ast.AssignStmt, vt map[string]string) {
	pattern := ""
	if len(s.Lhs) == 2 {
		if id, ok := s.Lhs[1].(*ast.Ident); ok && (id.Name == "err" || strings.HasSuffix(id.Name, "Err")) {
			pattern = "error-handling"
		}
	}
	for _, rhs := range s.Rhs {
		w.expr(rhs, vt, pattern)
	}
	if len(s.Lhs) >= 1 && len(s.Rhs) == 1 {
		if id, ok := s.Lhs[0].(*ast.Ident); ok && id.Name != "_" {
			if t := inferExprType(s.Rhs[0], vt, w.maps); t != "" {
				vt[id.Name] = t
			}
		}
	}
}

func (w *walker) decl(s *ast.DeclStmt, vt map[string]string) {
	gen, ok := s.Decl.(*ast.GenDecl)
	if !ok || gen.Tok != token.VAR {
		return
	}
	for _, spec := range gen.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		if vs.Type != nil {
			t := bareType(exprString(vs.Type))
			for _, n := range vs.Names {
				vt[n.Name] = t
			}
			continue
		}
		for i, n := range vs.Names {
			if i < len(vs.Values) {
				w.expr(vs.Values[i], vt, "")
				if t := inferExprType(vs.Values[i], vt, w.maps); t != "" {
					vt[n.Name] = t
				}
			}
		}
	}
}

// expr walks e looking for call expressions to record, recursing into
// call arguments and closures.
func (w *walker) expr(e ast.Expr, vt map[string]string, pattern string) {
	switch ex := e.(type) {
	case *ast.CallExpr:
		w.recordCall(ex, vt, pattern)
		for _, arg := range ex.Args {
			w.expr(arg, vt, "")
		}
	case *ast.FuncLit:
		inner := copyScope(vt)
		addParams(ex.Type, inner)
		w.block(ex.Body, inner)
	case *ast.UnaryExpr:
		w.expr(ex.X, vt, "")
	case *ast.BinaryExpr:
		w.expr(ex.X, vt, "")
		w.expr(ex.Y, vt, "")
	case *ast.ParenExpr:
		w.expr(ex.X, vt, "")
	case *ast.SelectorExpr:
		w.expr(ex.X, vt, "")
	case *ast.TypeAssertExpr:
		w.expr(ex.X, vt, "")
	case *ast.StarExpr:
		w.expr(ex.X, vt, "")
	}
}

// recordCall records one call expression once it has been identified
// (a bare known function/constructor name, or a selector whose receiver
// type inference resolves to a key present in methodSet). Calls that
// cannot be attributed this way are silently skipped: the analyzer never
// falls back to matching the callee's bare name alone.
func (w *walker) recordCall(call *ast.CallExpr, vt map[string]string, pattern string) {
	if call == nil || w.handled[call] {
		return
	}
	w.handled[call] = true

	var key string
	switch fn := call.Fun.(type) {
	case *ast.Ident:
		if _, ok := w.maps.ctorOf[fn.Name]; ok {
			key = fn.Name
		} else if _, ok := w.maps.functionReturnTypeMap[fn.Name]; ok {
			key = fn.Name
		}
	case *ast.SelectorExpr:
		if base, ok := fn.X.(*ast.Ident); ok {
			if _, isVar := vt[base.Name]; !isVar {
				// Not a tracked local: fn.X is a package identifier, the
				// normal Go shape of a qualified constructor/function
				// call ("widgets.NewWidget()"). Recorded by the callee's
				// bare name alone only for this package-qualified case,
				// never as a fallback for a selector on a known local.
				if _, ok := w.maps.ctorOf[fn.Sel.Name]; ok {
					key = fn.Sel.Name
				} else if _, ok := w.maps.functionReturnTypeMap[fn.Sel.Name]; ok {
					key = fn.Sel.Name
				}
			}
		}
		if key == "" {
			recv := inferExprType(fn.X, vt, w.maps)
			if recv != "" {
				candidate := recv + "." + fn.Sel.Name
				if w.maps.methodSet[candidate] {
					key = candidate
				}
			}
		}
	}
	if key == "" {
		for _, arg := range call.Args {
			w.expr(arg, vt, "")
		}
		return
	}

	pos := w.fset.Position(call.Pos())
	w.seen[key] = true
	w.result.Calls[key] = append(w.result.Calls[key], CallSite{
		Entity:  key,
		File:    w.relPath,
		Line:    pos.Line,
		Pattern: pattern,
	})
	for _, arg := range call.Args {
		w.expr(arg, vt, "")
	}
}

// inferExprType is the receiver-type inference engine: it resolves e's
// local type from vt, a constructor or function call's return type, a
// composite literal's or new(T)'s type, a property-chain lookup through
// propertyTypeMap, or a type assertion's asserted type.
func inferExprType(e ast.Expr, vt map[string]string, maps *apiMaps) string {
	switch expr := e.(type) {
	case *ast.Ident:
		return vt[expr.Name]
	case *ast.CallExpr:
		switch fn := expr.Fun.(type) {
		case *ast.Ident:
			if fn.Name == "new" && len(expr.Args) == 1 {
				return bareType(exprString(expr.Args[0]))
			}
			if cls, ok := maps.ctorOf[fn.Name]; ok {
				return cls
			}
			if rt, ok := maps.functionReturnTypeMap[fn.Name]; ok {
				return rt
			}
		case *ast.SelectorExpr:
			if base, ok := fn.X.(*ast.Ident); ok {
				if _, isVar := vt[base.Name]; !isVar {
					if cls, ok := maps.ctorOf[fn.Sel.Name]; ok {
						return cls
					}
					if rt, ok := maps.functionReturnTypeMap[fn.Sel.Name]; ok {
						return rt
					}
				}
			}
			recv := inferExprType(fn.X, vt, maps)
			if recv == "" {
				return ""
			}
			if rt, ok := maps.methodReturnTypeMap[recv+"."+fn.Sel.Name]; ok {
				return rt
			}
		}
		return ""
	case *ast.SelectorExpr:
		recv := inferExprType(expr.X, vt, maps)
		if recv == "" {
			return ""
		}
		if t, ok := maps.propertyTypeMap[recv+"."+expr.Sel.Name]; ok {
			return t
		}
		return ""
	case *ast.CompositeLit:
		if expr.Type == nil {
			return ""
		}
		return bareType(exprString(expr.Type))
	case *ast.TypeAssertExpr:
		if expr.Type == nil {
			return ""
		}
		return bareType(exprString(expr.Type))
	case *ast.UnaryExpr:
		if expr.Op == token.AND {
			return inferExprType(expr.X, vt, maps)
		}
	case *ast.StarExpr:
		return inferExprType(expr.X, vt, maps)
	case *ast.ParenExpr:
		return inferExprType(expr.X, vt, maps)
	}
	return ""
}

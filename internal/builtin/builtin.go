// Package builtin classifies a go/types.Type as either a language builtin
// (no module owns it, so it never becomes a DependencyInfo edge) or a
// named type belonging to some package.
//
// The classification table below is grounded on go/types.Universe, the
// predeclared scope every type-checked package resolves against: the
// predeclared basic kinds (bool, string, the numeric kinds, the untyped
// constant kinds), error, the two built-in generic constraint-adjacent
// names (any, comparable), and unsafe.Pointer from the unsafe package,
// which go/types treats specially even though unsafe has a real import
// path.
package builtin

import (
	"go/build"
	"go/types"
	"strings"
)

// builtinNames is the set of go/types.Universe identifiers that denote a
// predeclared type rather than one declared in a named package.
var builtinNames = map[string]bool{
	"bool":       true,
	"string":     true,
	"int":        true,
	"int8":       true,
	"int16":      true,
	"int32":      true,
	"int64":      true,
	"uint":       true,
	"uint8":      true,
	"uint16":     true,
	"uint32":     true,
	"uint64":     true,
	"uintptr":    true,
	"float32":    true,
	"float64":    true,
	"complex64":  true,
	"complex128": true,
	"byte":       true,
	"rune":       true,
	"any":        true,
	"error":      true,
	"comparable": true,
}

// IsBuiltin reports whether t denotes a predeclared type: a basic kind, the
// universal error interface, any/comparable, or unsafe.Pointer. Composite
// types (slice, map, pointer, etc.) are never builtin themselves — the
// Type Reference Collector unwraps them and classifies their elements.
func IsBuiltin(t types.Type) bool {
	switch u := t.(type) {
	case *types.Basic:
		return true
	case *types.Named:
		obj := u.Obj()
		if obj.Pkg() == nil {
			return builtinNames[obj.Name()]
		}
		return obj.Pkg().Path() == "unsafe" && obj.Name() == "Pointer"
	case *types.Interface:
		return u.NumMethods() == 0 && u.NumEmbeddeds() == 0
	default:
		return false
	}
}

// IsBuiltinName reports whether name (as it would appear unqualified in
// source, e.g. from an *ast.Ident) denotes a predeclared identifier. Used
// by the Usage Analyzer's syntax-only pass, which sees identifiers before
// any type-checking has resolved them.
func IsBuiltinName(name string) bool {
	return builtinNames[name]
}

// nativeModuleMarkers lists the standard-library import paths the
// Dependency Resolver must never record as an external dependency edge.
// go/build.Import below already classifies the whole of GOROOT
// correctly; this fixed set only covers names go/build would otherwise
// need a live GOROOT lookup for (kept here so IsStdlibPackage degrades
// gracefully without one).
var nativeModuleMarkers = map[string]bool{
	"fmt": true, "os": true, "io": true, "net": true, "net/http": true,
	"net/https": true, "crypto": true, "strings": true, "strconv": true,
	"context": true, "time": true, "sync": true, "errors": true,
	"encoding/json": true, "path": true, "path/filepath": true,
	"sort": true, "bytes": true, "bufio": true, "reflect": true,
}

// IsStdlibPackage reports whether path names a standard-library import:
// one rooted under GOROOT rather than a module dependency. go/build.Import
// with FindOnly answers this precisely using the same source-file
// classification the compiler itself uses, rather than a path substring
// heuristic (the corresponding Builtin Classifier rule for types, above,
// applies the same "ask the toolchain" principle to declarations).
func IsStdlibPackage(path string) bool {
	if path == "" {
		return false
	}
	if nativeModuleMarkers[path] {
		return true
	}
	first := path
	if i := strings.IndexByte(path, '/'); i >= 0 {
		first = path[:i]
	}
	if !strings.Contains(first, ".") {
		if pkg, err := build.Import(path, "", build.FindOnly); err == nil {
			return pkg.Goroot
		}
		return true
	}
	return false
}

// PackagePath returns the import path owning t, or "" if t is builtin or
// otherwise has no owning package (e.g. a type parameter or tuple).
func PackagePath(t types.Type) string {
	named, ok := t.(*types.Named)
	if !ok {
		return ""
	}
	obj := named.Obj()
	if obj.Pkg() == nil {
		return ""
	}
	return obj.Pkg().Path()
}

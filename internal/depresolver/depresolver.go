// Package depresolver implements the Dependency Resolver: it takes the
// Type Reference Collector's raw Refs for a module and expands them,
// iterating to a fixed point, into full DependencyInfo entity records
// for every external package the reachable surface touches. Resolving
// one dependency's own declarations can surface further external
// packages (package A's field of type B in package C pulls in C), so
// expansion runs as a worklist rather than a single pass.
//
// Standard-library packages are excluded from the edge set: every Go
// binary already depends on them implicitly, so
// recording them as a first-class graph dependency would clutter the
// useful, intentional-import-only signal the graph is meant to carry
// (internal/builtin.IsStdlibPackage).
package depresolver

import (
	"go/types"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/cwbudde/tsapigraph/internal/builtin"
	"github.com/cwbudde/tsapigraph/internal/collector"
	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/extractor"
	"github.com/cwbudde/tsapigraph/internal/graph"
)

// Lookup resolves an import path to its loaded *packages.Package, or nil
// if the pipeline never loaded it. go/packages' NeedDeps load mode
// already pulls in
// every package's transitive imports with export data attached, so the
// adapter's own load result already contains everything a fixed-point
// expansion can reach; Lookup is typically a closure over that flattened
// import graph rather than a second packages.Load call.
type Lookup func(pkgPath string) *packages.Package

// isSelfReferentialAlias reports whether t's target textually names t
// itself: a self-referential type alias (e.g. `type List[T any] =
// List[T]`) is a degenerate alias that carries no external information
// and must be suppressed from dependency emission.
func isSelfReferentialAlias(t graph.TypeAliasInfo) bool {
	target := strings.TrimSpace(t.Target)
	if target == t.Name {
		return true
	}
	return strings.HasPrefix(target, t.Name+"[")
}

// Resolve expands refs (as collected for one module) into DependencyInfo
// records, one per external package, each carrying the real extracted
// entities (not just type names) of that package. selfPackage is
// excluded: a type referencing itself or a sibling type in its own
// package is not an external dependency. Packages lookup cannot resolve
// are recorded with graph.UnresolvedTarget sentinel entries and an
// AddUnresolvedDependency diagnostic per offending type name.
func Resolve(selfPackage string, refs []collector.Ref, lookup Lookup, log *diag.Log) []graph.DependencyInfo {
	seenPkg := map[string]bool{}
	pkgNames := map[string]map[string]bool{}
	var queue []string

	enqueue := func(pkgPath, name string) {
		if pkgPath == "" || pkgPath == selfPackage || builtin.IsStdlibPackage(pkgPath) {
			return
		}
		if pkgNames[pkgPath] == nil {
			pkgNames[pkgPath] = map[string]bool{}
		}
		pkgNames[pkgPath][name] = true
		if !seenPkg[pkgPath] {
			seenPkg[pkgPath] = true
			queue = append(queue, pkgPath)
		}
	}

	for _, ref := range refs {
		enqueue(ref.Package, ref.Name)
	}

	processed := map[string]bool{}
	byPkg := map[string]graph.DependencyInfo{}
	var order []string

	for len(queue) > 0 {
		pkgPath := queue[0]
		queue = queue[1:]
		if processed[pkgPath] {
			continue
		}
		processed[pkgPath] = true
		order = append(order, pkgPath)

		pkg := lookup(pkgPath)
		if pkg == nil || pkg.Types == nil {
			byPkg[pkgPath] = unresolvedDependency(pkgPath, pkgNames[pkgPath], log)
			continue
		}

		mod := extractor.New(pkg, log).Extract()
		dep := graph.DependencyInfo{Package: pkgPath}
		dep.Classes = mod.Classes
		dep.Interfaces = mod.Interfaces
		dep.Enums = mod.Enums
		for _, ta := range mod.TypeAliases {
			if !isSelfReferentialAlias(ta) {
				dep.Types = append(dep.Types, ta)
			}
		}
		byPkg[pkgPath] = dep

		for _, sub := range discoverSubReferences(pkg) {
			enqueue(sub.Package, sub.Name)
		}
	}

	sort.Strings(order)
	out := make([]graph.DependencyInfo, 0, len(order))
	for _, p := range order {
		out = append(out, byPkg[p])
	}
	return out
}

// unresolvedDependency builds the sentinel DependencyInfo for a package
// lookup could not resolve: one graph.UnresolvedTarget TypeAliasInfo per
// offending name, sorted, plus a matching diagnostic for each.
func unresolvedDependency(pkgPath string, names map[string]bool, log *diag.Log) graph.DependencyInfo {
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	dep := graph.DependencyInfo{Package: pkgPath}
	for _, n := range sorted {
		log.AddUnresolvedDependency(pkgPath, n)
		dep.Types = append(dep.Types, graph.TypeAliasInfo{Name: n, Target: graph.UnresolvedTarget})
	}
	return dep
}

// discoverSubReferences walks every top-level declaration in pkg's own
// scope, collecting the named types it in turn references. This is what
// drives the worklist past the directly-enqueued packages: package A's
// own Foo field of type bar.Baz means resolving A must also pull in bar.
func discoverSubReferences(pkg *packages.Package) []collector.Ref {
	c := collector.New()
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		switch obj := scope.Lookup(name).(type) {
		case *types.TypeName:
			c.Walk(obj.Type())
		case *types.Func:
			c.Walk(obj.Type())
		}
	}
	return c.Refs()
}

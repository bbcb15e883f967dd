// Package extraction orchestrates one end-to-end extraction run: load
// packages through the Compiler Adapter, resolve entry points from an
// optional manifest, extract entities per reachable package, assign
// re-export declaration sites, restrict the result to the entity-level
// reachable closure, resolve external dependency edges to a fixed point,
// and assemble the final ApiIndex.
//
// A single struct owns the Config and wires every component in a fixed
// order (Adapter -> Export Resolver -> package Reachability -> Extractor
// per package -> entity Reachability -> Dependency Resolver -> Assembler), with a
// context.Context threaded through for cancellation checkpoints at every
// stage boundary.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cwbudde/tsapigraph/internal/adapter"
	"github.com/cwbudde/tsapigraph/internal/assembler"
	"github.com/cwbudde/tsapigraph/internal/collector"
	"github.com/cwbudde/tsapigraph/internal/depresolver"
	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/exportresolver"
	"github.com/cwbudde/tsapigraph/internal/extractor"
	"github.com/cwbudde/tsapigraph/internal/graph"
	"github.com/cwbudde/tsapigraph/internal/manifest"
	"github.com/cwbudde/tsapigraph/internal/reachability"

	gopackages "golang.org/x/tools/go/packages"
)

// Config is the top-level extraction configuration, matching the CLI
// surface.
type Config struct {
	// Mode selects source or compiled-export-data loading.
	Mode adapter.Mode
	// DeclarationsRoot is the package root passed to the adapter.
	DeclarationsRoot string
	// ManifestPath, if non-empty, points to a surface manifest (JSON or
	// YAML) naming entry-point packages and conditions. When empty,
	// every loaded package is treated as an entry point and the
	// reachability pass becomes a no-op identity closure.
	ManifestPath string
	// ManifestSource, if set, is used instead of reading ManifestPath
	// from disk (tests supply this directly).
	ManifestSource []byte
	// ConditionPriority overrides exportresolver.DefaultPriority.
	ConditionPriority []string
	// CrossLanguageMapPath, if non-empty, points to a JSON
	// graph.CrossLanguageMap document joined onto assembled entity ids.
	CrossLanguageMapPath string
	// CrossLanguageMapSource, if set, is used instead of reading
	// CrossLanguageMapPath from disk (tests supply this directly).
	CrossLanguageMapSource []byte
}

// Context runs a single extraction and owns the diagnostic log shared
// across every stage of the run.
type Context struct {
	cfg Config
	log *diag.Log
}

// New returns an extraction Context for cfg.
func New(cfg Config) *Context {
	return &Context{cfg: cfg, log: diag.NewLog()}
}

// packageGraph adapts the loaded packages.Package list to
// reachability.Graph by import path, for the coarse package-level load
// scoping pass.
type packageGraph struct {
	byPath map[string]*gopackages.Package
}

func (g packageGraph) Edges(pkgPath string) []string {
	pkg, ok := g.byPath[pkgPath]
	if !ok {
		return nil
	}
	var out []string
	for imp := range pkg.Imports {
		out = append(out, imp)
	}
	return out
}

// flattenPackages walks roots' transitive Imports graph (already loaded
// in full by packages.Load's NeedDeps mode) into a flat lookup by import
// path, used both for package-level reachability edges and as the
// Dependency Resolver's depresolver.Lookup.
func flattenPackages(roots []*gopackages.Package) map[string]*gopackages.Package {
	out := map[string]*gopackages.Package{}
	var visit func(p *gopackages.Package)
	visit = func(p *gopackages.Package) {
		if p == nil || out[p.PkgPath] != nil {
			return
		}
		out[p.PkgPath] = p
		for _, imp := range p.Imports {
			visit(imp)
		}
	}
	for _, p := range roots {
		visit(p)
	}
	return out
}

// Run executes the full pipeline and returns the assembled ApiIndex.
func (c *Context) Run(ctx context.Context) (graph.ApiIndex, error) {
	result, err := adapter.Load(ctx, adapter.Config{Mode: c.cfg.Mode, Dir: c.cfg.DeclarationsRoot})
	if err != nil {
		return graph.ApiIndex{}, err
	}
	c.mergeLog(result.Log)

	flat := flattenPackages(result.Packages)

	resolutions, err := c.resolveEntryPoints()
	if err != nil {
		return graph.ApiIndex{}, err
	}
	if resolutions == nil {
		resolutions = noManifestFallback(result.Packages)
	}
	entryPkgPaths, entryByPkg := entryPointsByPackage(resolutions)

	reach, err := reachability.Walk(ctx, packageGraph{byPath: flat}, entryPkgPaths)
	if err != nil {
		return graph.ApiIndex{}, err
	}

	mods := map[string]*graph.ModuleInfo{}
	order := make([]string, 0, len(result.Packages))
	importIdents := map[string]map[string]string{}

	adapter.SafeWalk(result.Packages, c.log, func(pkg *gopackages.Package) {
		if ctx.Err() != nil {
			return
		}
		if !reach.Reachable[pkg.PkgPath] {
			return
		}

		mod := extractor.New(pkg, c.log).Extract()
		if ep, ok := entryByPkg[pkg.PkgPath]; ok {
			mod.EntryPoint = true
			mod.ExportPath = ep.ExportPath
			mod.Condition = ep.Condition
			mod.ConditionChain = ep.ConditionChain
			markEntitiesEntryPoint(&mod)
		}
		mods[pkg.PkgPath] = &mod
		order = append(order, pkg.PkgPath)

		idents := map[string]string{}
		for impPath, imp := range pkg.Imports {
			idents[imp.Name] = impPath
		}
		importIdents[pkg.PkgPath] = idents
	})
	if err := ctx.Err(); err != nil {
		return graph.ApiIndex{}, err
	}

	assignReExports(mods, importIdents)

	entityGraph := buildEntityGraph(mods)
	reachableEntities, err := reachability.WalkEntities(ctx, entityGraph)
	if err != nil {
		return graph.ApiIndex{}, err
	}
	for _, path := range order {
		pruneUnreachableEntities(mods[path], reachableEntities)
	}

	asm := assembler.New(c.log)
	globalDeps := map[string]graph.DependencyInfo{}
	var depOrder []string

	for _, path := range order {
		mod := mods[path]
		pkg := flat[path]
		col := collector.New()
		for _, name := range retainedEntityNames(mod) {
			if pkg.Types == nil {
				break
			}
			if obj := pkg.Types.Scope().Lookup(name); obj != nil {
				col.Walk(obj.Type())
			}
		}
		lookup := depresolver.Lookup(func(p string) *gopackages.Package { return flat[p] })
		for _, d := range depresolver.Resolve(path, col.Refs(), lookup, c.log) {
			if _, exists := globalDeps[d.Package]; !exists {
				globalDeps[d.Package] = d
				depOrder = append(depOrder, d.Package)
			}
		}
		asm.Add(*mod)
	}

	depsOut := make([]graph.DependencyInfo, 0, len(depOrder))
	for _, p := range depOrder {
		depsOut = append(depsOut, globalDeps[p])
	}
	asm.AddDependencies(depsOut)

	if clm, err := c.loadCrossLanguageMap(); err != nil {
		return graph.ApiIndex{}, err
	} else if clm != nil {
		asm.SetCrossLanguageMap(clm)
	}

	return asm.Assemble(), nil
}

// markEntitiesEntryPoint propagates a module's entry-point status onto
// every entity it declares: the whole package is the declared surface,
// so each of its entities is individually an entry point for the
// entity-level reachability BFS to start from.
func markEntitiesEntryPoint(mod *graph.ModuleInfo) {
	for i := range mod.Classes {
		mod.Classes[i].EntryPoint = true
	}
	for i := range mod.Interfaces {
		mod.Interfaces[i].EntryPoint = true
	}
	for i := range mod.Enums {
		mod.Enums[i].EntryPoint = true
	}
	for i := range mod.TypeAliases {
		mod.TypeAliases[i].EntryPoint = true
	}
	for i := range mod.Functions {
		mod.Functions[i].EntryPoint = true
	}
}

// assignReExports implements the declaration-site assignment's second
// phase: a `type X = externalpkg.Y` alias is Go's genuine re-export
// idiom, so a qualified TypeAliasInfo.Target is resolved against the
// declaring package's own import identifiers and, when it names an
// entity in another retained module, that entity inherits the alias
// module's exportPath, with reExportedFrom set to the alias's id, unless
// it already carries its own direct assignment. Entities carry no
// condition, so the alias module's condition is not recorded on them.
// Re-exports of entities belonging to
// an external (non-retained) package are left to the Dependency
// Resolver's own records instead, since those carry no exportPath/
// condition concept of their own.
func assignReExports(mods map[string]*graph.ModuleInfo, importIdents map[string]map[string]string) {
	for path, mod := range mods {
		if !mod.EntryPoint {
			continue
		}
		idents := importIdents[path]
		for _, ta := range mod.TypeAliases {
			qualifier, name, ok := splitQualifiedTarget(ta.Target)
			if !ok {
				continue
			}
			targetPath, ok := idents[qualifier]
			if !ok {
				continue
			}
			target, ok := mods[targetPath]
			if !ok {
				continue
			}
			fromId := path + "." + ta.Name
			applyReExport(target, name, fromId, mod.ExportPath, mod.Condition)
		}
	}
}

// splitQualifiedTarget parses a rendered type string like "*pkg.Name" or
// "pkg.Name" into its import identifier and bare type name.
func splitQualifiedTarget(target string) (qualifier, name string, ok bool) {
	t := strings.TrimPrefix(strings.TrimSpace(target), "*")
	i := strings.LastIndexByte(t, '.')
	if i < 0 {
		return "", "", false
	}
	return t[:i], t[i+1:], true
}

// applyReExport sets reExportedFrom and exportPath on the named entity in
// target and marks it an entry point, unless it already carries a direct
// assignment of its own (a non-empty ExportPath). condition is accepted
// but not stored, since entities have no condition field.
func applyReExport(target *graph.ModuleInfo, name, fromId, exportPath, condition string) {
	for i := range target.Classes {
		if target.Classes[i].Name == name && target.Classes[i].ExportPath == "" {
			target.Classes[i].ExportPath = exportPath
			target.Classes[i].ReExportedFrom = fromId
			target.Classes[i].EntryPoint = true
			return
		}
	}
	for i := range target.Interfaces {
		if target.Interfaces[i].Name == name && target.Interfaces[i].ExportPath == "" {
			target.Interfaces[i].ExportPath = exportPath
			target.Interfaces[i].ReExportedFrom = fromId
			target.Interfaces[i].EntryPoint = true
			return
		}
	}
	for i := range target.Enums {
		if target.Enums[i].Name == name && target.Enums[i].ExportPath == "" {
			target.Enums[i].ExportPath = exportPath
			target.Enums[i].ReExportedFrom = fromId
			target.Enums[i].EntryPoint = true
			return
		}
	}
	for i := range target.TypeAliases {
		if target.TypeAliases[i].Name == name && target.TypeAliases[i].ExportPath == "" {
			target.TypeAliases[i].ExportPath = exportPath
			target.TypeAliases[i].ReExportedFrom = fromId
			target.TypeAliases[i].EntryPoint = true
			return
		}
	}
	_ = condition
}

// buildEntityGraph flattens every retained module's entities into
// reachability.EntityNode values (id = module path + "." + name, the
// same scheme the Graph Assembler uses, computed independently here
// since entity pruning must happen before ids are formally assigned) and
// an interface-name -> implementer-id map that WalkEntities follows so
// the implementers of a reachable interface stay reachable.
func buildEntityGraph(mods map[string]*graph.ModuleInfo) *reachability.EntityGraph {
	var nodes []reachability.EntityNode
	implementers := map[string][]string{}

	for path, mod := range mods {
		for _, c := range mod.Classes {
			id := path + "." + c.Name
			nodes = append(nodes, reachability.EntityNode{Id: id, Name: c.Name, EntryPoint: c.EntryPoint, ReferencedTypes: c.ReferencedTypes})
			for _, ifc := range c.Implements {
				implementers[ifc] = append(implementers[ifc], id)
			}
		}
		for _, i := range mod.Interfaces {
			id := path + "." + i.Name
			nodes = append(nodes, reachability.EntityNode{Id: id, Name: i.Name, EntryPoint: i.EntryPoint, ReferencedTypes: i.ReferencedTypes})
		}
		for _, e := range mod.Enums {
			id := path + "." + e.Name
			nodes = append(nodes, reachability.EntityNode{Id: id, Name: e.Name, EntryPoint: e.EntryPoint})
		}
		for _, ta := range mod.TypeAliases {
			id := path + "." + ta.Name
			nodes = append(nodes, reachability.EntityNode{Id: id, Name: ta.Name, EntryPoint: ta.EntryPoint, ReferencedTypes: ta.ReferencedTypes})
		}
		for _, fn := range mod.Functions {
			id := path + "." + fn.Name
			nodes = append(nodes, reachability.EntityNode{Id: id, Name: fn.Name, EntryPoint: fn.EntryPoint, ReferencedTypes: fn.ReferencedTypes})
		}
	}
	return reachability.NewEntityGraph(nodes, implementers)
}

// retainedEntityNames lists every entity name still present in mod,
// after entity-level pruning, for the Dependency Resolver's
// refs-collection pass.
func retainedEntityNames(mod *graph.ModuleInfo) []string {
	var out []string
	for _, c := range mod.Classes {
		out = append(out, c.Name)
	}
	for _, i := range mod.Interfaces {
		out = append(out, i.Name)
	}
	for _, e := range mod.Enums {
		out = append(out, e.Name)
	}
	for _, ta := range mod.TypeAliases {
		out = append(out, ta.Name)
	}
	for _, fn := range mod.Functions {
		out = append(out, fn.Name)
	}
	return out
}

// pruneUnreachableEntities drops every entity from mod whose id is not
// in reachableEntities: an unreachable entity inside an otherwise-retained
// module is excluded individually rather than by dropping the whole
// module.
func pruneUnreachableEntities(mod *graph.ModuleInfo, reachableEntities map[string]bool) {
	keepClasses := mod.Classes[:0]
	for _, c := range mod.Classes {
		if reachableEntities[mod.Path+"."+c.Name] {
			keepClasses = append(keepClasses, c)
		}
	}
	mod.Classes = keepClasses

	keepInterfaces := mod.Interfaces[:0]
	for _, i := range mod.Interfaces {
		if reachableEntities[mod.Path+"."+i.Name] {
			keepInterfaces = append(keepInterfaces, i)
		}
	}
	mod.Interfaces = keepInterfaces

	keepEnums := mod.Enums[:0]
	for _, e := range mod.Enums {
		if reachableEntities[mod.Path+"."+e.Name] {
			keepEnums = append(keepEnums, e)
		}
	}
	mod.Enums = keepEnums

	keepAliases := mod.TypeAliases[:0]
	for _, ta := range mod.TypeAliases {
		if reachableEntities[mod.Path+"."+ta.Name] {
			keepAliases = append(keepAliases, ta)
		}
	}
	mod.TypeAliases = keepAliases

	keepFunctions := mod.Functions[:0]
	for _, fn := range mod.Functions {
		if reachableEntities[mod.Path+"."+fn.Name] {
			keepFunctions = append(keepFunctions, fn)
		}
	}
	mod.Functions = keepFunctions
}

// entryPointsByPackage reduces resolutions to the coarse package-path
// set the load-scoping reachability pass needs, plus the first resolution
// claiming each package path (exportresolver sorts by ascending priority,
// so this is the most general condition), for propagating
// exportPath/condition onto that module.
func entryPointsByPackage(resolutions []exportresolver.Resolution) ([]string, map[string]exportresolver.Resolution) {
	byPkg := map[string]exportresolver.Resolution{}
	var order []string
	for _, r := range resolutions {
		if !r.EntryPoint {
			continue
		}
		if _, exists := byPkg[r.Package]; !exists {
			byPkg[r.Package] = r
			order = append(order, r.Package)
		}
	}
	return order, byPkg
}

// resolveEntryPoints determines which loaded packages are entry points
// and under which (exportPath, condition). Without a manifest, every
// loaded package is an entry point at exportPath "." under the default
// condition, treating the given root directory itself as the sole
// surface to document.
func (c *Context) resolveEntryPoints() ([]exportresolver.Resolution, error) {
	if c.cfg.ManifestPath == "" && c.cfg.ManifestSource == nil {
		return nil, nil
	}

	src := c.cfg.ManifestSource
	path := c.cfg.ManifestPath
	if src == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &diag.InputInvalidError{Reason: fmt.Sprintf("reading manifest %q: %v", path, err)}
		}
		src = data
	}

	m, err := manifest.Parse(path, src)
	if err != nil {
		return nil, &diag.InputInvalidError{Reason: err.Error()}
	}

	resolver := exportresolver.New(c.cfg.ConditionPriority)
	return resolver.Resolve(m), nil
}

// noManifestFallback builds the all-packages-are-entry-points resolution
// set used when resolveEntryPoints returns no manifest-driven
// resolutions, scoped to the packages the adapter actually loaded.
func noManifestFallback(pkgs []*gopackages.Package) []exportresolver.Resolution {
	out := make([]exportresolver.Resolution, 0, len(pkgs))
	for _, pkg := range pkgs {
		out = append(out, exportresolver.Resolution{
			ExportPath: ".",
			Package:    pkg.PkgPath,
			Condition:  exportresolver.DefaultCondition,
			EntryPoint: true,
		})
	}
	return out
}

// loadCrossLanguageMap reads the optional CrossLanguageMap input, if
// configured.
func (c *Context) loadCrossLanguageMap() (*graph.CrossLanguageMap, error) {
	src := c.cfg.CrossLanguageMapSource
	if src == nil {
		if c.cfg.CrossLanguageMapPath == "" {
			return nil, nil
		}
		data, err := os.ReadFile(c.cfg.CrossLanguageMapPath)
		if err != nil {
			return nil, &diag.InputInvalidError{Reason: fmt.Sprintf("reading cross-language map %q: %v", c.cfg.CrossLanguageMapPath, err)}
		}
		src = data
	}
	var m graph.CrossLanguageMap
	if err := json.Unmarshal(src, &m); err != nil {
		return nil, &diag.InputInvalidError{Reason: fmt.Sprintf("parsing cross-language map: %v", err)}
	}
	return &m, nil
}

func (c *Context) mergeLog(other *diag.Log) {
	if other == nil {
		return
	}
	for _, m := range other.Msgs() {
		if m.Code != "" {
			c.log.AddWarningForType(m.Code, m.TypeName, m.Text)
		} else {
			c.log.AddInfo(m.Text)
		}
	}
}

// Log exposes the accumulated diagnostic buffer for callers that want to
// inspect it before final assembly (e.g. the CLI's --json error path).
func (c *Context) Log() *diag.Log {
	return c.log
}

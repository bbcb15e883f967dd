// Package assembler implements the Graph Assembler: it takes the modules
// built by earlier stages, assigns every entity its deterministic id,
// joins an optional CrossLanguageMap onto those ids, orders everything
// deterministically, attaches the diagnostic summary, and serializes the
// result to JSON.
//
// Determinism — running extraction twice over the same input must
// produce byte-identical JSON output — comes from sorting every slice by
// a stable key before marshaling rather than from map iteration order,
// since map order is the one thing Go's JSON encoder will not stabilize
// for us.
// Pretty-printing is delegated to tidwall/pretty rather than
// json.MarshalIndent, matching the rest of the manifest/JSON stack's
// choice of tidwall's JSON tooling over encoding/json's formatting paths.
package assembler

import (
	"encoding/json"
	"sort"

	"github.com/tidwall/pretty"

	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/graph"
)

// Assembler accumulates modules and dependency records across an
// extraction run.
type Assembler struct {
	modules      []graph.ModuleInfo
	dependencies []graph.DependencyInfo
	crossLang    *graph.CrossLanguageMap
	log          *diag.Log
}

// New returns an empty Assembler backed by log for the final diagnostic
// summary.
func New(log *diag.Log) *Assembler {
	return &Assembler{log: log}
}

// Add appends one module's extracted entities to the assembler.
func (a *Assembler) Add(mod graph.ModuleInfo) {
	a.modules = append(a.modules, mod)
}

// AddDependencies appends the top-level dependency records produced by
// Dependency Resolver expansion.
func (a *Assembler) AddDependencies(deps []graph.DependencyInfo) {
	a.dependencies = append(a.dependencies, deps...)
}

// SetCrossLanguageMap installs the optional cross-language id join
// input. A nil m disables the join.
func (a *Assembler) SetCrossLanguageMap(m *graph.CrossLanguageMap) {
	a.crossLang = m
}

// sortModule sorts every entity slice within mod by name, so output does
// not depend on the extractor's internal map/scope iteration order.
func sortModule(mod *graph.ModuleInfo) {
	sort.Slice(mod.Classes, func(i, j int) bool { return mod.Classes[i].Name < mod.Classes[j].Name })
	sort.Slice(mod.Interfaces, func(i, j int) bool { return mod.Interfaces[i].Name < mod.Interfaces[j].Name })
	sort.Slice(mod.Enums, func(i, j int) bool { return mod.Enums[i].Name < mod.Enums[j].Name })
	sort.Slice(mod.TypeAliases, func(i, j int) bool { return mod.TypeAliases[i].Name < mod.TypeAliases[j].Name })
	sort.Slice(mod.Functions, func(i, j int) bool { return mod.Functions[i].Name < mod.Functions[j].Name })
}

// assignIds performs the single deterministic id-assignment pass:
// id = package + "." + typeName for top-level entities, parentId + "."
// + memberName for members. Constructor member names are the fixed
// string "constructor". Walking modules in already path-sorted order
// and members in already name-sorted order is what
// makes the resulting ids reproducible across runs without needing a
// counter or timestamp.
func assignIds(mod *graph.ModuleInfo) {
	for i := range mod.Classes {
		c := &mod.Classes[i]
		c.Id = mod.Path + "." + c.Name
		for j := range c.Fields {
			c.Fields[j].Id = c.Id + "." + c.Fields[j].Name
		}
		for j := range c.Methods {
			c.Methods[j].Id = c.Id + "." + c.Methods[j].Name
		}
		if c.Constructor != nil {
			c.Constructor.Id = c.Id + ".constructor"
		}
	}
	for i := range mod.Interfaces {
		in := &mod.Interfaces[i]
		in.Id = mod.Path + "." + in.Name
		for j := range in.Methods {
			in.Methods[j].Id = in.Id + "." + in.Methods[j].Name
		}
	}
	for i := range mod.Enums {
		e := &mod.Enums[i]
		e.Id = mod.Path + "." + e.Name
		for j := range e.Members {
			e.Members[j].Id = e.Id + "." + e.Members[j].Name
		}
	}
	for i := range mod.TypeAliases {
		mod.TypeAliases[i].Id = mod.Path + "." + mod.TypeAliases[i].Name
	}
	for i := range mod.Functions {
		mod.Functions[i].Id = mod.Path + "." + mod.Functions[i].Name
	}
}

// joinCrossLanguage looks up m.crossLang.Ids by every entity and member
// id already assigned by assignIds, setting CrossLanguageId wherever the
// map has an entry. The join is idempotent: re-running it against the
// same map and already-joined ids produces the same result.
func (a *Assembler) joinCrossLanguage(mod *graph.ModuleInfo) {
	if a.crossLang == nil {
		return
	}
	lookup := func(id string) string { return a.crossLang.Ids[id] }
	for i := range mod.Classes {
		c := &mod.Classes[i]
		c.CrossLanguageId = lookup(c.Id)
		for j := range c.Fields {
			c.Fields[j].CrossLanguageId = lookup(c.Fields[j].Id)
		}
		for j := range c.Methods {
			c.Methods[j].CrossLanguageId = lookup(c.Methods[j].Id)
		}
		if c.Constructor != nil {
			c.Constructor.CrossLanguageId = lookup(c.Constructor.Id)
		}
	}
	for i := range mod.Interfaces {
		in := &mod.Interfaces[i]
		in.CrossLanguageId = lookup(in.Id)
		for j := range in.Methods {
			in.Methods[j].CrossLanguageId = lookup(in.Methods[j].Id)
		}
	}
	for i := range mod.Enums {
		e := &mod.Enums[i]
		e.CrossLanguageId = lookup(e.Id)
		for j := range e.Members {
			e.Members[j].CrossLanguageId = lookup(e.Members[j].Id)
		}
	}
	for i := range mod.TypeAliases {
		mod.TypeAliases[i].CrossLanguageId = lookup(mod.TypeAliases[i].Id)
	}
	for i := range mod.Functions {
		mod.Functions[i].CrossLanguageId = lookup(mod.Functions[i].Id)
	}
}

// Assemble builds the final ApiIndex: modules sorted by path, entities
// sorted by name within each module, every entity given its id, the
// CrossLanguageMap (if any) joined onto those ids, and the diagnostic
// log folded into its deduplicated summary form (diag.Log.Summarize).
func (a *Assembler) Assemble() graph.ApiIndex {
	mods := make([]graph.ModuleInfo, len(a.modules))
	copy(mods, a.modules)
	for i := range mods {
		sortModule(&mods[i])
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Path < mods[j].Path })
	for i := range mods {
		assignIds(&mods[i])
		a.joinCrossLanguage(&mods[i])
	}

	deps := make([]graph.DependencyInfo, len(a.dependencies))
	copy(deps, a.dependencies)
	sort.Slice(deps, func(i, j int) bool { return deps[i].Package < deps[j].Package })

	idx := graph.ApiIndex{Modules: mods, Dependencies: deps}
	if a.crossLang != nil {
		idx.CrossLanguagePackageId = a.crossLang.PackageId
	}
	if a.log != nil {
		for _, m := range a.log.Summarize() {
			idx.Diagnostics = append(idx.Diagnostics, graph.DiagnosticInfo{
				Code:     string(m.Code),
				Level:    m.Level.String(),
				Message:  m.Text,
				TypeName: m.TypeName,
				Package:  m.Package,
			})
		}
	}
	return idx
}

// MarshalJSON serializes idx, pretty-printing with tidwall/pretty when
// pretty is true and using two-space indentation, matching the CLI's
// --pretty flag.
func MarshalJSON(idx graph.ApiIndex, prettyPrint bool) ([]byte, error) {
	raw, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	if !prettyPrint {
		return raw, nil
	}
	return pretty.PrettyOptions(raw, &pretty.Options{Indent: "  ", SortKeys: false}), nil
}

package assembler

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/cwbudde/tsapigraph/internal/diag"
	"github.com/cwbudde/tsapigraph/internal/graph"
)

func buildSampleModules() []graph.ModuleInfo {
	return []graph.ModuleInfo{
		{
			Path: "example.com/zeta",
			Functions: []graph.FunctionInfo{
				{Name: "Zed"},
				{Name: "Alpha"},
			},
		},
		{
			Path: "example.com/alpha",
			Classes: []graph.ClassInfo{
				{Name: "Widget"},
				{Name: "Box"},
			},
		},
	}
}

// TestAssembleIsDeterministic exercises the "running extraction twice
// produces byte-identical JSON output" invariant directly: two Assembler
// instances fed the same modules in the same insertion order must
// marshal to the same bytes.
func TestAssembleIsDeterministic(t *testing.T) {
	log := diag.NewLog()
	log.AddWarning(diag.CodeTypeTraverse, "sample warning")

	a1 := New(log)
	a2 := New(log)
	for _, mod := range buildSampleModules() {
		a1.Add(mod)
		a2.Add(mod)
	}

	idx1, err := MarshalJSON(a1.Assemble(), false)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	idx2, err := MarshalJSON(a2.Assemble(), false)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	if string(idx1) != string(idx2) {
		t.Fatalf("assembly is not deterministic:\n%s\nvs\n%s", idx1, idx2)
	}
}

func TestAssembleSortsModulesAndEntities(t *testing.T) {
	log := diag.NewLog()
	a := New(log)
	for _, mod := range buildSampleModules() {
		a.Add(mod)
	}

	idx := a.Assemble()

	if idx.Modules[0].Path != "example.com/alpha" || idx.Modules[1].Path != "example.com/zeta" {
		t.Fatalf("modules not sorted by path: %+v", idx.Modules)
	}
	if idx.Modules[0].Classes[0].Name != "Box" {
		t.Errorf("classes not sorted by name: %+v", idx.Modules[0].Classes)
	}
	if idx.Modules[1].Functions[0].Name != "Alpha" {
		t.Errorf("functions not sorted by name: %+v", idx.Modules[1].Functions)
	}
}

func TestAssembleAssignsDeterministicIds(t *testing.T) {
	a := New(diag.NewLog())
	a.Add(graph.ModuleInfo{
		Path: "example.com/alpha",
		Classes: []graph.ClassInfo{
			{
				Name:        "Widget",
				Fields:      []graph.FieldInfo{{Name: "Size"}},
				Methods:     []graph.MethodInfo{{Name: "Spin"}},
				Constructor: &graph.ConstructorInfo{},
			},
		},
	})

	idx := a.Assemble()
	cls := idx.Modules[0].Classes[0]
	if cls.Id != "example.com/alpha.Widget" {
		t.Errorf("class id = %q, want %q", cls.Id, "example.com/alpha.Widget")
	}
	if cls.Fields[0].Id != "example.com/alpha.Widget.Size" {
		t.Errorf("field id = %q, want %q", cls.Fields[0].Id, "example.com/alpha.Widget.Size")
	}
	if cls.Methods[0].Id != "example.com/alpha.Widget.Spin" {
		t.Errorf("method id = %q, want %q", cls.Methods[0].Id, "example.com/alpha.Widget.Spin")
	}
	if cls.Constructor.Id != "example.com/alpha.Widget.constructor" {
		t.Errorf("constructor id = %q, want %q", cls.Constructor.Id, "example.com/alpha.Widget.constructor")
	}
}

func TestAssembleJoinsCrossLanguageMap(t *testing.T) {
	a := New(diag.NewLog())
	a.Add(graph.ModuleInfo{
		Path:    "example.com/alpha",
		Classes: []graph.ClassInfo{{Name: "Widget"}},
	})
	a.SetCrossLanguageMap(&graph.CrossLanguageMap{
		PackageId: "npm:widgets@1.0.0",
		Ids:       map[string]string{"example.com/alpha.Widget": "ts:Widget"},
	})

	idx := a.Assemble()
	if idx.CrossLanguagePackageId != "npm:widgets@1.0.0" {
		t.Errorf("CrossLanguagePackageId = %q", idx.CrossLanguagePackageId)
	}
	if idx.Modules[0].Classes[0].CrossLanguageId != "ts:Widget" {
		t.Errorf("CrossLanguageId not joined: %+v", idx.Modules[0].Classes[0])
	}
}

func TestAssembleSortsDependenciesByPackage(t *testing.T) {
	a := New(diag.NewLog())
	a.AddDependencies([]graph.DependencyInfo{
		{Package: "example.com/zeta"},
		{Package: "example.com/alpha"},
	})

	idx := a.Assemble()
	if idx.Dependencies[0].Package != "example.com/alpha" || idx.Dependencies[1].Package != "example.com/zeta" {
		t.Errorf("dependencies not sorted by package: %+v", idx.Dependencies)
	}
}

func TestAssembleSnapshotJSON(t *testing.T) {
	log := diag.NewLog()
	log.AddWarning(diag.CodeTypeTraverse, "sample warning")

	a := New(log)
	for _, mod := range buildSampleModules() {
		a.Add(mod)
	}

	out, err := MarshalJSON(a.Assemble(), true)
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	snaps.MatchSnapshot(t, string(out))
}

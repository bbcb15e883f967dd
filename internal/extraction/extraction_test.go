package extraction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/tsapigraph/internal/adapter"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", rel, err)
	}
}

func TestRunNoManifestTreatsEveryPackageAsEntryPoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/sample\n\ngo 1.21\n")
	writeFile(t, dir, "widgets/widgets.go", `package widgets

type Widget struct {
	Name string
}

func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

func (w *Widget) Spin() {}
`)

	ctx := New(Config{Mode: adapter.ModeSource, DeclarationsRoot: dir})
	idx, err := ctx.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(idx.Modules) != 1 {
		t.Fatalf("expected 1 module, got %+v", idx.Modules)
	}
	mod := idx.Modules[0]
	if !mod.EntryPoint || mod.ExportPath != "." || mod.Condition != "default" {
		t.Errorf("expected module treated as default entry point, got %+v", mod)
	}
	if len(mod.Classes) != 1 || mod.Classes[0].Name != "Widget" {
		t.Fatalf("expected Widget class, got %+v", mod.Classes)
	}
	if !mod.Classes[0].EntryPoint {
		t.Errorf("expected Widget entity marked entry point, got %+v", mod.Classes[0])
	}
	if mod.Classes[0].Id != "example.com/sample/widgets.Widget" {
		t.Errorf("unexpected id %q", mod.Classes[0].Id)
	}
}

func TestRunManifestScopesEntryPointsAndPrunesUnreachableEntities(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/sample\n\ngo 1.21\n")
	writeFile(t, dir, "entry/entry.go", `package entry

import "example.com/sample/external"

type A struct {
	B *external.B
}
`)
	writeFile(t, dir, "external/external.go", `package external

type B struct{}

type C struct{}
`)

	manifestSrc := []byte(`{
		"name": "example.com/sample",
		"exports": { ".": "example.com/sample/entry" }
	}`)

	ctx := New(Config{
		Mode:             adapter.ModeSource,
		DeclarationsRoot: dir,
		ManifestPath:     "package.json",
		ManifestSource:   manifestSrc,
	})
	idx, err := ctx.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var foundEntry, foundExternal bool
	for _, mod := range idx.Modules {
		switch mod.Path {
		case "example.com/sample/entry":
			foundEntry = true
			if !mod.EntryPoint || mod.ExportPath != "." || mod.Condition != "default" {
				t.Errorf("expected entry module to carry default entry assignment, got %+v", mod)
			}
			if len(mod.Classes) != 1 || mod.Classes[0].Name != "A" {
				t.Fatalf("expected class A in entry module, got %+v", mod.Classes)
			}
		case "example.com/sample/external":
			foundExternal = true
			if mod.EntryPoint {
				t.Errorf("expected external module not to be a manifest entry point")
			}
			if len(mod.Classes) != 1 || mod.Classes[0].Name != "B" {
				t.Fatalf("expected only B retained in external module (C is unreachable), got %+v", mod.Classes)
			}
		}
	}
	if !foundEntry {
		t.Fatal("expected entry module in output")
	}
	if !foundExternal {
		t.Fatal("expected external module retained via package-level reachability")
	}
}

func TestRunJoinsCrossLanguageMap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/sample\n\ngo 1.21\n")
	writeFile(t, dir, "widgets/widgets.go", `package widgets

type Widget struct{}

func NewWidget() *Widget {
	return &Widget{}
}
`)

	clm := []byte(`{
		"packageId": "ts:widgets",
		"ids": { "example.com/sample/widgets.Widget": "ts:Widget" }
	}`)

	ctx := New(Config{
		Mode:                   adapter.ModeSource,
		DeclarationsRoot:       dir,
		CrossLanguageMapSource: clm,
	})
	idx, err := ctx.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if idx.CrossLanguagePackageId != "ts:widgets" {
		t.Errorf("expected crossLanguagePackageId joined, got %q", idx.CrossLanguagePackageId)
	}
	if len(idx.Modules) != 1 || len(idx.Modules[0].Classes) != 1 {
		t.Fatalf("unexpected modules: %+v", idx.Modules)
	}
	if got := idx.Modules[0].Classes[0].CrossLanguageId; got != "ts:Widget" {
		t.Errorf("expected joined crossLanguageId, got %q", got)
	}
}

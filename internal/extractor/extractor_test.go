package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"

	"github.com/cwbudde/tsapigraph/internal/diag"
)

// loadFixture writes src as a single-file module under a temp directory
// and loads it with go/packages, the same Source-mode path the adapter
// package drives in production.
func loadFixture(t *testing.T, src string) *packages.Package {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/fixture\n\ngo 1.24\n"), 0o644); err != nil {
		t.Fatalf("writing go.mod: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fixture.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("writing fixture.go: %v", err)
	}

	cfg := &packages.Config{
		Dir:  dir,
		Mode: packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo | packages.NeedSyntax | packages.NeedDeps | packages.NeedImports | packages.NeedFiles | packages.NeedCompiledGoFiles,
	}
	pkgs, err := packages.Load(cfg, "./...")
	if err != nil {
		t.Fatalf("packages.Load: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected 1 package, got %d", len(pkgs))
	}
	if len(pkgs[0].Errors) != 0 {
		t.Fatalf("fixture package has errors: %+v", pkgs[0].Errors)
	}
	return pkgs[0]
}

func TestExtractClassWithConstructorAndMethod(t *testing.T) {
	pkg := loadFixture(t, `package fixture

// Widget spins.
type Widget struct {
	Name string
	age  int
}

// NewWidget builds a Widget.
func NewWidget(name string) *Widget {
	return &Widget{Name: name}
}

// Spin spins the widget.
func (w *Widget) Spin() {}
`)

	mod := New(pkg, diag.NewLog()).Extract()

	if len(mod.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d: %+v", len(mod.Classes), mod.Classes)
	}
	cls := mod.Classes[0]
	if cls.Name != "Widget" {
		t.Errorf("class name = %q, want Widget", cls.Name)
	}
	if cls.Constructor == nil {
		t.Fatal("expected constructor to be matched")
	}
	if len(cls.Methods) != 1 || cls.Methods[0].Name != "Spin" {
		t.Errorf("methods = %+v, want [Spin]", cls.Methods)
	}
	if len(cls.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %+v", cls.Fields)
	}
	for _, f := range cls.Fields {
		if f.Name == "Name" && f.Visibility != "public" {
			t.Errorf("Name field visibility = %q, want public", f.Visibility)
		}
		if f.Name == "age" && f.Visibility != "private" {
			t.Errorf("age field visibility = %q, want private", f.Visibility)
		}
	}

	// NewWidget must not also appear as a free FunctionInfo since it is
	// attached to Widget as a constructor.
	for _, fn := range mod.Functions {
		if fn.Name == "NewWidget" {
			t.Errorf("NewWidget should not be extracted as a free function")
		}
	}
}

func TestExtractInterface(t *testing.T) {
	pkg := loadFixture(t, `package fixture

// Spinner can spin.
type Spinner interface {
	Spin()
}
`)

	mod := New(pkg, diag.NewLog()).Extract()
	if len(mod.Interfaces) != 1 || mod.Interfaces[0].Name != "Spinner" {
		t.Fatalf("expected Spinner interface, got %+v", mod.Interfaces)
	}
	if len(mod.Interfaces[0].Methods) != 1 || mod.Interfaces[0].Methods[0].Name != "Spin" {
		t.Errorf("unexpected methods: %+v", mod.Interfaces[0].Methods)
	}
}

func TestExtractEnum(t *testing.T) {
	pkg := loadFixture(t, `package fixture

// Color is a named color.
type Color int

const (
	Red Color = iota
	Green
	Blue
)
`)

	mod := New(pkg, diag.NewLog()).Extract()
	if len(mod.Enums) != 1 || mod.Enums[0].Name != "Color" {
		t.Fatalf("expected Color enum, got %+v enums, %+v aliases", mod.Enums, mod.TypeAliases)
	}
	if len(mod.Enums[0].Members) != 3 {
		t.Errorf("expected 3 members, got %+v", mod.Enums[0].Members)
	}
}

func TestExtractFreeFunctionAndAlias(t *testing.T) {
	pkg := loadFixture(t, `package fixture

// ID is an opaque identifier.
type ID string

// Greet returns a greeting.
func Greet(name string) string {
	return "hello " + name
}
`)

	mod := New(pkg, diag.NewLog()).Extract()
	if len(mod.Functions) != 1 || mod.Functions[0].Name != "Greet" {
		t.Fatalf("expected Greet function, got %+v", mod.Functions)
	}
	if len(mod.TypeAliases) != 1 || mod.TypeAliases[0].Name != "ID" {
		t.Fatalf("expected ID alias, got %+v", mod.TypeAliases)
	}
}

func TestInternalMarkerForcesPrivateVisibility(t *testing.T) {
	pkg := loadFixture(t, `package fixture

// Registry is exported but not part of the public surface.
//
// tsapigraph:internal
type Registry struct{}
`)

	mod := New(pkg, diag.NewLog()).Extract()
	if len(mod.Classes) != 1 {
		t.Fatalf("expected 1 class, got %+v", mod.Classes)
	}
	if mod.Classes[0].Visibility != "private" {
		t.Errorf("Registry visibility = %q, want private", mod.Classes[0].Visibility)
	}
	if strings.Contains(mod.Classes[0].Doc, "tsapigraph:internal") {
		t.Errorf("internal marker should be stripped from doc text: %q", mod.Classes[0].Doc)
	}
}

func TestDeprecatedDocMarker(t *testing.T) {
	pkg := loadFixture(t, `package fixture

// OldThing does the old thing.
//
// Deprecated: use NewThing instead.
func OldThing() {}
`)

	mod := New(pkg, diag.NewLog()).Extract()
	if len(mod.Functions) != 1 || !mod.Functions[0].Deprecated {
		t.Fatalf("expected OldThing to be marked deprecated: %+v", mod.Functions)
	}
}

// Package adapter wraps golang.org/x/tools/go/packages as the extraction
// pipeline's Compiler Adapter: the one component that talks to the real
// Go type-checker and hands back *packages.Package values the rest of the
// pipeline treats as an opaque semantic model.
//
// The load modes mirror two ways of resolving type information: Source
// loads and type-checks from .go files under a package root, Compiled
// loads export data only (no syntax trees). Compiled mode is
// driven by the same packages.Load call with NeedTypes|NeedDeps and no
// NeedSyntax, since go/packages' export-data path already implements
// exactly that distinction internally.
package adapter

import (
	"context"
	"fmt"

	"golang.org/x/tools/go/packages"

	"github.com/cwbudde/tsapigraph/internal/diag"
)

// Mode selects how the adapter resolves type information.
type Mode int

const (
	// ModeSource type-checks from source: full syntax trees and types.
	ModeSource Mode = iota
	// ModeCompiled loads only export data (types, no syntax), akin to a
	// declarations-only input.
	ModeCompiled
)

// Config configures a Load call.
type Config struct {
	Mode Mode
	// Dir is the package root to load from, passed to packages.Config.Dir.
	Dir string
	// Patterns are the go/packages load patterns, e.g. "./...". Defaults
	// to "./..." when empty.
	Patterns []string
}

// Result is the loaded package set plus the diagnostic log accumulated
// while loading (parse errors and type errors become warnings here
// rather than fatal errors, so a partially-broken tree still yields a
// partial ApiIndex).
type Result struct {
	Packages []*packages.Package
	Log      *diag.Log
}

func modeFlags(mode Mode) packages.LoadMode {
	switch mode {
	case ModeCompiled:
		return packages.NeedName | packages.NeedTypes | packages.NeedDeps | packages.NeedImports
	default:
		return packages.NeedName | packages.NeedTypes | packages.NeedTypesInfo |
			packages.NeedSyntax | packages.NeedDeps | packages.NeedImports |
			packages.NeedFiles | packages.NeedCompiledGoFiles
	}
}

// Load resolves cfg.Patterns (or "./..." by default) under cfg.Dir and
// returns every loaded package, including ones with type errors: those
// errors are recorded in Result.Log as CodeTypeResolve warnings instead
// of aborting the run, since a single malformed file should not sink an
// entire extraction.
func Load(ctx context.Context, cfg Config) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &diag.CancelledError{}
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	pcfg := &packages.Config{
		Context: ctx,
		Dir:     cfg.Dir,
		Mode:    modeFlags(cfg.Mode),
		Tests:   false,
	}

	pkgs, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, &diag.EngineUnavailableError{Reason: fmt.Sprintf("go/packages load failed: %v", err)}
	}

	log := diag.NewLog()
	for _, pkg := range pkgs {
		for _, pe := range pkg.Errors {
			log.AddWarning(diag.CodeTypeResolve, fmt.Sprintf("%s: %s", pkg.PkgPath, pe.Error()))
		}
	}

	if packages.PrintErrors(pkgs) > 0 && len(pkgs) == 0 {
		return nil, &diag.InputInvalidError{Reason: "no packages matched the given patterns"}
	}

	return &Result{Packages: pkgs, Log: log}, nil
}

// SafeWalk invokes fn for each package, recovering from panics raised by
// fn so that one malformed package's traversal crash does not abort the
// whole run. A panic is converted to a CodeTypeTraverse warning on log,
// the same recovery boundary used for the Collector/Extractor walk over
// third-party type graphs.
func SafeWalk(pkgs []*packages.Package, log *diag.Log, fn func(pkg *packages.Package)) {
	for _, pkg := range pkgs {
		func(pkg *packages.Package) {
			defer func() {
				if r := recover(); r != nil {
					log.AddWarning(diag.CodeTypeTraverse, fmt.Sprintf("panic traversing package %q: %v", pkg.PkgPath, r))
				}
			}()
			fn(pkg)
		}(pkg)
	}
}

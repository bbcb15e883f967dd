package exportresolver

import (
	"testing"

	"github.com/cwbudde/tsapigraph/internal/manifest"
)

func node(children map[string]*manifest.ExportNode) *manifest.ExportNode {
	n := &manifest.ExportNode{Children: children}
	for k := range children {
		n.Keys = append(n.Keys, k)
	}
	return n
}

func leafNode(target string) *manifest.ExportNode {
	return &manifest.ExportNode{Leaf: target}
}

func TestResolveLegacyFallbackAssignsDefaultCondition(t *testing.T) {
	r := New(nil)
	m := &manifest.Manifest{Main: "example.com/foo"}

	res := r.Resolve(m)
	if len(res) != 1 {
		t.Fatalf("expected 1 resolution, got %d", len(res))
	}
	if res[0].ExportPath != "." || res[0].Condition != DefaultCondition {
		t.Errorf("legacy resolution = %+v, want exportPath \".\" condition default", res[0])
	}
}

func TestResolveOrdersConditionsByAscendingPriority(t *testing.T) {
	r := New(nil)
	m := &manifest.Manifest{Exports: node(map[string]*manifest.ExportNode{
		".": node(map[string]*manifest.ExportNode{
			"import":  leafNode("example.com/foo/esm"),
			"require": leafNode("example.com/foo/cjs"),
		}),
	})}

	res := r.Resolve(m)
	if len(res) != 2 {
		t.Fatalf("expected 2 resolutions, got %d", len(res))
	}
	if res[0].Condition != "import" || res[1].Condition != "require" {
		t.Errorf("conditions not ranked import < require: %+v", res)
	}
}

func TestResolveCanonicalizesDefaultOverAnything(t *testing.T) {
	r := New(nil)
	m := &manifest.Manifest{Exports: node(map[string]*manifest.ExportNode{
		".": node(map[string]*manifest.ExportNode{
			"node": node(map[string]*manifest.ExportNode{
				"default": leafNode("example.com/foo"),
			}),
		}),
	})}

	res := r.Resolve(m)
	if len(res) != 1 || res[0].Condition != DefaultCondition {
		t.Errorf("expected canonical condition \"default\", got %+v", res)
	}
}

func TestResolveCanonicalizesTypesWithEnvironmentCondition(t *testing.T) {
	r := New(nil)
	m := &manifest.Manifest{Exports: node(map[string]*manifest.ExportNode{
		".": node(map[string]*manifest.ExportNode{
			"types": node(map[string]*manifest.ExportNode{
				"node": leafNode("example.com/foo/node.d.ts"),
			}),
		}),
	})}

	res := r.Resolve(m)
	if len(res) != 1 || res[0].Condition != "node" {
		t.Errorf("expected canonical condition \"node\" when types co-occurs, got %+v", res)
	}
}

func TestResolveCanonicalizesBareTypes(t *testing.T) {
	r := New(nil)
	m := &manifest.Manifest{Exports: node(map[string]*manifest.ExportNode{
		".": node(map[string]*manifest.ExportNode{
			"types": leafNode("example.com/foo/index.d.ts"),
		}),
	})}

	res := r.Resolve(m)
	if len(res) != 1 || res[0].Condition != "types" {
		t.Errorf("expected canonical condition \"types\", got %+v", res)
	}
}

func TestResolveOutputSortedByExportPathThenPriority(t *testing.T) {
	r := New(nil)
	m := &manifest.Manifest{Exports: node(map[string]*manifest.ExportNode{
		"./zeta":  leafNode("example.com/zeta"),
		".":       leafNode("example.com/root"),
		"./alpha": leafNode("example.com/alpha"),
	})}

	res := r.Resolve(m)
	if len(res) != 3 {
		t.Fatalf("expected 3 resolutions, got %d", len(res))
	}
	if res[0].ExportPath != "." || res[1].ExportPath != "./alpha" || res[2].ExportPath != "./zeta" {
		t.Errorf("resolutions not sorted \".\" first then alphabetically: %+v", res)
	}
}

func TestPriorityRanksUnknownConditionLast(t *testing.T) {
	r := New(nil)
	if r.Priority("mystery") <= r.Priority("development") {
		t.Errorf("unknown condition should rank after every known condition")
	}
}

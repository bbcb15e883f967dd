// Package exportresolver implements the Export Resolver: it walks a
// manifest.Manifest's "exports" tree (or its legacy-field fallback),
// canonicalizes the condition chain crossed to reach each leaf, and
// ranks conditions by a fixed priority table.
//
// The traversal distinguishes three node kinds: a subpath-keyed object
// recurses one level for the export path, a condition-keyed object
// recurses for the condition chain, and a bare string is a leaf, bounded
// at a depth-10 recursion guard.
package exportresolver

import (
	"sort"
	"strings"

	"github.com/cwbudde/tsapigraph/internal/manifest"
)

// DefaultCondition is the canonical condition assigned when a chain is
// empty or contains no recognized condition.
const DefaultCondition = "default"

// environmentConditions are the conditions canonicalization rule 2 treats
// as more specific than a co-occurring "types" condition.
var environmentConditions = map[string]bool{
	"node": true, "browser": true, "import": true, "require": true,
	"workerd": true, "react-native": true,
}

// recognizedOrder is the fallback search order canonicalization rule 4
// uses when the chain contains no "default" and no "types".
var recognizedOrder = []string{"import", "require", "node", "browser", "workerd", "react-native", "development", "production"}

// DefaultPriority is the condition priority table:
// "default < types < import < require < node < browser < production <
// development < (other) 100". Lower sorts first (more general).
var DefaultPriority = []string{"default", "types", "import", "require", "node", "browser", "production", "development"}

const otherPriority = 100

// Resolution is one resolved export leaf.
type Resolution struct {
	ExportPath     string
	Package        string
	Condition      string
	ConditionChain []string
	EntryPoint     bool
}

// Resolver ranks canonical conditions by priority.
type Resolver struct {
	priority map[string]int
}

// New returns a Resolver using priority (or DefaultPriority when nil/empty)
// for condition ranking.
func New(priority []string) *Resolver {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	r := &Resolver{priority: map[string]int{}}
	for i, p := range priority {
		r.priority[p] = i
	}
	return r
}

// Priority returns condition's sort rank: lower is more general. Unknown
// conditions sort last, per the table's "(other) 100" entry.
func (r *Resolver) Priority(condition string) int {
	if rank, ok := r.priority[condition]; ok {
		return rank
	}
	return otherPriority
}

// canonicalize applies the four condition-canonicalization rules to the
// ordered chain of condition keys crossed to reach a leaf.
func canonicalize(chain []string) string {
	for _, c := range chain {
		if c == DefaultCondition {
			return DefaultCondition
		}
	}
	hasTypes := false
	for _, c := range chain {
		if c == "types" {
			hasTypes = true
			break
		}
	}
	if hasTypes {
		for _, c := range chain {
			if environmentConditions[c] {
				return c
			}
		}
		return "types"
	}
	for _, want := range recognizedOrder {
		for _, c := range chain {
			if c == want {
				return want
			}
		}
	}
	if len(chain) > 0 {
		return chain[len(chain)-1]
	}
	return DefaultCondition
}

// leaf is one collected (exportPath, conditionChain, target) triple
// before canonicalization.
type leaf struct {
	exportPath string
	chain      []string
	target     string
}

// collectLeaves walks node depth-first: an object whose first key
// starts with "." is a subpath map (recurse changing exportPath);
// otherwise it is a condition map (recurse appending to chain). A Leaf
// node terminates the walk.
func collectLeaves(node *manifest.ExportNode, exportPath string, chain []string, depth int, out *[]leaf) {
	if node == nil || depth > 10 {
		return
	}
	if node.Leaf != "" {
		*out = append(*out, leaf{exportPath: exportPath, chain: append([]string{}, chain...), target: node.Leaf})
		return
	}
	if len(node.Keys) == 0 {
		return
	}
	isSubpathLevel := strings.HasPrefix(node.Keys[0], ".")
	for _, k := range node.Keys {
		child := node.Children[k]
		if isSubpathLevel {
			collectLeaves(child, k, chain, depth+1, out)
		} else {
			collectLeaves(child, exportPath, append(append([]string{}, chain...), k), depth+1, out)
		}
	}
}

// legacyLeaves implements the fallback path: a manifest with no
// "exports" field falls back in order types -> typings -> module -> main,
// each assigning exportPath "." and condition "default". Every present
// field is emitted (not just the first): the sort below picks a
// deterministic winner when more than one legacy field names the same
// package.
func legacyLeaves(m *manifest.Manifest) []leaf {
	var out []leaf
	for _, v := range []string{m.Types, m.Typings, m.Module, m.Main} {
		if v == "" {
			continue
		}
		out = append(out, leaf{exportPath: ".", chain: nil, target: v})
	}
	return out
}

// Resolve resolves every leaf of m's export map (or its legacy-field
// fallback) into a Resolution, sorted with the following guarantee:
// "." first, then exportPath alphabetically, then ascending condition
// priority.
func (r *Resolver) Resolve(m *manifest.Manifest) []Resolution {
	var leaves []leaf
	if m.Exports != nil {
		collectLeaves(m.Exports, ".", nil, 0, &leaves)
	} else {
		leaves = legacyLeaves(m)
	}

	out := make([]Resolution, 0, len(leaves))
	for _, l := range leaves {
		cond := canonicalize(l.chain)
		out = append(out, Resolution{
			ExportPath:     l.exportPath,
			Package:        l.target,
			Condition:      cond,
			ConditionChain: l.chain,
			EntryPoint:     true,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ExportPath != out[j].ExportPath {
			if out[i].ExportPath == "." {
				return true
			}
			if out[j].ExportPath == "." {
				return false
			}
			return out[i].ExportPath < out[j].ExportPath
		}
		return r.Priority(out[i].Condition) < r.Priority(out[j].Condition)
	})
	return out
}

// Package coverage implements the Coverage Formatter: given an ApiIndex
// and a UsageIndex, it reports which entities were exercised by sample
// code, which weren't, and an overall coverage percentage, excluding
// deprecated entities from the denominator: a deprecated API being
// unused is not a gap worth reporting.
package coverage

import (
	"sort"

	"github.com/cwbudde/tsapigraph/internal/graph"
	"github.com/cwbudde/tsapigraph/internal/usage"
)

// Report is the Coverage Formatter's output.
type Report struct {
	Covered    []string `json:"covered"`
	Uncovered  []string `json:"uncovered"`
	Deprecated []string `json:"deprecatedExcluded,omitempty"`
	Percentage float64  `json:"percentage"`
}

// entityNames returns every non-deprecated entity name in idx alongside
// the deprecated set, in the same (Type.Method / bare-name) shape
// usage.Analyze indexes against.
func entityNames(idx graph.ApiIndex) (active map[string]bool, deprecated map[string]bool) {
	active = map[string]bool{}
	deprecated = map[string]bool{}
	add := func(name string, isDeprecated bool) {
		if isDeprecated {
			deprecated[name] = true
			return
		}
		active[name] = true
	}
	for _, mod := range idx.Modules {
		for _, fn := range mod.Functions {
			add(fn.Name, fn.Deprecated)
		}
		for _, cls := range mod.Classes {
			if cls.Constructor != nil {
				add("New"+cls.Name, cls.Deprecated)
			}
			for _, m := range cls.Methods {
				add(cls.Name+"."+m.Name, m.Deprecated || cls.Deprecated)
			}
		}
		for _, ifc := range mod.Interfaces {
			for _, m := range ifc.Methods {
				add(ifc.Name+"."+m.Name, m.Deprecated || ifc.Deprecated)
			}
		}
	}
	return active, deprecated
}

// Format builds a Report from idx and u.
func Format(idx graph.ApiIndex, u *usage.UsageIndex) Report {
	active, deprecated := entityNames(idx)

	var covered, uncovered []string
	for name := range active {
		if len(u.Calls[name]) > 0 {
			covered = append(covered, name)
		} else {
			uncovered = append(uncovered, name)
		}
	}
	sort.Strings(covered)
	sort.Strings(uncovered)

	depList := make([]string, 0, len(deprecated))
	for name := range deprecated {
		depList = append(depList, name)
	}
	sort.Strings(depList)

	total := len(covered) + len(uncovered)
	pct := 0.0
	if total > 0 {
		pct = float64(len(covered)) / float64(total) * 100
	}

	return Report{
		Covered:    covered,
		Uncovered:  uncovered,
		Deprecated: depList,
		Percentage: pct,
	}
}
